// Package bant scores a conversation against the BANT methodology
// (Budget/Authority/Need/Timeline) and derives a qualification tier.
// Score is a pure function; all rules live in ordered tables in rules.go so
// each rung is unit-testable and extendable per locale.
package bant

import (
	"math"
	"strings"

	"github.com/leadline/leadline/pkg/models"
)

// Component score caps.
const (
	MaxBudget    = 30
	MaxAuthority = 25
	MaxNeed      = 25
	MaxTimeline  = 20
)

// Tier thresholds over the total score.
const (
	TierHotThreshold  = 70
	TierWarmThreshold = 45
	TierColdThreshold = 25
)

// QualifiedThreshold is the total score at which a lead counts as qualified.
const QualifiedThreshold = TierWarmThreshold

// Qualification is an alias for the wire type; produced here, owned by the
// session once computed.
type Qualification = models.Qualification

// Score computes the BANT qualification from the full conversation text
// (lower-cased, turn order) and the structured customer facts.
func Score(conversationText string, info models.CustomerInfo) Qualification {
	text := strings.ToLower(conversationText)
	if info.Budget != "" {
		text += " " + strings.ToLower(info.Budget)
	}
	if info.Timeline != "" {
		text += " " + strings.ToLower(info.Timeline)
	}

	budget := scoreBudget(text, info)
	authority := scoreAuthority(info)
	need := scoreNeed(text, info)
	timeline := scoreTimeline(text)

	base := budget + authority + need + timeline
	mult := 1.0
	if m, ok := industryMultiplier[strings.ToLower(strings.TrimSpace(info.Industry))]; ok {
		mult = m
	}
	// The multiplier is the only way the raw sum can exceed 100, hence the clamp.
	total := int(math.Round(float64(base) * mult))
	if total > 100 {
		total = 100
	}

	q := Qualification{
		BudgetScore:    budget,
		BudgetStatus:   budgetStatus(budget),
		AuthorityScore: authority,
		AuthorityLevel: authorityLevel(authority),
		NeedScore:      need,
		NeedUrgency:    needUrgency(need),
		TimelineScore:  timeline,
		TimelineStatus: timelineStatus(timeline),
		TotalScore:     total,
		IsQualified:    total >= QualifiedThreshold,
		Tier:           Tier(total),
	}
	q.QualificationReasons, q.DisqualificationReasons = reasons(q)
	return q
}

// Tier maps a total score to its qualification bucket.
func Tier(total int) string {
	switch {
	case total >= TierHotThreshold:
		return models.TierHot
	case total >= TierWarmThreshold:
		return models.TierWarm
	case total >= TierColdThreshold:
		return models.TierCold
	default:
		return models.TierNurture
	}
}

func scoreBudget(text string, info models.CustomerInfo) int {
	score := 0
	for _, r := range budgetLadder {
		if r.re.MatchString(text) {
			score = r.score
			break
		}
	}
	switch strings.ToLower(info.CompanySize) {
	case "enterprise":
		score += 10
	case "large":
		score += 5
	}
	if score > MaxBudget {
		score = MaxBudget
	}
	return score
}

func scoreAuthority(info models.CustomerInfo) int {
	title := strings.ToLower(info.Title)
	score := 0
	if title != "" {
		for _, r := range authorityLadder {
			if containsAnyWord(title, r.words) {
				score = r.score
				break
			}
		}
	}
	if score < 10 {
		if o, ok := roleOverride[strings.ToLower(info.Role)]; ok && o > score {
			score = o
		}
	}
	if score == 0 {
		score = defaultAuthority
	}
	return score
}

func scoreNeed(text string, info models.CustomerInfo) int {
	score := 3 * len(info.CurrentChallenges)
	if score > 10 {
		score = 10
	}
	for _, p := range info.PainPoints {
		score += painWeight(strings.ToLower(p))
	}
	switch {
	case containsAny(text, urgencyCritical):
		score += 5
	case containsAny(text, urgencyMajor):
		score += 3
	}
	if containsAny(text, businessImpact) {
		score += 3
	}
	if score > MaxNeed {
		score = MaxNeed
	}
	return score
}

func scoreTimeline(text string) int {
	for _, r := range timelineLadder {
		if containsAny(text, r.words) {
			return r.score
		}
	}
	return 0
}

func painWeight(point string) int {
	for _, r := range painSeverity {
		if containsAny(point, r.words) {
			return r.score
		}
	}
	return 1
}

// reasons re-tests each component against the same thresholds used for
// scoring; presentational only.
func reasons(q Qualification) (qualify, disqualify []string) {
	if q.BudgetScore >= 20 {
		qualify = append(qualify, "Significant budget identified")
	} else if q.BudgetScore >= 5 {
		qualify = append(qualify, "Budget discussion started")
	} else {
		disqualify = append(disqualify, "No budget signal")
	}
	if q.AuthorityScore >= 20 {
		qualify = append(qualify, "Decision maker engaged")
	} else if q.AuthorityScore < 10 {
		disqualify = append(disqualify, "Limited decision-making authority")
	}
	if q.NeedScore >= 15 {
		qualify = append(qualify, "Strong business need expressed")
	} else if q.NeedScore < 6 {
		disqualify = append(disqualify, "Need not yet established")
	}
	if q.TimelineScore >= 12 {
		qualify = append(qualify, "Near-term timeline")
	} else if q.TimelineScore <= 3 {
		disqualify = append(disqualify, "No near-term timeline")
	}
	if !q.IsQualified {
		disqualify = append(disqualify, "Total score below qualification threshold")
	}
	return qualify, disqualify
}

func budgetStatus(score int) string {
	switch {
	case score >= 25:
		return "confirmed_high"
	case score >= 15:
		return "confirmed"
	case score >= 5:
		return "indicated"
	default:
		return "unknown"
	}
}

func authorityLevel(score int) string {
	switch {
	case score >= 25:
		return "c_level"
	case score >= 20:
		return "executive"
	case score >= 10:
		return "mid_level"
	case score >= 5:
		return "individual_contributor"
	default:
		return "unknown"
	}
}

func needUrgency(score int) string {
	switch {
	case score >= 20:
		return "critical"
	case score >= 12:
		return "high"
	case score >= 6:
		return "medium"
	case score > 0:
		return "low"
	default:
		return "none"
	}
}

func timelineStatus(score int) string {
	switch {
	case score >= 20:
		return "immediate"
	case score >= 15:
		return "this_month"
	case score >= 12:
		return "this_quarter"
	case score >= 8:
		return "this_year"
	case score > 0:
		return "long_term"
	default:
		return "unknown"
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if containsWord(s, w) {
			return true
		}
	}
	return false
}

// containsWord matches w in s on word boundaries only, so a title like
// "director" does not hit the "cto" rung and "coordinator" does not hit "coo".
func containsWord(s, w string) bool {
	for i := 0; ; i++ {
		j := strings.Index(s[i:], w)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(w)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
