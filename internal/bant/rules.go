package bant

import "regexp"

// budgetRule is one rung of the budget ladder: first pattern to match wins.
type budgetRule struct {
	re    *regexp.Regexp
	score int
}

// budgetLadder is ordered highest scale first so "$1M" is not claimed by a
// lower rung. Matching runs over lower-cased text.
var budgetLadder = []budgetRule{
	{regexp.MustCompile(`\$\s*[1-9]\d*(\.\d+)?\s*(m\b|mm\b|million)`), 30},
	{regexp.MustCompile(`\$\s*[5-9]\d{2}\s*k\b|\$\s*[5-9]\d{2},\d{3}`), 25},
	{regexp.MustCompile(`\$\s*2[5-9]\d\s*k\b|\$\s*[3-4]\d{2}\s*k\b|\$\s*2[5-9]\d,\d{3}`), 20},
	{regexp.MustCompile(`\$\s*1\d{2}\s*k\b|\$\s*2[0-4]\d\s*k\b|\$\s*1\d{2},\d{3}`), 15},
	{regexp.MustCompile(`\$\s*[5-9]\d\s*k\b|\$\s*[5-9]\d,\d{3}`), 10},
	{regexp.MustCompile(`\bbudget\b|\ballocated\b|\bapproved\b`), 5},
}

// keywordRule is one rung of a keyword ladder.
type keywordRule struct {
	words []string
	score int
}

// authorityLadder scores the contact's title. First rung with a hit wins.
var authorityLadder = []keywordRule{
	{[]string{"ceo", "cto", "cfo", "coo", "chief", "owner", "founder", "president"}, 25},
	{[]string{"vp", "vice president"}, 20},
	{[]string{"director"}, 15},
	{[]string{"manager", "lead"}, 10},
	{[]string{"senior", "principal"}, 8},
	{[]string{"analyst", "coordinator"}, 5},
}

// roleOverride maps the structured role field to a floor authority score,
// applied when the title ladder lands below 10.
var roleOverride = map[string]int{
	"decision_maker": 20,
	"influencer":     12,
}

// defaultAuthority is used when neither title nor role carry any signal.
// Deliberate policy: engaging about one's business implies some authority,
// so unknown roles are assumed mid-level rather than zero.
const defaultAuthority = 15

// timelineLadder scores urgency phrasing. First rung with a hit wins.
var timelineLadder = []keywordRule{
	{[]string{"immediate", "immediately", "asap", "right away", "this week", "urgent"}, 20},
	{[]string{"this month", "within the month", "few weeks"}, 15},
	{[]string{"this quarter", "next month", "within 3 months", "next quarter"}, 12},
	{[]string{"this year", "within 6 months", "second half"}, 8},
	{[]string{"next year", "exploring", "no rush", "someday", "eventually"}, 3},
}

// painSeverity maps severity keywords inside a pain point to its weight;
// points with no severity keyword weigh 1 (low).
var painSeverity = []keywordRule{
	{[]string{"critical", "severe", "blocking"}, 5},
	{[]string{"high", "major", "serious"}, 3},
	{[]string{"medium", "moderate"}, 2},
}

// Urgency and impact bonuses applied to the need score from conversation text.
var (
	urgencyCritical = []string{"critical", "urgent", "failing"}
	urgencyMajor    = []string{"major", "significant"}
	businessImpact  = []string{"revenue", "cost", "compliance"}
)

// industryMultiplier is the fixed per-industry prior applied to the base
// score. Industries not listed use 1.0.
var industryMultiplier = map[string]float64{
	"insurance":     1.2,
	"finance":       1.15,
	"technology":    1.1,
	"healthcare":    1.1,
	"manufacturing": 1.05,
	"retail":        0.95,
	"education":     0.9,
	"government":    0.9,
	"nonprofit":     0.85,
}
