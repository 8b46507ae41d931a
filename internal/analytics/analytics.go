// Package analytics derives sentiment, engagement, and conversion signals
// from the running conversation. Every Track call appends exactly one key
// moment to the session's append-only log.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/leadline/leadline/internal/session"
)

// Sentiment keyword tables. Scoring is signed counting: positive hits minus
// negative hits.
var (
	positiveWords = []string{
		"great", "good", "excellent", "perfect", "love", "awesome",
		"helpful", "interested", "exciting", "thanks", "thank you", "sounds good", "definitely",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "hate", "frustrat", "angry",
		"disappoint", "waste", "confus", "not interested", "too expensive", "annoying",
	}
)

// Sentiment classifies one message as "positive", "negative", or "neutral".
func Sentiment(message string) string {
	msg := strings.ToLower(message)
	score := 0
	for _, w := range positiveWords {
		score += strings.Count(msg, w)
	}
	for _, w := range negativeWords {
		score -= strings.Count(msg, w)
	}
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// EngagementScore rewards longer conversations and penalizes long silences:
// clamp(0, 100, 100 - 2*responseTimeSeconds + 5*messageCount).
func EngagementScore(responseTime time.Duration, messageCount int) int {
	score := 100 - 2*int(responseTime.Seconds()) + 5*messageCount
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Track updates the session's analytics for the latest user message. Must be
// called while the caller holds the session (inside a store Update).
func Track(s *session.Session, userMessage string, responseTime time.Duration, at time.Time) {
	sentiment := Sentiment(userMessage)
	s.Analytics.SentimentTrend = sentiment
	s.Analytics.EngagementScore = EngagementScore(responseTime, len(s.Messages))

	// Conversion probability: the qualification score dominates once known;
	// a captured email floors it at 0.3; otherwise leave it alone.
	switch {
	case s.Qualification != nil:
		s.Analytics.ConversionProbability = float64(s.Qualification.TotalScore) / 100
	case strings.Contains(s.CustomerInfo.Email, "@"):
		if s.Analytics.ConversionProbability < 0.3 {
			s.Analytics.ConversionProbability = 0.3
		}
	}

	s.Analytics.KeyMoments = append(s.Analytics.KeyMoments, session.KeyMoment{
		Timestamp: at,
		Event:     fmt.Sprintf("turn %d processed", len(s.Messages)),
		Impact:    sentiment,
	})
}
