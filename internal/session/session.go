// Package session owns conversation state: the Session aggregate and the
// in-memory, TTL-bounded store that serializes concurrent mutations per key.
package session

import (
	"strings"
	"time"

	"github.com/leadline/leadline/pkg/models"
)

// Message is one conversation turn. Order of the Messages slice is meaningful
// and append-only.
type Message struct {
	Role      string
	Text      string
	Timestamp time.Time
	Source    string // optional annotation (e.g. "voice", "forced_question")
}

// Analytics holds per-session engagement signals. KeyMoments is append-only.
type Analytics struct {
	EngagementScore       int     // 0–100
	SentimentTrend        string  // "positive", "neutral", "negative"
	ConversionProbability float64 // 0.0–1.0
	KeyMoments            []KeyMoment
}

// KeyMoment is one entry in the append-only session event log, kept for human
// review and never used for control flow.
type KeyMoment struct {
	Timestamp time.Time
	Event     string
	Impact    string
}

// AgentExecution records one subcomponent's attempt to process a turn.
type AgentExecution struct {
	AgentID    string
	StartTime  time.Time
	EndTime    time.Time
	Status     string // "completed" or "failed"
	Result     string
	Error      string
	RetryCount int
}

// Agent execution statuses.
const (
	ExecCompleted = "completed"
	ExecFailed    = "failed"
)

// ErrorEntry records a per-turn error and whether the turn recovered from it.
type ErrorEntry struct {
	Timestamp time.Time
	Agent     string
	Error     string
	Recovered bool
}

// Session is the aggregate root for one conversation, exclusively owned by
// the Store. Callers outside the store only ever see clones.
type Session struct {
	SessionID        string
	ConversationType string // "chat", "callback", "email", "form"
	Messages         []Message
	CustomerInfo     models.CustomerInfo
	Qualification    *models.Qualification
	Analytics        Analytics
	AgentExecutions  []AgentExecution
	Errors           []ErrorEntry

	ConversationStatus string // "active", "qualified", "ended"
	CurrentPhase       string
	NextNode           string

	// NotificationsSent guards the at-most-once notification per type.
	NotificationsSent []string

	StartTime      time.Time
	LastUpdateTime time.Time
}

// AppendMessage appends a turn to the conversation.
func (s *Session) AppendMessage(role, text string, at time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Text: text, Timestamp: at})
}

// HasNotification reports whether a notification of the given type was sent.
func (s *Session) HasNotification(kind string) bool {
	for _, n := range s.NotificationsSent {
		if n == kind {
			return true
		}
	}
	return false
}

// ConversationText returns all user and assistant turns lower-cased and
// concatenated in order, the form the scoring ladders match against.
func (s *Session) ConversationText() string {
	parts := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		parts = append(parts, m.Text)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Clone returns a deep copy safe to read outside the store's lock.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.CustomerInfo = s.CustomerInfo.Clone()
	out.Analytics.KeyMoments = append([]KeyMoment(nil), s.Analytics.KeyMoments...)
	out.AgentExecutions = append([]AgentExecution(nil), s.AgentExecutions...)
	out.Errors = append([]ErrorEntry(nil), s.Errors...)
	out.NotificationsSent = append([]string(nil), s.NotificationsSent...)
	if s.Qualification != nil {
		q := *s.Qualification
		q.QualificationReasons = append([]string(nil), s.Qualification.QualificationReasons...)
		q.DisqualificationReasons = append([]string(nil), s.Qualification.DisqualificationReasons...)
		out.Qualification = &q
	}
	return &out
}
