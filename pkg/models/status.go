package models

// Conversation types accepted on POST /orchestrate.
const (
	ConversationChat     = "chat"
	ConversationCallback = "callback"
	ConversationEmail    = "email"
	ConversationForm     = "form"
)

// Conversation statuses.
const (
	StatusActive    = "active"
	StatusQualified = "qualified"
	StatusEnded     = "ended"
)

// Next-node routing decisions made by the orchestrator.
const (
	NodeContinue  = "continue_conversation"
	NodeRecommend = "recommend"
	NodeNurture   = "nurture"
	NodeEnd       = "end"
)

// Qualification tiers derived from the total BANT score.
const (
	TierHot     = "hot"
	TierWarm    = "warm"
	TierCold    = "cold"
	TierNurture = "nurture"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Notification types the orchestrator can send at most once per session.
const (
	NotifyFollowUp = "follow_up"
	NotifyMeeting  = "meeting"
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSessionListLimit    = 500
	DefaultSSEChannelBuffer    = 256
)
