// Package models provides shared types for the Leadline HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// OrchestrateRequest is the body of POST /orchestrate.
type OrchestrateRequest struct {
	Message          string            `json:"message"`
	SessionID        string            `json:"sessionId,omitempty"`
	ConversationType string            `json:"conversationType,omitempty"`
	CustomerInfo     *CustomerInfo     `json:"customerInfo,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// OrchestrateResponse is the body returned by POST /orchestrate.
type OrchestrateResponse struct {
	Response        string         `json:"response"`
	SessionID       string         `json:"sessionId"`
	Qualification   *Qualification `json:"qualification,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	NextAction      string         `json:"nextAction,omitempty"`
	Analytics       *Analytics     `json:"analytics,omitempty"`
	Metadata        *TurnMetadata  `json:"metadata,omitempty"`
}

// TurnMetadata reports per-turn internals callers may inspect (never raw errors).
type TurnMetadata struct {
	ForcedQuestion     bool   `json:"forcedQuestion"`
	WorkflowStep       string `json:"workflowStep,omitempty"`
	ComplianceScore    int    `json:"complianceScore"`
	GenerationFallback bool   `json:"generationFallback,omitempty"`
	QualificationError string `json:"qualificationError,omitempty"`
}

// CustomerInfo is the incrementally extracted customer record. All fields are
// optional on the wire; absent fields never overwrite known values.
type CustomerInfo struct {
	Name              string   `json:"name,omitempty"`
	Email             string   `json:"email,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Company           string   `json:"company,omitempty"`
	Title             string   `json:"title,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	CompanySize       string   `json:"companySize,omitempty"`
	Role              string   `json:"role,omitempty"`
	CurrentChallenges []string `json:"currentChallenges,omitempty"`
	PainPoints        []string `json:"painPoints,omitempty"`
	Budget            string   `json:"budget,omitempty"`
	Timeline          string   `json:"timeline,omitempty"`
	Stakeholders      []string `json:"stakeholders,omitempty"`
}

// Qualification is the BANT result exposed on the wire.
type Qualification struct {
	BudgetScore             int      `json:"budgetScore"`
	BudgetStatus            string   `json:"budgetStatus"`
	AuthorityScore          int      `json:"authorityScore"`
	AuthorityLevel          string   `json:"authorityLevel"`
	NeedScore               int      `json:"needScore"`
	NeedUrgency             string   `json:"needUrgency"`
	TimelineScore           int      `json:"timelineScore"`
	TimelineStatus          string   `json:"timelineStatus"`
	TotalScore              int      `json:"totalScore"`
	IsQualified             bool     `json:"isQualified"`
	Tier                    string   `json:"tier"`
	QualificationReasons    []string `json:"qualificationReasons,omitempty"`
	DisqualificationReasons []string `json:"disqualificationReasons,omitempty"`
}

// Analytics is the per-session analytics summary exposed on the wire.
type Analytics struct {
	EngagementScore       int     `json:"engagementScore"`
	SentimentTrend        string  `json:"sentimentTrend"`
	ConversionProbability float64 `json:"conversionProbability"`
}

// SessionSummary is one entry in the session list returned by GET /orchestrate.
type SessionSummary struct {
	SessionID        string    `json:"sessionId"`
	ConversationType string    `json:"conversationType"`
	Status           string    `json:"status"`
	Phase            string    `json:"phase"`
	MessageCount     int       `json:"messageCount"`
	TotalScore       int       `json:"totalScore"`
	Tier             string    `json:"tier,omitempty"`
	StartTime        time.Time `json:"startTime"`
	LastUpdateTime   time.Time `json:"lastUpdateTime"`
}

// SessionDetail is returned by GET /orchestrate?sessionId=...
type SessionDetail struct {
	SessionSummary
	CustomerInfo  CustomerInfo   `json:"customerInfo"`
	Qualification *Qualification `json:"qualification,omitempty"`
	Analytics     *Analytics     `json:"analytics,omitempty"`
	MissingSteps  []string       `json:"missingSteps,omitempty"`
}

// SessionList is returned by GET /orchestrate without a sessionId.
type SessionList struct {
	Sessions  []SessionSummary `json:"sessions"`
	Aggregate AggregateStats   `json:"aggregate"`
}

// AggregateStats summarizes all active sessions.
type AggregateStats struct {
	ActiveSessions int            `json:"activeSessions"`
	QualifiedLeads int            `json:"qualifiedLeads"`
	AvgTotalScore  float64        `json:"avgTotalScore"`
	AvgEngagement  float64        `json:"avgEngagement"`
	TiersByCount   map[string]int `json:"tiersByCount,omitempty"`
}

// LeadRecord is a finalized qualification record archived when a session ends.
type LeadRecord struct {
	SessionID        string    `json:"session_id"`
	ConversationType string    `json:"conversation_type"`
	Name             string    `json:"name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Company          string    `json:"company,omitempty"`
	Industry         string    `json:"industry,omitempty"`
	Tier             string    `json:"tier"`
	TotalScore       int       `json:"total_score"`
	IsQualified      bool      `json:"is_qualified"`
	MessageCount     int       `json:"message_count"`
	Reasons          []string  `json:"reasons,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
}
