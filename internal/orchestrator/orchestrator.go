// Package orchestrator composes the conversation turn pipeline: session
// lifecycle, workflow enforcement, response generation, BANT scoring,
// analytics, and routing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadline/leadline/internal/analytics"
	"github.com/leadline/leadline/internal/archive"
	"github.com/leadline/leadline/internal/bant"
	"github.com/leadline/leadline/internal/funnel"
	"github.com/leadline/leadline/internal/llm"
	"github.com/leadline/leadline/internal/notify"
	"github.com/leadline/leadline/internal/otel"
	"github.com/leadline/leadline/internal/session"
	"github.com/leadline/leadline/pkg/models"
)

// ErrEmptyMessage is returned for requests without a message; no session
// state is mutated in that case.
var ErrEmptyMessage = errors.New("message is required")

// fallbackResponse is shown when generation fails; the user never sees a raw error.
const fallbackResponse = "Apologies — we're experiencing technical difficulties on our end. Could you repeat that, or tell me a bit more about what you're looking for?"

// Publisher receives turn events for live observers (implemented by the SSE hub).
type Publisher interface {
	PublishJSON(v any)
}

// Orchestrator runs one turn per inbound request. All collaborators are
// injected; tests swap in Static generators and Nop archives.
type Orchestrator struct {
	Sessions  *session.Store
	Generator llm.Generator
	Archive   archive.Archive
	Notifiers *notify.Registry
	Hub       Publisher // optional

	// QualifyThreshold gates the sales notification; 0 means the scorer's
	// qualification threshold. The score's IsQualified flag is not affected.
	QualifyThreshold int

	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) qualifyThreshold() int {
	if o.QualifyThreshold > 0 {
		return o.QualifyThreshold
	}
	return bant.QualifiedThreshold
}

// HandleTurn processes one inbound message and returns the response for the
// caller. Session state advances even when generation fails; only a missing
// message or an unrecoverable store fault surfaces as an error.
func (o *Orchestrator) HandleTurn(ctx context.Context, req models.OrchestrateRequest) (models.OrchestrateResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return models.OrchestrateResponse{}, ErrEmptyMessage
	}
	start := o.now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	convType := req.ConversationType
	if convType == "" {
		convType = models.ConversationChat
	}

	snap, err := o.loadOrCreate(sessionID, convType)
	if err != nil {
		return models.OrchestrateResponse{}, err
	}

	// Enforcement runs against the merged view of what we will know after
	// this turn's extraction is applied.
	info := snap.CustomerInfo.Clone()
	if req.CustomerInfo != nil {
		info.Merge(*req.CustomerInfo)
	}
	enforcement := funnel.EnforceNextStep(info, req.Message)
	state := funnel.GetState(info)

	// Generation runs outside the session lock; a slow model call must not
	// serialize other turns of this session. Forced questions skip it.
	var (
		responseText string
		genErr       error
		genStart     = o.now()
	)
	if enforcement.AllowNaturalResponse {
		responseText, genErr = o.Generator.Generate(ctx, systemPrompt(state, convType), history(snap, req.Message))
		if genErr != nil {
			responseText = fallbackResponse
			otel.RecordGenerationFailure(ctx)
			slog.Warn("generation failed, using fallback", "session", sessionID, "err", genErr)
		}
	} else {
		responseText = enforcement.Question
	}
	genEnd := o.now()

	ending := funnel.IsEnding(strings.ToLower(req.Message)) && state.CanProceed

	var (
		updated      *session.Session
		pendingNotif *notify.Notification
		qualErr      string
		wasQualified bool
	)
	mutate := func(s *session.Session) {
		if req.CustomerInfo != nil {
			s.CustomerInfo.Merge(*req.CustomerInfo)
		}
		responseTime := o.now().Sub(s.LastUpdateTime)
		s.AppendMessage(models.RoleUser, req.Message, start)
		s.AppendMessage(models.RoleAssistant, responseText, genEnd)

		if genErr != nil {
			s.Errors = append(s.Errors, session.ErrorEntry{
				Timestamp: genEnd, Agent: "generator", Error: genErr.Error(), Recovered: true,
			})
			s.AgentExecutions = append(s.AgentExecutions, session.AgentExecution{
				AgentID: "generator", StartTime: genStart, EndTime: genEnd,
				Status: session.ExecFailed, Error: genErr.Error(),
			})
		} else if enforcement.AllowNaturalResponse {
			s.AgentExecutions = append(s.AgentExecutions, session.AgentExecution{
				AgentID: "generator", StartTime: genStart, EndTime: genEnd,
				Status: session.ExecCompleted, Result: "response generated",
			})
		}

		wasQualified = s.Qualification != nil && s.Qualification.IsQualified

		// Qualification failures are not recovered silently: they surface in
		// the response metadata because downstream notification decisions
		// depend on the score.
		if err := o.runAgent(s, "bant_scorer", func() {
			q := bant.Score(s.ConversationText(), s.CustomerInfo)
			s.Qualification = &q
		}); err != nil {
			qualErr = err.Error()
		}

		_ = o.runAgent(s, "analytics_tracker", func() {
			analytics.Track(s, req.Message, responseTime, o.now())
		})

		s.CurrentPhase = string(state.Current)
		s.NextNode = o.route(s, state, ending)
		switch {
		case ending:
			s.ConversationStatus = models.StatusEnded
		case state.CanProceed:
			s.ConversationStatus = models.StatusQualified
		default:
			s.ConversationStatus = models.StatusActive
		}

		pendingNotif = o.maybeMarkNotification(s)
	}

	updated, err = o.Sessions.Update(sessionID, mutate)
	if errors.Is(err, session.ErrNotFound) {
		// The sweeper removed the session mid-turn; recreate and retry once.
		if _, cerr := o.Sessions.Create(sessionID, convType); cerr != nil && !errors.Is(cerr, session.ErrDuplicate) {
			return models.OrchestrateResponse{}, cerr
		}
		updated, err = o.Sessions.Update(sessionID, mutate)
	}
	if err != nil {
		return models.OrchestrateResponse{}, err
	}

	// Delivery and archival happen outside the session lock.
	if pendingNotif != nil && o.Notifiers != nil {
		o.Notifiers.NotifyAll(context.WithoutCancel(ctx), *pendingNotif)
	}
	if updated.Qualification != nil && updated.Qualification.IsQualified && !wasQualified {
		otel.RecordQualified(ctx, updated.Qualification.Tier)
	}
	if ending {
		o.archiveSession(context.WithoutCancel(ctx), updated)
		o.Sessions.Remove(sessionID)
	}
	if o.Hub != nil {
		o.Hub.PublishJSON(map[string]any{
			"type":      "turn",
			"sessionId": sessionID,
			"phase":     updated.CurrentPhase,
			"nextNode":  updated.NextNode,
			"forced":    !enforcement.AllowNaturalResponse,
		})
	}
	otel.RecordTurn(ctx, convType, !enforcement.AllowNaturalResponse, o.now().Sub(start).Seconds())

	resp := models.OrchestrateResponse{
		Response:  responseText,
		SessionID: sessionID,
		NextAction: updated.NextNode,
		Metadata: &models.TurnMetadata{
			ForcedQuestion:     !enforcement.AllowNaturalResponse,
			WorkflowStep:       string(state.NextRequired),
			ComplianceScore:    state.ComplianceScore,
			GenerationFallback: genErr != nil,
			QualificationError: qualErr,
		},
	}
	if updated.Qualification != nil {
		q := *updated.Qualification
		resp.Qualification = &q
		resp.Recommendations = recommendations(q)
	}
	resp.Analytics = &models.Analytics{
		EngagementScore:       updated.Analytics.EngagementScore,
		SentimentTrend:        updated.Analytics.SentimentTrend,
		ConversionProbability: updated.Analytics.ConversionProbability,
	}
	return resp, nil
}

// loadOrCreate returns a clone of the session, creating it if absent or
// expired. A concurrent create is treated as "continue".
func (o *Orchestrator) loadOrCreate(id, convType string) (*session.Session, error) {
	s, err := o.Sessions.Get(id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}
	s, err = o.Sessions.Create(id, convType)
	if errors.Is(err, session.ErrDuplicate) {
		return o.Sessions.Get(id)
	}
	return s, err
}

// runAgent runs one subcomponent for the turn, recording an execution entry
// and converting a panic into a logged per-turn error.
func (o *Orchestrator) runAgent(s *session.Session, agentID string, fn func()) (err error) {
	began := o.now()
	defer func() {
		ended := o.now()
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", agentID, r)
			s.AgentExecutions = append(s.AgentExecutions, session.AgentExecution{
				AgentID: agentID, StartTime: began, EndTime: ended,
				Status: session.ExecFailed, Error: err.Error(),
			})
			s.Errors = append(s.Errors, session.ErrorEntry{
				Timestamp: ended, Agent: agentID, Error: err.Error(), Recovered: true,
			})
			return
		}
		s.AgentExecutions = append(s.AgentExecutions, session.AgentExecution{
			AgentID: agentID, StartTime: began, EndTime: ended,
			Status: session.ExecCompleted, Result: "ok",
		})
	}()
	fn()
	return nil
}

// route decides the next node for the conversation.
func (o *Orchestrator) route(s *session.Session, state funnel.State, ending bool) string {
	if ending {
		return models.NodeEnd
	}
	if s.Qualification != nil && state.CanProceed {
		if s.Qualification.IsQualified {
			return models.NodeRecommend
		}
		return models.NodeNurture
	}
	if s.Qualification != nil && s.Qualification.Tier == models.TierNurture && state.ComplianceScore >= 50 {
		return models.NodeNurture
	}
	return models.NodeContinue
}

// maybeMarkNotification applies the at-most-once notification condition under
// the session lock and returns the notification to deliver, if any.
func (o *Orchestrator) maybeMarkNotification(s *session.Session) *notify.Notification {
	q := s.Qualification
	if q == nil || q.TotalScore < o.qualifyThreshold() {
		return nil
	}
	if !strings.Contains(s.CustomerInfo.Email, "@") {
		return nil
	}
	if s.HasNotification(models.NotifyFollowUp) || s.HasNotification(models.NotifyMeeting) {
		return nil
	}
	s.NotificationsSent = append(s.NotificationsSent, models.NotifyFollowUp)
	return &notify.Notification{
		Type:      models.NotifyFollowUp,
		SessionID: s.SessionID,
		Email:     s.CustomerInfo.Email,
		Name:      s.CustomerInfo.Name,
		Company:   s.CustomerInfo.Company,
		Tier:      q.Tier,
		Score:     q.TotalScore,
	}
}

// EndSession archives the session's final qualification and removes it.
// Removing an unknown session is not an error; archival is fire-and-forget.
func (o *Orchestrator) EndSession(ctx context.Context, id string) error {
	s, err := o.Sessions.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		return session.ErrNotFound
	}
	if err != nil {
		return err
	}
	o.archiveSession(ctx, s)
	o.Sessions.Remove(id)
	if o.Hub != nil {
		o.Hub.PublishJSON(map[string]any{"type": "session_ended", "sessionId": id})
	}
	return nil
}

func (o *Orchestrator) archiveSession(ctx context.Context, s *session.Session) {
	if o.Archive == nil {
		return
	}
	rec := models.LeadRecord{
		SessionID:        s.SessionID,
		ConversationType: s.ConversationType,
		Name:             s.CustomerInfo.Name,
		Email:            s.CustomerInfo.Email,
		Phone:            s.CustomerInfo.Phone,
		Company:          s.CustomerInfo.Company,
		Industry:         s.CustomerInfo.Industry,
		MessageCount:     len(s.Messages),
		StartedAt:        s.StartTime,
		EndedAt:          o.now(),
	}
	if q := s.Qualification; q != nil {
		rec.Tier = q.Tier
		rec.TotalScore = q.TotalScore
		rec.IsQualified = q.IsQualified
		rec.Reasons = append(rec.Reasons, q.QualificationReasons...)
	} else {
		rec.Tier = models.TierNurture
	}
	if err := o.Archive.SaveLead(ctx, rec); err != nil {
		slog.Warn("lead archive failed", "session", s.SessionID, "err", err)
	}
}

// systemPrompt frames the generation call around the funnel's current gap so
// the model steers toward the next required fact without being forced.
func systemPrompt(state funnel.State, convType string) string {
	var b strings.Builder
	b.WriteString("You are a helpful sales assistant qualifying a prospective customer over ")
	b.WriteString(convType)
	b.WriteString(". Be concise and conversational.")
	if state.NextRequired != funnel.StepNone {
		b.WriteString(" You still need to learn: ")
		steps := make([]string, 0, len(state.MissingSteps))
		for _, st := range state.MissingSteps {
			steps = append(steps, strings.ToLower(string(st)))
		}
		b.WriteString(strings.Join(steps, ", "))
		b.WriteString(". Work the next one into your reply naturally.")
	}
	return b.String()
}

func history(s *session.Session, userMessage string) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(s.Messages)+1)
	for _, m := range s.Messages {
		role := m.Role
		if role != models.RoleUser && role != models.RoleAssistant {
			role = models.RoleUser
		}
		out = append(out, llm.ChatMessage{Role: role, Content: m.Text})
	}
	return append(out, llm.ChatMessage{Role: models.RoleUser, Content: userMessage})
}

// recommendations derives follow-up suggestions from the tier; presentational.
func recommendations(q models.Qualification) []string {
	switch q.Tier {
	case models.TierHot:
		return []string{"Schedule a demo within 24 hours", "Route to senior sales for immediate follow-up"}
	case models.TierWarm:
		return []string{"Send a tailored case study", "Book a discovery call this week"}
	case models.TierCold:
		return []string{"Add to the monthly newsletter", "Re-engage next quarter"}
	default:
		return []string{"Add to the nurture campaign"}
	}
}
