package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leadline/leadline/internal/llm"
	"github.com/leadline/leadline/internal/notify"
	"github.com/leadline/leadline/internal/session"
	"github.com/leadline/leadline/pkg/models"
)

type captureArchive struct {
	mu    sync.Mutex
	leads []models.LeadRecord
}

func (a *captureArchive) SaveLead(ctx context.Context, rec models.LeadRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leads = append(a.leads, rec)
	return nil
}

func (a *captureArchive) ListLeads(ctx context.Context, limit int) ([]models.LeadRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.LeadRecord(nil), a.leads...), nil
}

func (a *captureArchive) Close() error { return nil }

func (a *captureArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.leads)
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *captureNotifier) Name() string { return "capture" }

func (n *captureNotifier) Notify(ctx context.Context, notif notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestOrchestrator(gen llm.Generator) (*Orchestrator, *captureArchive, *captureNotifier) {
	arch := &captureArchive{}
	notifier := &captureNotifier{}
	reg := notify.NewRegistry()
	reg.Register(notifier)
	o := &Orchestrator{
		Sessions:  session.NewStore(30 * time.Minute),
		Generator: gen,
		Archive:   arch,
		Notifiers: reg,
	}
	return o, arch, notifier
}

func qualifiedInfo() *models.CustomerInfo {
	return &models.CustomerInfo{
		Name:              "Jane",
		Email:             "jane@acme.com",
		Phone:             "555-123-4567",
		Company:           "Acme",
		Title:             "VP of Operations",
		CompanySize:       "200",
		Timeline:          "this quarter",
		Budget:            "$500k",
		CurrentChallenges: []string{"manual onboarding"},
		Stakeholders:      []string{"CFO"},
	}
}

func TestHandleTurnEmptyMessage(t *testing.T) {
	t.Parallel()
	o, _, _ := newTestOrchestrator(llm.Static{})
	_, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{Message: "   "})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if o.Sessions.Len() != 0 {
		t.Fatal("empty message must not create a session")
	}
}

func TestHandleTurnCreatesSession(t *testing.T) {
	t.Parallel()
	o, _, _ := newTestOrchestrator(llm.Static{})
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	s, err := o.Sessions.Get(resp.SessionID)
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if len(s.Messages) != 2 {
		t.Fatalf("messages = %d, want user+assistant", len(s.Messages))
	}
	if s.Messages[0].Role != models.RoleUser || s.Messages[1].Role != models.RoleAssistant {
		t.Fatalf("message roles = %s/%s", s.Messages[0].Role, s.Messages[1].Role)
	}
	if s.ConversationType != models.ConversationChat {
		t.Fatalf("conversation type = %q, want chat", s.ConversationType)
	}
}

func TestHandleTurnForcedQuestion(t *testing.T) {
	t.Parallel()
	o, _, _ := newTestOrchestrator(llm.Static{Response: "natural reply"})
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:   "what does your product cost?",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.Metadata == nil || !resp.Metadata.ForcedQuestion {
		t.Fatal("expected forced question on empty customer info")
	}
	if resp.Response == "natural reply" {
		t.Fatal("forced turn must not use the generator")
	}
	if resp.Metadata.WorkflowStep == "" {
		t.Fatal("metadata missing workflow step")
	}
	if resp.NextAction != models.NodeContinue {
		t.Fatalf("NextAction = %q, want continue", resp.NextAction)
	}
}

func TestHandleTurnQualifiedLead(t *testing.T) {
	t.Parallel()
	o, _, notifier := newTestOrchestrator(llm.Static{Response: "Happy to walk you through it."})
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:      "We're evaluating options for automating onboarding.",
		SessionID:    "s1",
		CustomerInfo: qualifiedInfo(),
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.Metadata.ForcedQuestion {
		t.Fatal("complete info must allow a natural response")
	}
	if resp.Metadata.ComplianceScore != 100 {
		t.Fatalf("ComplianceScore = %d, want 100", resp.Metadata.ComplianceScore)
	}
	q := resp.Qualification
	if q == nil {
		t.Fatal("expected qualification")
	}
	// Budget 25 + VP 20 + this-quarter 12 + one challenge 3.
	if q.TotalScore != 60 {
		t.Fatalf("TotalScore = %d, want 60", q.TotalScore)
	}
	if !q.IsQualified || q.Tier != models.TierWarm {
		t.Fatalf("qualification = %+v", q)
	}
	if resp.NextAction != models.NodeRecommend {
		t.Fatalf("NextAction = %q, want recommend", resp.NextAction)
	}
	if len(resp.Recommendations) == 0 {
		t.Fatal("qualified lead should carry recommendations")
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
	s, _ := o.Sessions.Get("s1")
	if s.ConversationStatus != models.StatusQualified {
		t.Fatalf("status = %q, want qualified", s.ConversationStatus)
	}
}

func TestHandleTurnNotificationAtMostOnce(t *testing.T) {
	t.Parallel()
	o, _, notifier := newTestOrchestrator(llm.Static{})
	req := models.OrchestrateRequest{
		Message:      "still interested",
		SessionID:    "s1",
		CustomerInfo: qualifiedInfo(),
	}
	for i := 0; i < 3; i++ {
		if _, err := o.HandleTurn(context.Background(), req); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want exactly 1", notifier.count())
	}
}

func TestHandleTurnNotificationThresholdConfigurable(t *testing.T) {
	t.Parallel()
	// A raised threshold suppresses the notification without touching the
	// score's qualified flag.
	o, _, notifier := newTestOrchestrator(llm.Static{})
	o.QualifyThreshold = 70
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:      "we want to fix onboarding",
		SessionID:    "s1",
		CustomerInfo: qualifiedInfo(),
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.Qualification == nil || !resp.Qualification.IsQualified {
		t.Fatalf("qualification = %+v, want qualified", resp.Qualification)
	}
	if notifier.count() != 0 {
		t.Fatalf("notifications = %d, want 0 below threshold 70", notifier.count())
	}
}

func TestHandleTurnGenerationFailure(t *testing.T) {
	t.Parallel()
	o, _, _ := newTestOrchestrator(llm.Static{Err: errors.New("upstream 503")})
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:      "tell me about your product",
		SessionID:    "s1",
		CustomerInfo: qualifiedInfo(), // complete, so generation path is taken
	})
	if err != nil {
		t.Fatalf("generation failure must not fail the turn: %v", err)
	}
	if !resp.Metadata.GenerationFallback {
		t.Fatal("metadata should flag the fallback")
	}
	if resp.Response == "" {
		t.Fatal("fallback response must be non-empty")
	}
	if resp.Qualification == nil {
		t.Fatal("scoring must still run on generation failure")
	}
	s, _ := o.Sessions.Get("s1")
	if len(s.Errors) == 0 || !s.Errors[0].Recovered {
		t.Fatalf("expected recovered error entry, got %+v", s.Errors)
	}
	var failed bool
	for _, e := range s.AgentExecutions {
		if e.AgentID == "generator" && e.Status == session.ExecFailed {
			failed = true
		}
	}
	if !failed {
		t.Fatal("expected failed generator execution record")
	}
}

func TestHandleTurnEndingArchivesAndRemoves(t *testing.T) {
	t.Parallel()
	o, arch, _ := newTestOrchestrator(llm.Static{})

	// First turn establishes the qualified session.
	if _, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:      "looking to automate onboarding",
		SessionID:    "s1",
		CustomerInfo: qualifiedInfo(),
	}); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:   "great, that's all — goodbye!",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("ending turn: %v", err)
	}
	if resp.NextAction != models.NodeEnd {
		t.Fatalf("NextAction = %q, want end", resp.NextAction)
	}
	if arch.count() != 1 {
		t.Fatalf("archived leads = %d, want 1", arch.count())
	}
	if _, err := o.Sessions.Get("s1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("ended session still present: err=%v", err)
	}
	rec := arch.leads[0]
	if rec.SessionID != "s1" || !rec.IsQualified {
		t.Fatalf("lead record = %+v", rec)
	}
}

func TestHandleTurnEndingBlockedKeepsSession(t *testing.T) {
	t.Parallel()
	o, arch, _ := newTestOrchestrator(llm.Static{})
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:   "ok bye",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !resp.Metadata.ForcedQuestion {
		t.Fatal("ending with missing fields must force a question")
	}
	if arch.count() != 0 {
		t.Fatal("blocked ending must not archive")
	}
	if _, err := o.Sessions.Get("s1"); err != nil {
		t.Fatalf("blocked ending removed the session: %v", err)
	}
}

func TestHandleTurnInfoMergeAcrossTurns(t *testing.T) {
	t.Parallel()
	o, _, _ := newTestOrchestrator(llm.Static{})

	if _, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:      "our onboarding is a mess",
		SessionID:    "s1",
		CustomerInfo: &models.CustomerInfo{Email: "jane@acme.com", CurrentChallenges: []string{"onboarding"}},
	}); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// Second turn adds fields; earlier facts must survive an absent field.
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:      "I'm the VP over at Acme",
		SessionID:    "s1",
		CustomerInfo: &models.CustomerInfo{Company: "Acme", Title: "VP"},
	})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	s, _ := o.Sessions.Get("s1")
	if s.CustomerInfo.Email != "jane@acme.com" {
		t.Fatalf("email lost on merge: %q", s.CustomerInfo.Email)
	}
	if s.CustomerInfo.Company != "Acme" || s.CustomerInfo.Title != "VP" {
		t.Fatalf("new fields not merged: %+v", s.CustomerInfo)
	}
	if resp.Metadata.ComplianceScore <= 0 {
		t.Fatal("compliance should reflect accumulated fields")
	}
}

func TestHandleTurnRecreatesSweptSession(t *testing.T) {
	t.Parallel()
	o, _, _ := newTestOrchestrator(llm.Static{})
	// Unknown session id with a message: treated as a fresh conversation.
	resp, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message:   "hello again",
		SessionID: "expired-id",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.SessionID != "expired-id" {
		t.Fatalf("session id = %q", resp.SessionID)
	}
	if _, err := o.Sessions.Get("expired-id"); err != nil {
		t.Fatalf("session not recreated: %v", err)
	}
}

func TestEndSession(t *testing.T) {
	t.Parallel()
	o, arch, _ := newTestOrchestrator(llm.Static{})
	if _, err := o.HandleTurn(context.Background(), models.OrchestrateRequest{
		Message: "hi", SessionID: "s1",
	}); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if err := o.EndSession(context.Background(), "s1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if arch.count() != 1 {
		t.Fatalf("archived = %d, want 1", arch.count())
	}
	// A barely-engaged session archives as nurture.
	if arch.leads[0].Tier != models.TierNurture {
		t.Fatalf("tier = %q, want nurture", arch.leads[0].Tier)
	}
	if err := o.EndSession(context.Background(), "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("second EndSession err = %v, want ErrNotFound", err)
	}
}
