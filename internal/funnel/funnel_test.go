package funnel

import (
	"testing"

	"github.com/leadline/leadline/pkg/models"
)

func fullInfo() models.CustomerInfo {
	return models.CustomerInfo{
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

func TestGetStateEmpty(t *testing.T) {
	t.Parallel()
	st := GetState(models.CustomerInfo{})
	if st.CanProceed {
		t.Fatal("empty info must not proceed")
	}
	if st.Current != StepInitial {
		t.Fatalf("Current = %s, want INITIAL", st.Current)
	}
	if st.NextRequired != StepChallenges {
		t.Fatalf("NextRequired = %s, want CHALLENGES", st.NextRequired)
	}
	if st.ComplianceScore != 0 {
		t.Fatalf("ComplianceScore = %d, want 0", st.ComplianceScore)
	}
	if len(st.MissingSteps) != TotalMandatory() {
		t.Fatalf("MissingSteps = %d, want %d", len(st.MissingSteps), TotalMandatory())
	}
}

func TestGetStateComplete(t *testing.T) {
	t.Parallel()
	st := GetState(fullInfo())
	if !st.CanProceed {
		t.Fatalf("complete info must proceed; missing %v", st.MissingSteps)
	}
	if st.Current != StepQualified {
		t.Fatalf("Current = %s, want QUALIFIED", st.Current)
	}
	if st.ComplianceScore != 100 {
		t.Fatalf("ComplianceScore = %d, want 100", st.ComplianceScore)
	}
	if st.NextRequired != StepNone {
		t.Fatalf("NextRequired = %s, want none", st.NextRequired)
	}
}

func TestGetStateFirstGapSemantics(t *testing.T) {
	t.Parallel()
	// Out-of-order answers: budget known, challenges missing. The funnel
	// must still demand the earliest gap.
	info := fullInfo()
	info.CurrentChallenges = nil
	st := GetState(info)
	if st.CanProceed {
		t.Fatal("must not proceed with a gap")
	}
	if st.NextRequired != StepChallenges {
		t.Fatalf("NextRequired = %s, want CHALLENGES", st.NextRequired)
	}
	// 8 of 9 done.
	if st.ComplianceScore != 89 {
		t.Fatalf("ComplianceScore = %d, want 89", st.ComplianceScore)
	}
}

func TestGetStateCompletenessRules(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*models.CustomerInfo)
		missing Step
	}{
		{"email without at-sign", func(c *models.CustomerInfo) { c.Email = "not-an-email" }, StepEmail},
		{"phone too short", func(c *models.CustomerInfo) { c.Phone = "555-1234" }, StepPhone},
		{"blank company", func(c *models.CustomerInfo) { c.Company = "   " }, StepCompany},
		{"no role", func(c *models.CustomerInfo) { c.Title = ""; c.Role = "" }, StepRole},
		{"no size", func(c *models.CustomerInfo) { c.CompanySize = "" }, StepSize},
		{"no timeline", func(c *models.CustomerInfo) { c.Timeline = "" }, StepTimeline},
		{"no stakeholders", func(c *models.CustomerInfo) { c.Stakeholders = nil }, StepStakeholders},
		{"no budget", func(c *models.CustomerInfo) { c.Budget = "" }, StepBudget},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			info := fullInfo()
			tc.mutate(&info)
			st := GetState(info)
			if st.CanProceed {
				t.Fatal("must not proceed")
			}
			if st.NextRequired != tc.missing {
				t.Fatalf("NextRequired = %s, want %s", st.NextRequired, tc.missing)
			}
		})
	}
}

func TestGetStateRoleFallback(t *testing.T) {
	t.Parallel()
	info := fullInfo()
	info.Title = ""
	info.Role = "decision_maker"
	if st := GetState(info); !st.CanProceed {
		t.Fatalf("Role alone should satisfy the role step; missing %v", st.MissingSteps)
	}
}

func TestGetStateIdempotent(t *testing.T) {
	t.Parallel()
	info := fullInfo()
	info.Budget = ""
	a := GetState(info)
	b := GetState(info)
	if a.NextRequired != b.NextRequired || a.ComplianceScore != b.ComplianceScore || a.CanProceed != b.CanProceed {
		t.Fatalf("GetState not idempotent: %+v vs %+v", a, b)
	}
}

func TestEnforceForcedQuestion(t *testing.T) {
	t.Parallel()
	e := EnforceNextStep(models.CustomerInfo{}, "Tell me about your pricing")
	if e.AllowNaturalResponse {
		t.Fatal("expected forced question for first gap")
	}
	if e.Step != StepChallenges {
		t.Fatalf("forced step = %s, want CHALLENGES", e.Step)
	}
	if e.Question != Question(StepChallenges) {
		t.Fatalf("question = %q", e.Question)
	}
}

func TestEnforcePlausibleAnswerAllowsNatural(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		info func() models.CustomerInfo
		msg  string
	}{
		{"challenges keyword", func() models.CustomerInfo { return models.CustomerInfo{} },
			"Our biggest problem is customer churn"},
		{"email in message", func() models.CustomerInfo {
			i := fullInfo()
			i.Email = ""
			return i
		}, "sure, it's jane@acme.com"},
		{"phone digits", func() models.CustomerInfo {
			i := fullInfo()
			i.Phone = ""
			return i
		}, "you can call me at 555-867-5309 x12"},
		{"size digits", func() models.CustomerInfo {
			i := fullInfo()
			i.CompanySize = ""
			return i
		}, "we're about 250 right now"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := EnforceNextStep(tc.info(), tc.msg)
			if !e.AllowNaturalResponse {
				t.Fatalf("expected natural response, got forced %s: %q", e.Step, e.Question)
			}
		})
	}
}

func TestEnforceEndingBlocked(t *testing.T) {
	t.Parallel()
	info := fullInfo()
	info.Budget = ""
	e := EnforceNextStep(info, "Thanks, gotta go — bye!")
	if e.AllowNaturalResponse {
		t.Fatal("ending with missing budget must be blocked")
	}
	if !e.EndingBlocked {
		t.Fatal("EndingBlocked not set")
	}
	if e.Step != StepBudget {
		t.Fatalf("blocked step = %s, want BUDGET", e.Step)
	}
	if e.Question == "" {
		t.Fatal("blocked ending must carry the forced question")
	}
}

func TestEnforceCompleteAllowsEverything(t *testing.T) {
	t.Parallel()
	for _, msg := range []string{"bye", "what about pricing?", "ok"} {
		if e := EnforceNextStep(fullInfo(), msg); !e.AllowNaturalResponse {
			t.Fatalf("complete info forced a question on %q", msg)
		}
	}
}

func TestIsEnding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg  string
		want bool
	}{
		{"ok goodbye", true},
		{"that's all for today", true},
		{"no more questions", true},
		{"what does it cost?", false},
		{"tell me more about the product", false},
	}
	for _, tc := range tests {
		if got := IsEnding(tc.msg); got != tc.want {
			t.Errorf("IsEnding(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestQuestionUnknownStep(t *testing.T) {
	t.Parallel()
	if q := Question(StepInitial); q != "" {
		t.Fatalf("Question(INITIAL) = %q, want empty", q)
	}
}
