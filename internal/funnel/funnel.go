// Package funnel is the workflow enforcer: a pure state machine over the
// ordered intake steps that guarantees mandatory customer facts are collected
// before a conversation is allowed to conclude.
package funnel

import (
	"math"
	"strings"

	"github.com/leadline/leadline/pkg/models"
)

// Step is one state of the intake funnel.
type Step string

// Funnel steps in canonical order. QUALIFIED and COMPLETED are terminal with
// respect to enforcement.
const (
	StepInitial      Step = "INITIAL"
	StepChallenges   Step = "CHALLENGES"
	StepEmail        Step = "EMAIL"
	StepPhone        Step = "PHONE"
	StepCompany      Step = "COMPANY"
	StepRole         Step = "ROLE"
	StepSize         Step = "SIZE"
	StepTimeline     Step = "TIMELINE"
	StepStakeholders Step = "STAKEHOLDERS"
	StepBudget       Step = "BUDGET"
	StepQualified    Step = "QUALIFIED"
	StepCompleted    Step = "COMPLETED"

	// StepNone means no further step is required.
	StepNone Step = ""
)

// rule binds a mandatory step to its completeness predicate, the heuristic
// that decides whether a user message plausibly answers it, and the canonical
// question asked when enforcement forces the step.
type rule struct {
	step     Step
	complete func(models.CustomerInfo) bool
	answers  func(msg string) bool
	question string
}

// mandatory is the ordered rule table; order defines the funnel. Additions
// are data changes, not code changes.
var mandatory = []rule{
	{
		step:     StepChallenges,
		complete: func(c models.CustomerInfo) bool { return len(c.CurrentChallenges) > 0 },
		answers:  anyKeyword("challenge", "problem", "issue", "struggl", "difficult", "pain", "need help", "improve"),
		question: "Before we go further, could you tell me about the main challenges your business is facing right now?",
	},
	{
		step:     StepEmail,
		complete: func(c models.CustomerInfo) bool { return strings.Contains(c.Email, "@") },
		answers:  func(msg string) bool { return strings.Contains(msg, "@") },
		question: "What's the best email address to reach you at?",
	},
	{
		step:     StepPhone,
		complete: func(c models.CustomerInfo) bool { return digitCount(c.Phone) >= 10 },
		answers:  func(msg string) bool { return digitCount(msg) >= 10 },
		question: "Could you share a phone number where we can follow up with you?",
	},
	{
		step:     StepCompany,
		complete: func(c models.CustomerInfo) bool { return strings.TrimSpace(c.Company) != "" },
		answers:  anyKeyword("company", "we're called", "work at", "work for", "called", "inc", "llc", "ltd", "corp"),
		question: "What company are you with?",
	},
	{
		step:     StepRole,
		complete: func(c models.CustomerInfo) bool { return strings.TrimSpace(c.Title) != "" || strings.TrimSpace(c.Role) != "" },
		answers: anyKeyword("ceo", "cto", "cfo", "coo", "founder", "owner", "president", "vp", "vice president",
			"director", "manager", "head of", "lead", "i'm the", "i am the", "my role", "my title"),
		question: "And what's your role there?",
	},
	{
		step:     StepSize,
		complete: func(c models.CustomerInfo) bool { return strings.TrimSpace(c.CompanySize) != "" },
		answers: func(msg string) bool {
			if digitCount(msg) > 0 {
				return true
			}
			return anyKeyword("employee", "people", "person", "startup", "small", "mid-size", "medium", "large", "enterprise", "team of")(msg)
		},
		question: "Roughly how large is your company — how many employees?",
	},
	{
		step:     StepTimeline,
		complete: func(c models.CustomerInfo) bool { return strings.TrimSpace(c.Timeline) != "" },
		answers: anyKeyword("asap", "immediately", "right away", "this week", "this month", "this quarter",
			"this year", "next year", "next month", "next quarter", "soon", "months", "weeks", "exploring", "no rush"),
		question: "What timeline are you working with for getting a solution in place?",
	},
	{
		step:     StepStakeholders,
		complete: func(c models.CustomerInfo) bool { return len(c.Stakeholders) > 0 },
		answers: anyKeyword("stakeholder", "my team", "the board", "my boss", "my partner", "colleague",
			"committee", "just me", "myself", "on my own", "decision with"),
		question: "Who else would be involved in making this decision?",
	},
	{
		step:     StepBudget,
		complete: func(c models.CustomerInfo) bool { return strings.TrimSpace(c.Budget) != "" },
		answers: func(msg string) bool {
			if strings.Contains(msg, "$") {
				return true
			}
			return anyKeyword("budget", "allocated", "approved", "spend", "invest", "thousand", "million", "100k", "50k")(msg)
		},
		question: "Do you have a budget range in mind for this project?",
	},
}

// endingPhrases trigger the end-of-conversation heuristic. Matching is
// substring over the lower-cased message.
var endingPhrases = []string{
	"bye", "goodbye", "that's all", "thats all", "that is all",
	"gotta go", "have to go", "talk later", "see you", "take care",
	"no more questions", "nothing else", "we're done", "i'm done", "thanks, that's it",
}

// State is the derived workflow state; recomputed from CustomerInfo on
// demand, never persisted.
type State struct {
	Current         Step
	CompletedSteps  []Step
	MissingSteps    []Step
	CanProceed      bool
	NextRequired    Step
	ComplianceScore int // 0–100, percentage of mandatory fields present
}

// Enforcement is the decision for one user turn: either a forced question for
// the first gap in the funnel, or permission to answer naturally.
type Enforcement struct {
	AllowNaturalResponse bool
	Step                 Step
	Question             string
	EndingBlocked        bool // the user tried to close out with fields missing
}

// TotalMandatory is the number of mandatory intake fields.
func TotalMandatory() int { return len(mandatory) }

// Question returns the canonical question for a mandatory step, or "".
func Question(step Step) string {
	for _, r := range mandatory {
		if r.step == step {
			return r.question
		}
	}
	return ""
}

// GetState computes the workflow state for the given customer facts.
// Out-of-order answers still advance CompletedSteps; Current and NextRequired
// always reflect the first gap in canonical order.
func GetState(info models.CustomerInfo) State {
	st := State{
		Current:        StepInitial,
		CompletedSteps: []Step{StepInitial},
		NextRequired:   StepNone,
	}
	prev := StepInitial
	for _, r := range mandatory {
		if r.complete(info) {
			st.CompletedSteps = append(st.CompletedSteps, r.step)
		} else {
			st.MissingSteps = append(st.MissingSteps, r.step)
			if st.NextRequired == StepNone {
				st.NextRequired = r.step
				st.Current = prev
			}
		}
		prev = r.step
	}
	done := len(st.CompletedSteps) - 1 // exclude INITIAL
	st.ComplianceScore = int(math.Round(100 * float64(done) / float64(len(mandatory))))
	if len(st.MissingSteps) == 0 {
		st.CanProceed = true
		st.Current = StepQualified
	}
	return st
}

// EnforceNextStep decides whether the turn must be answered with a forced
// question. Pure: identical inputs yield identical output.
func EnforceNextStep(info models.CustomerInfo, userMessage string) Enforcement {
	st := GetState(info)
	if st.CanProceed {
		return Enforcement{AllowNaturalResponse: true}
	}
	msg := strings.ToLower(userMessage)

	// The conversation must not end while mandatory data is outstanding.
	if IsEnding(msg) {
		return Enforcement{
			Step:          st.NextRequired,
			Question:      Question(st.NextRequired),
			EndingBlocked: true,
		}
	}

	for _, r := range mandatory {
		if r.step != st.NextRequired {
			continue
		}
		if r.answers(msg) {
			// The message plausibly carries the needed fact; let extraction
			// and free-form generation handle it.
			return Enforcement{AllowNaturalResponse: true}
		}
		return Enforcement{Step: r.step, Question: r.question}
	}
	return Enforcement{AllowNaturalResponse: true}
}

// IsEnding reports whether the message matches the end-of-conversation
// phrase table. Matching is over the lower-cased message.
func IsEnding(msg string) bool {
	for _, p := range endingPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func anyKeyword(words ...string) func(string) bool {
	return func(msg string) bool {
		for _, w := range words {
			if strings.Contains(msg, w) {
				return true
			}
		}
		return false
	}
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
