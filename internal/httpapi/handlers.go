package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/leadline/leadline/internal/archive"
	"github.com/leadline/leadline/internal/funnel"
	"github.com/leadline/leadline/internal/orchestrator"
	"github.com/leadline/leadline/internal/session"
	"github.com/leadline/leadline/pkg/models"
)

type handlers struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Store
	arch     archive.Archive
}

// orchestrate routes /orchestrate by method: POST runs a turn, GET inspects
// sessions, DELETE ends one.
func (h *handlers) orchestrate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.postTurn(w, r)
	case http.MethodGet:
		h.getSessions(w, r)
	case http.MethodDelete:
		h.endSession(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *handlers) postTurn(w http.ResponseWriter, r *http.Request) {
	var req models.OrchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	resp, err := h.orch.HandleTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyMessage) {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}
		// Internal faults still return a usable conversational reply; the
		// raw error goes to the log, not the caller.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.OrchestrateResponse{
			Response:  "Apologies — something went wrong on our end. Please try again.",
			SessionID: req.SessionID,
		})
		return
	}
	writeJSON(w, resp)
}

func (h *handlers) getSessions(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("sessionId"); id != "" {
		s, err := h.sessions.Get(id)
		if errors.Is(err, session.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, toDetail(s))
		return
	}

	limit := models.DefaultSessionListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		var n int
		if c, _ := fmt.Sscanf(l, "%d", &n); c == 1 && n > 0 && n < limit {
			limit = n
		}
	}
	active := h.sessions.List(limit)
	list := models.SessionList{Sessions: make([]models.SessionSummary, 0, len(active))}
	agg := models.AggregateStats{TiersByCount: map[string]int{}}
	var scoreSum, engagementSum int
	for _, s := range active {
		list.Sessions = append(list.Sessions, toSummary(s))
		agg.ActiveSessions++
		engagementSum += s.Analytics.EngagementScore
		if q := s.Qualification; q != nil {
			scoreSum += q.TotalScore
			agg.TiersByCount[q.Tier]++
			if q.IsQualified {
				agg.QualifiedLeads++
			}
		}
	}
	if agg.ActiveSessions > 0 {
		agg.AvgTotalScore = float64(scoreSum) / float64(agg.ActiveSessions)
		agg.AvgEngagement = float64(engagementSum) / float64(agg.ActiveSessions)
	}
	list.Aggregate = agg
	writeJSON(w, list)
}

func (h *handlers) endSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId query required")
		return
	}
	if err := h.orch.EndSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "sessionId": id})
}

// leads serves archived lead records (GET /leads?limit=N).
func (h *handlers) leads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		var n int
		if c, _ := fmt.Sscanf(l, "%d", &n); c == 1 && n > 0 && n <= 1000 {
			limit = n
		}
	}
	leads, err := h.arch.ListLeads(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if leads == nil {
		leads = []models.LeadRecord{}
	}
	writeJSON(w, map[string]any{"leads": leads})
}

func toSummary(s *session.Session) models.SessionSummary {
	sum := models.SessionSummary{
		SessionID:        s.SessionID,
		ConversationType: s.ConversationType,
		Status:           s.ConversationStatus,
		Phase:            s.CurrentPhase,
		MessageCount:     len(s.Messages),
		StartTime:        s.StartTime,
		LastUpdateTime:   s.LastUpdateTime,
	}
	if q := s.Qualification; q != nil {
		sum.TotalScore = q.TotalScore
		sum.Tier = q.Tier
	}
	return sum
}

func toDetail(s *session.Session) models.SessionDetail {
	d := models.SessionDetail{
		SessionSummary: toSummary(s),
		CustomerInfo:   s.CustomerInfo,
	}
	if q := s.Qualification; q != nil {
		qq := *q
		d.Qualification = &qq
	}
	d.Analytics = &models.Analytics{
		EngagementScore:       s.Analytics.EngagementScore,
		SentimentTrend:        s.Analytics.SentimentTrend,
		ConversionProbability: s.Analytics.ConversionProbability,
	}
	state := funnel.GetState(s.CustomerInfo)
	for _, st := range state.MissingSteps {
		d.MissingSteps = append(d.MissingSteps, string(st))
	}
	return d
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
