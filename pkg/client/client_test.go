package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadline/leadline/pkg/models"
)

func TestClientOrchestrate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orchestrate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "k1" {
			t.Errorf("X-API-Key = %q", got)
		}
		var req models.OrchestrateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(models.OrchestrateResponse{
			Response:  "hi " + req.Message,
			SessionID: "s1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "k1")
	resp, err := c.Orchestrate(context.Background(), models.OrchestrateRequest{Message: "there"})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if resp.Response != "hi there" || resp.SessionID != "s1" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestClientErrorBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetSession(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "api GET /orchestrate?sessionId=nope: session not found" {
		t.Fatalf("err = %q", got)
	}
}

func TestClientEndSessionQueryEscaping(t *testing.T) {
	t.Parallel()
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("sessionId")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.EndSession(context.Background(), "a b&c"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if gotQuery != "a b&c" {
		t.Fatalf("sessionId round-trip = %q", gotQuery)
	}
}

func TestClientListLeadsLimit(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"leads": []models.LeadRecord{{SessionID: "s1", Tier: "hot"}},
		})
	}))
	defer srv.Close()

	leads, err := New(srv.URL, "").ListLeads(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(leads) != 1 || leads[0].Tier != "hot" {
		t.Fatalf("leads = %+v", leads)
	}
}
