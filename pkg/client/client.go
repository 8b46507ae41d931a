// Package client provides a Go SDK for the Leadline HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/leadline/leadline/pkg/models"
)

// Client calls the Leadline HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3764"
	APIKey     string       // optional; set for X-API-Key / api_key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:3764").
// APIKey is optional; when set, requests carry the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Orchestrate runs one conversation turn.
func (c *Client) Orchestrate(ctx context.Context, req models.OrchestrateRequest) (*models.OrchestrateResponse, error) {
	var out models.OrchestrateResponse
	err := c.doJSON(ctx, http.MethodPost, "/orchestrate", req, &out)
	return &out, err
}

// ListSessions returns active sessions with aggregate stats.
func (c *Client) ListSessions(ctx context.Context, limit int) (*models.SessionList, error) {
	path := "/orchestrate"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out models.SessionList
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return &out, err
}

// GetSession returns the detail view of one session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	var out models.SessionDetail
	err := c.doJSON(ctx, http.MethodGet, "/orchestrate?sessionId="+url.QueryEscape(sessionID), nil, &out)
	return &out, err
}

// EndSession archives and removes a session.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/orchestrate?sessionId="+url.QueryEscape(sessionID), nil, nil)
}

// ListLeads returns archived lead records, newest first.
func (c *Client) ListLeads(ctx context.Context, limit int) ([]models.LeadRecord, error) {
	path := "/leads"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Leads []models.LeadRecord `json:"leads"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out.Leads, err
}
