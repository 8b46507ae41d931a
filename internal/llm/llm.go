// Package llm abstracts the external response-generation capability. The
// orchestrator consumes it as an opaque "generate text" call; failures are
// recoverable per-turn.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChatMessage is one turn of history passed to the generator.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the next assistant response from a system prompt and the
// conversation history. Implementations may fail (network, timeout); callers
// treat that as a recoverable per-turn failure.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []ChatMessage) (string, error)
}

// OpenAI calls an OpenAI-compatible chat completions API.
type OpenAI struct {
	BaseURL    string       // e.g. https://api.openai.com
	APIKey     string
	Model      string       // e.g. gpt-4o-mini
	HTTPClient *http.Client // optional; nil uses a 30s-timeout client
}

func (o *OpenAI) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Generate posts the history to /v1/chat/completions and returns the first
// choice's content.
func (o *OpenAI) Generate(ctx context.Context, systemPrompt string, history []ChatMessage) (string, error) {
	model := o.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	messages := make([]map[string]any, 0, len(history)+1)
	messages = append(messages, map[string]any{"role": "system", "content": systemPrompt})
	for _, m := range history {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": messages,
	})
	if err != nil {
		return "", err
	}
	url := strings.TrimSuffix(o.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	resp, err := o.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation API returned %d", resp.StatusCode)
	}
	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("generation API returned no choices")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// Static returns a fixed response; used in tests and when the service runs
// without an API key.
type Static struct {
	Response string
	Err      error
}

func (s Static) Generate(ctx context.Context, systemPrompt string, history []ChatMessage) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if s.Response != "" {
		return s.Response, nil
	}
	return "Thanks for sharing that — could you tell me a bit more about what you're looking for?", nil
}
