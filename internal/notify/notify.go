// Package notify delivers qualified-lead notifications to external channels
// (e.g. Slack). The orchestrator enforces at-most-once delivery per session
// and type; notifiers only deliver.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Notification is one qualified-lead alert.
type Notification struct {
	Type      string // models.NotifyFollowUp or models.NotifyMeeting
	SessionID string
	Email     string
	Name      string
	Company   string
	Tier      string
	Score     int
}

// Notifier delivers a notification to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Registry holds configured notifiers by name.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[n.Name()] = n
}

// NotifyAll fans the notification out to every registered notifier. Delivery
// failures are logged, not propagated; a flaky webhook must not fail a turn.
func (r *Registry) NotifyAll(ctx context.Context, n Notification) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, notifier := range r.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			slog.Warn("notification delivery failed", "notifier", notifier.Name(), "session", n.SessionID, "err", err)
		}
	}
}

// SlackWebhook posts lead alerts to a Slack incoming webhook.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, n Notification) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	text := fmt.Sprintf("New %s lead (%s, score %d): %s <%s>", n.Tier, n.Type, n.Score, n.Name, n.Email)
	if n.Company != "" {
		text += " at " + n.Company
	}
	payload := map[string]any{"text": text}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Log writes notifications to the service log; the default when no external
// channel is configured.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Notify(ctx context.Context, n Notification) error {
	slog.Info("lead notification",
		"type", n.Type,
		"session", n.SessionID,
		"tier", n.Tier,
		"score", n.Score,
		"email", n.Email)
	return nil
}

// FromEnvValues builds a registry from configuration values; falls back to
// the log notifier when nothing external is configured.
func FromEnvValues(slackWebhookURL string) *Registry {
	reg := NewRegistry()
	if slackWebhookURL != "" {
		reg.Register(SlackWebhook{WebhookURL: slackWebhookURL})
	} else {
		reg.Register(Log{})
	}
	return reg
}
