// Package notify pushes lifecycle events to an external automation
// workflow (an n8n webhook in practice).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Event string

const (
	EventProjectCreated        Event = "project_created"
	EventProjectUpdated        Event = "project_updated"
	EventNoteAttachedToProject Event = "note_attached_to_project"
	EventProjectTriggered      Event = "project_triggered"
)

const DefaultTimeout = 10 * time.Second

// Notifier is fire-and-forget: Notify never returns an error and never
// blocks the caller on the network.
type Notifier interface {
	Notify(event Event, projectID uuid.UUID, extra map[string]any)
}

// Nop is used when no webhook URL is configured.
type Nop struct{}

func (Nop) Notify(Event, uuid.UUID, map[string]any) {}

// Webhook POSTs {"event", "project_id", ...extra} as JSON.
type Webhook struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Webhook for url, or Nop when url is empty.
func New(url string, timeout time.Duration, logger *zap.Logger) Notifier {
	if url == "" {
		return Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

func (w *Webhook) Notify(event Event, projectID uuid.UUID, extra map[string]any) {
	go func() {
		// Detached from the request context: the HTTP response has usually
		// been written by the time the webhook answers.
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.Send(ctx, event, projectID, extra); err != nil {
			w.logger.Warn("webhook delivery failed",
				zap.String("event", string(event)),
				zap.String("project_id", projectID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Send delivers one event synchronously.
func (w *Webhook) Send(ctx context.Context, event Event, projectID uuid.UUID, extra map[string]any) error {
	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload["event"] = string(event)
	payload["project_id"] = projectID.String()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	w.logger.Debug("webhook delivered",
		zap.String("event", string(event)),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
