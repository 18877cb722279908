// Package notify delivers terminal job events to downstream subscribers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"docenhance/internal/classify"
	"docenhance/internal/document"
	"docenhance/internal/logger"
)

// Event is the outbound message emitted when a job reaches a terminal state.
type Event struct {
	Ref     document.Reference `json:"document_ref"`
	State   string             `json:"state"`
	Summary *classify.Summary  `json:"summary,omitempty"`
}

// Notifier delivers terminal job events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Webhook posts events as JSON to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.WithComponent("notify"),
	}
}

// Notify posts the event. Delivery is best-effort; failures are returned for
// the caller to log but never retried.
func (w *Webhook) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}

	w.log.Debug().
		Str("document", event.Ref.String()).
		Str("state", event.State).
		Msg("Notification delivered")
	return nil
}
