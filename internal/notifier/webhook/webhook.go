// Package webhook posts alert batches as JSON to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/tradelab/internal/notifier"
)

// Payload is the JSON body posted for each batch.
type Payload struct {
	Type   string           `json:"type"`
	Count  int              `json:"count"`
	Alerts []notifier.Alert `json:"alerts"`
}

// Webhook implements notifier.Notifier for HTTP webhooks
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

// Send posts all alerts in one request.
func (w *Webhook) Send(ctx context.Context, alerts []notifier.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(Payload{Type: "signals", Count: len(alerts), Alerts: alerts})
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
