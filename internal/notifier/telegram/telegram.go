// Package telegram sends alert digests through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/notifier"
)

const defaultBaseURL = "https://api.telegram.org"

// Telegram implements notifier.Notifier for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// Option configures a Telegram notifier.
type Option func(*Telegram)

// WithBaseURL overrides the Bot API endpoint.
func WithBaseURL(url string) Option {
	return func(t *Telegram) { t.baseURL = strings.TrimRight(url, "/") }
}

// New creates a new Telegram notifier
func New(botToken, chatID string, opts ...Option) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	t := &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

// Send posts one message covering every alert.
func (t *Telegram) Send(ctx context.Context, alerts []notifier.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return t.sendMessage(ctx, Format(alerts))
}

// Format renders alerts as a Markdown message.
func Format(alerts []notifier.Alert) string {
	var sb strings.Builder
	if len(alerts) > 1 {
		fmt.Fprintf(&sb, "*%d Trading Signals*\n\n", len(alerts))
	}

	for i, a := range alerts {
		marker := "📈"
		if a.Action.IsSell() {
			marker = "📉"
		}

		fmt.Fprintf(&sb, "%s *%s* - %s\n", marker, a.Symbol, strings.ToUpper(strings.ReplaceAll(string(a.Action), "_", " ")))
		fmt.Fprintf(&sb, "Strength: %+.2f\n", a.Strength)
		if a.Price > 0 {
			fmt.Fprintf(&sb, "Price: $%.2f\n", a.Price)
		}
		if len(a.Reasons) > 0 {
			fmt.Fprintf(&sb, "Reasons: %s\n", strings.Join(a.Reasons, ", "))
		}
		if !a.BarTime.IsZero() {
			fmt.Fprintf(&sb, "Bar: %s", a.BarTime.Format("2006-01-02 15:04"))
		}

		if i < len(alerts)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
