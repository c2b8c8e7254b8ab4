// Package email implements an SMTP-based alert digest notifier
package email

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/newthinker/tradelab/internal/notifier"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements notifier.Notifier for SMTP email
type Email struct {
	cfg  Config
	send sendFunc
}

// New creates a new Email notifier
func New(cfg Config) (*Email, error) {
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("email: host, from, and to are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: smtp.SendMail}, nil
}

func (e *Email) Name() string { return "email" }

// Send mails one HTML digest for the batch. smtp.SendMail does not take a
// context, so ctx is only checked before dialing.
func (e *Email) Send(ctx context.Context, alerts []notifier.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("tradelab: %s %s", alerts[0].Symbol, actionName(alerts[0]))
	if len(alerts) > 1 {
		subject = fmt.Sprintf("tradelab digest: %d trading signals", len(alerts))
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.send(addr, auth, e.cfg.From, e.cfg.To, e.message(subject, alerts)); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (e *Email) message(subject string, alerts []notifier.Alert) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(e.cfg.To, ","))
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")

	sb.WriteString("<html><body><h2>Trading Signals</h2><hr>")
	for _, a := range alerts {
		sb.WriteString(formatHTML(a))
		sb.WriteString("<hr>")
	}
	sb.WriteString("</body></html>")
	return []byte(sb.String())
}

func formatHTML(a notifier.Alert) string {
	color := "#28a745"
	if a.Action.IsSell() {
		color = "#dc3545"
	}

	return fmt.Sprintf(`
<div style="margin: 10px 0;">
  <h3 style="color: %s;">%s - %s</h3>
  <p><strong>Strength:</strong> %+.2f</p>
  <p><strong>Price:</strong> $%.2f</p>
  <p><strong>Reasons:</strong> %s</p>
  <p><small>%s</small></p>
</div>
`,
		color,
		html.EscapeString(a.Symbol),
		actionName(a),
		a.Strength,
		a.Price,
		html.EscapeString(strings.Join(a.Reasons, ", ")),
		a.BarTime.Format("2006-01-02 15:04"),
	)
}

func actionName(a notifier.Alert) string {
	return strings.ToUpper(strings.ReplaceAll(string(a.Action), "_", " "))
}
