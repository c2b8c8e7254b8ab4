// Package notifier delivers signal alerts to external channels.
package notifier

import (
	"context"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// Alert is one actionable signal raised by a watchlist scan.
type Alert struct {
	ID       string      `json:"id"`
	Symbol   string      `json:"symbol"`
	Action   core.Action `json:"action"`
	Strength float64     `json:"strength"`
	Price    float64     `json:"price"`
	Reasons  []string    `json:"reasons"`
	Summary  string      `json:"summary"`
	// BarTime is the timestamp of the bar the signal was computed on.
	BarTime  time.Time `json:"bar_time"`
	RaisedAt time.Time `json:"raised_at"`
}

// Notifier defines the interface for alert delivery
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers a batch of alerts. Implementations must not retain alerts.
	Send(ctx context.Context, alerts []Alert) error
}
