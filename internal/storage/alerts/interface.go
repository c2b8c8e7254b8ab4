// Package alerts keeps the history of routed signal alerts.
package alerts

import (
	"context"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/notifier"
)

// Store defines the interface for alert history.
type Store interface {
	// Save records an alert and assigns its ID.
	Save(ctx context.Context, alert notifier.Alert) (notifier.Alert, error)

	// GetByID retrieves an alert by its ID.
	GetByID(ctx context.Context, id string) (notifier.Alert, error)

	// List returns matching alerts, newest first.
	List(ctx context.Context, filter ListFilter) ([]notifier.Alert, error)

	// Count returns the number of alerts matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing alerts.
type ListFilter struct {
	Symbol string
	Action core.Action
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
