package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/notifier"
)

// MemoryStore is a bounded in-memory alert history. Once full the oldest
// alert is dropped.
type MemoryStore struct {
	alerts  []notifier.Alert
	maxSize int
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryStore{
		alerts:  make([]notifier.Alert, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Save appends alert, filling in ID and RaisedAt when unset.
func (m *MemoryStore) Save(ctx context.Context, alert notifier.Alert) (notifier.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.RaisedAt.IsZero() {
		alert.RaisedAt = m.now().UTC()
	}
	m.alerts = append(m.alerts, alert)

	if len(m.alerts) > m.maxSize {
		m.alerts = m.alerts[len(m.alerts)-m.maxSize:]
	}
	return alert, nil
}

// GetByID retrieves an alert by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (notifier.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return notifier.Alert{}, core.ErrAlertNotFound
}

// List returns matching alerts, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]notifier.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]notifier.Alert, 0)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if matches(m.alerts[i], filter) {
			result = append(result, m.alerts[i])
		}
	}

	if filter.Offset >= len(result) {
		return []notifier.Alert{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the count of matching alerts.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, a := range m.alerts {
		if matches(a, filter) {
			count++
		}
	}
	return count, nil
}

func matches(a notifier.Alert, filter ListFilter) bool {
	if filter.Symbol != "" && a.Symbol != filter.Symbol {
		return false
	}
	if filter.Action != "" && a.Action != filter.Action {
		return false
	}
	if !filter.From.IsZero() && a.RaisedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && a.RaisedAt.After(filter.To) {
		return false
	}
	return true
}
