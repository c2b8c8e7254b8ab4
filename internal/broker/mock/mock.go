// Package mock provides an in-memory AccountProvider.
package mock

import (
	"context"
	"sync"

	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/core"
)

// MockBroker implements broker.AccountProvider from fixed state.
type MockBroker struct {
	mu         sync.RWMutex
	account    broker.Account
	positions  []broker.Position
	shouldFail bool
}

// New creates a new mock broker with a healthy paper account.
func New() *MockBroker {
	return &MockBroker{
		account: broker.Account{
			Cash:           100000,
			PortfolioValue: 100000,
			BuyingPower:    200000,
			Equity:         100000,
			Status:         "ACTIVE",
		},
		positions: []broker.Position{},
	}
}

// FetchAccountInfo returns a copy of the account.
func (m *MockBroker) FetchAccountInfo(ctx context.Context) (*broker.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shouldFail {
		return nil, core.ErrAccountUnavailable
	}
	acct := m.account
	return &acct, nil
}

// FetchPositions returns a copy of the open positions.
func (m *MockBroker) FetchPositions(ctx context.Context) ([]broker.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shouldFail {
		return nil, core.ErrAccountUnavailable
	}
	out := make([]broker.Position, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

// SetAccount replaces the account summary.
func (m *MockBroker) SetAccount(acct broker.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = acct
}

// AddPosition appends an open position.
func (m *MockBroker) AddPosition(pos broker.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, pos)
}

// SetShouldFail makes every fetch return core.ErrAccountUnavailable.
func (m *MockBroker) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}
