package risk

import (
	"context"
	"fmt"

	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/core"
	"go.uber.org/zap"
)

// Budget is the capital and position room available for new buys.
type Budget struct {
	PortfolioValue float64 `json:"portfolio_value"`
	Capital        float64 `json:"capital"`
	OpenPositions  int     `json:"open_positions"`
	Slots          int     `json:"slots"`
	// Halted is set when no new positions may be opened; Reason says why.
	Halted bool   `json:"halted"`
	Reason string `json:"reason,omitempty"`
}

// Budget derives the deployable capital from an account snapshot. Capital
// is the lower of cash and buying power, and drops to zero when the daily
// loss limit or the position limit is reached.
func (s *Sizer) Budget(acct broker.Account, openPositions int) Budget {
	b := Budget{
		PortfolioValue: acct.PortfolioValue,
		Capital:        acct.Available(),
		OpenPositions:  openPositions,
		Slots:          s.Slots(openPositions),
	}

	switch {
	case acct.TradingBlocked:
		b.Halted, b.Reason = true, "Trading blocked on account"
	case s.ShouldStopTrading(acct.PortfolioValue):
		b.Halted, b.Reason = true, "Daily loss limit reached"
	case b.Slots == 0:
		b.Halted, b.Reason = true, fmt.Sprintf("Max positions reached (%d)", s.cfg.MaxPositions)
	}
	if b.Halted {
		b.Capital = 0
		b.Slots = 0
		s.logger.Warn("no new positions allowed", zap.String("reason", b.Reason))
	}
	return b
}

// FetchBudget reads the account and open positions from provider.
func (s *Sizer) FetchBudget(ctx context.Context, provider broker.AccountProvider) (Budget, error) {
	acct, err := provider.FetchAccountInfo(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("fetching account: %w", err)
	}
	if acct == nil {
		return Budget{}, core.ErrAccountUnavailable
	}
	positions, err := provider.FetchPositions(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("fetching positions: %w", err)
	}
	return s.Budget(*acct, len(positions)), nil
}
