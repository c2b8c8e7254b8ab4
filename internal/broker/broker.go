// Package broker defines the account collaborator used by sizing and
// allocation. Nothing here places orders.
package broker

import (
	"context"
	"math"
)

// Account is a point-in-time brokerage account summary.
type Account struct {
	Cash           float64 `json:"cash"`
	PortfolioValue float64 `json:"portfolio_value"`
	BuyingPower    float64 `json:"buying_power"`
	Equity         float64 `json:"equity"`
	Status         string  `json:"status"`
	TradingBlocked bool    `json:"trading_blocked"`
}

// Available returns the capital usable for new positions: the lower of cash
// and buying power, or zero when trading is blocked.
func (a Account) Available() float64 {
	if a.TradingBlocked {
		return 0
	}
	return math.Max(0, math.Min(a.Cash, a.BuyingPower))
}

// Position is an open holding reported by the account provider.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPL  float64 `json:"unrealized_pl"`
	UnrealizedPct float64 `json:"unrealized_pct"`
}

// AccountProvider fetches account state.
type AccountProvider interface {
	FetchAccountInfo(ctx context.Context) (*Account, error)
	FetchPositions(ctx context.Context) ([]Position, error)
}
