// Package collector defines the market data collaborators and an ordered
// fallback registry over them.
package collector

import (
	"context"

	"github.com/newthinker/tradelab/internal/core"
)

// HistoryProvider fetches ordered bars covering the last lookbackDays.
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]core.OHLCV, error)
}

// PriceProvider fetches the most recent trade price.
type PriceProvider interface {
	FetchLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Collector is a named market data source.
type Collector interface {
	Name() string
	HistoryProvider
	PriceProvider
}
