package core

import (
	"fmt"
	"time"
)

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // "1Day", "1Hour", "1d"
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	Time     time.Time `json:"time"`
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy        Action = "buy"
	ActionSell       Action = "sell"
	ActionHold       Action = "hold"
	ActionStrongBuy  Action = "strong_buy"
	ActionStrongSell Action = "strong_sell"
)

// IsBuy reports whether the action is buy or strong_buy.
func (a Action) IsBuy() bool {
	return a == ActionBuy || a == ActionStrongBuy
}

// IsSell reports whether the action is sell or strong_sell.
func (a Action) IsSell() bool {
	return a == ActionSell || a == ActionStrongSell
}

// Valid reports whether a is one of the five known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionStrongBuy, ActionStrongSell:
		return true
	}
	return false
}

// Closes extracts closing prices from bars.
func Closes(bars []OHLCV) []float64 {
	prices := make([]float64, len(bars))
	for i, bar := range bars {
		prices[i] = bar.Close
	}
	return prices
}

// ValidateSeries checks that a price series is usable for analysis:
// non-empty, strictly increasing timestamps and positive closes.
func ValidateSeries(bars []OHLCV) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	for i, bar := range bars {
		if bar.Close <= 0 {
			return WrapError(ErrInsufficientData,
				fmt.Errorf("bar %d has non-positive close %v", i, bar.Close))
		}
		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return WrapError(ErrInsufficientData,
				fmt.Errorf("bar %d timestamp %s not after %s", i, bar.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339)))
		}
	}
	return nil
}
