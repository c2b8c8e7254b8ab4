package backtest

import (
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/signal"
)

// Side is the direction of a trade record.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Exit reasons recorded on SELL trades.
const (
	ReasonSellSignal = "Sell signal"
	ReasonStopLoss   = "Stop loss"
	ReasonTakeProfit = "Take profit"
	ReasonEndOfTest  = "End of backtest"
)

// Config controls a backtest run.
type Config struct {
	InitialCapital     float64          `json:"initial_capital"`
	PositionSizePct    float64          `json:"position_size_pct"`
	WarmupBars         int              `json:"warmup_bars"`
	EntryStrength      float64          `json:"entry_strength"`
	ExitStrength       float64          `json:"exit_strength"`
	StopLossPct        float64          `json:"stop_loss_pct"`
	TakeProfitMultiple float64          `json:"take_profit_multiple"`
	Incremental        bool             `json:"incremental"`
	Indicators         indicator.Config `json:"indicators"`
	Signal             signal.Config    `json:"signal"`
}

// DefaultConfig returns the standard simulation parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:     100000,
		PositionSizePct:    0.10,
		WarmupBars:         50,
		EntryStrength:      0.3,
		ExitStrength:       -0.3,
		StopLossPct:        0.05,
		TakeProfitMultiple: 2.0,
		Incremental:        true,
		Indicators:         indicator.DefaultConfig(),
		Signal:             signal.DefaultConfig(),
	}
}

// Position is the single open holding while the simulation is LONG.
type Position struct {
	Symbol     string    `json:"symbol"`
	Shares     int64     `json:"shares"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
}

// Trade records one entry or exit.
type Trade struct {
	Time     time.Time   `json:"time"`
	Side     Side        `json:"side"`
	Price    float64     `json:"price"`
	Shares   int64       `json:"shares"`
	Signal   core.Action `json:"signal,omitempty"`
	Strength float64     `json:"strength"`
	PnLPct   float64     `json:"pnl_pct,omitempty"` // exits only
	Reason   string      `json:"reason,omitempty"`  // exits only
}

// IsWin returns true if the exit realized a profit
func (t Trade) IsWin() bool {
	return t.Side == SideSell && t.PnLPct > 0
}

// IsLoss returns true if the exit realized a loss
func (t Trade) IsLoss() bool {
	return t.Side == SideSell && t.PnLPct < 0
}

// EquityPoint is the mark-to-market portfolio value at one bar.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Result holds the complete backtest output
type Result struct {
	Symbol           string        `json:"symbol"`
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	InitialCapital   float64       `json:"initial_capital"`
	FinalCapital     float64       `json:"final_capital"`
	TotalReturnPct   float64       `json:"total_return_pct"`
	BuyHoldReturnPct float64       `json:"buy_hold_return_pct"`
	Outperformance   float64       `json:"outperformance"`
	Trades           []Trade       `json:"trades"`
	EquityCurve      []EquityPoint `json:"equity_curve"`
	Stats            Stats         `json:"stats"`
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades    int     `json:"total_trades"` // entries and exits
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // <= 0
	SharpeRatio    float64 `json:"sharpe_ratio"`
}
