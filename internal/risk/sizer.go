// Package risk sizes positions against portfolio limits and ranks buy
// candidates into capital allocations.
package risk

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// Config defines risk management parameters. Fractions are 0..1.
type Config struct {
	// MaxPositionPct is the largest share of portfolio value put into one position.
	MaxPositionPct float64 `json:"max_position_pct"`
	// MaxDailyLossPct halts new positions once the day's loss reaches it.
	MaxDailyLossPct float64 `json:"max_daily_loss_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	// RiskReward is the take-profit multiple of the stop distance.
	RiskReward   float64 `json:"risk_reward"`
	MaxPositions int     `json:"max_positions"`
	MinVolume    int64   `json:"min_volume"`
	// MinRiskReward is the lowest strength-scaled ratio the allocator accepts.
	MinRiskReward float64 `json:"min_risk_reward"`
	// MinAllocation is the smallest dollar amount a diversified slot receives.
	MinAllocation float64 `json:"min_allocation"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct:  0.10,
		MaxDailyLossPct: 0.05,
		StopLossPct:     0.05,
		RiskReward:      2.0,
		MaxPositions:    10,
		MinVolume:       1_000_000,
		MinRiskReward:   1.5,
		MinAllocation:   100,
	}
}

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Decision is the outcome of sizing one position. Rejections carry a reason
// and zero shares.
type Decision struct {
	Symbol   string  `json:"symbol"`
	Approved bool    `json:"approved"`
	Shares   int64   `json:"shares"`
	Cost     float64 `json:"cost"`
	Reason   string  `json:"reason"`
}

// Validation is the outcome of checking a proposed buy.
type Validation struct {
	Approved   bool     `json:"approved"`
	Warnings   []string `json:"warnings"`
	StopLoss   float64  `json:"stop_loss"`
	TakeProfit float64  `json:"take_profit"`
}

// Sizer computes position sizes and protective levels. Daily loss tracking
// is the only mutable state and is guarded for concurrent use.
type Sizer struct {
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	startingValue float64
	dailyPnL      float64
}

// NewSizer creates a Sizer. A nil logger is replaced with a no-op logger.
func NewSizer(cfg Config, logger *zap.Logger) *Sizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sizer{cfg: cfg, logger: logger}
}

// Config returns the sizing configuration.
func (s *Sizer) Config() Config {
	return s.cfg
}

// SetStartingValue sets the portfolio value the day's P/L is measured against.
func (s *Sizer) SetStartingValue(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startingValue = value
	s.dailyPnL = 0
}

// SizePosition computes the share count for a new position in symbol.
func (s *Sizer) SizePosition(symbol string, price, portfolioValue float64, openPositions int) Decision {
	d := Decision{Symbol: symbol}

	if openPositions >= s.cfg.MaxPositions {
		d.Reason = fmt.Sprintf("Max positions reached (%d)", s.cfg.MaxPositions)
		return d
	}

	if lossPct, hit := s.dailyLossHit(); hit {
		d.Reason = fmt.Sprintf("Daily loss limit reached (%.2f%%)", lossPct*100)
		return d
	}

	if price <= 0 {
		d.Reason = "Invalid price"
		return d
	}

	shares := int64(math.Floor(portfolioValue * s.cfg.MaxPositionPct / price))
	if shares <= 0 {
		d.Reason = "Insufficient capital for position"
		return d
	}

	cost := float64(shares) * price
	if cost > portfolioValue {
		d.Reason = "Position cost exceeds portfolio value"
		return d
	}

	d.Approved = true
	d.Shares = shares
	d.Cost = cost
	d.Reason = "Position approved"
	return d
}

func (s *Sizer) dailyLossHit() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startingValue <= 0 {
		return 0, false
	}
	pct := s.dailyPnL / s.startingValue
	return pct, pct <= -s.cfg.MaxDailyLossPct
}

// StopLoss returns the stop price for an entry.
func (s *Sizer) StopLoss(entry float64, side Side) float64 {
	if side == Short {
		return entry * (1 + s.cfg.StopLossPct)
	}
	return entry * (1 - s.cfg.StopLossPct)
}

// TakeProfit returns the target price rr times the stop distance away.
func (s *Sizer) TakeProfit(entry, rr float64, side Side) float64 {
	reward := entry * s.cfg.StopLossPct * rr
	if side == Short {
		return entry - reward
	}
	return entry + reward
}

// ShouldStopTrading updates the day's P/L from the current portfolio value
// and reports whether the daily loss limit has been reached.
func (s *Sizer) ShouldStopTrading(currentValue float64) bool {
	s.mu.Lock()
	if s.startingValue == 0 {
		s.mu.Unlock()
		return false
	}
	s.dailyPnL = currentValue - s.startingValue
	pct := s.dailyPnL / s.startingValue
	s.mu.Unlock()

	if pct <= -s.cfg.MaxDailyLossPct {
		s.logger.Warn("daily loss limit reached",
			zap.Float64("daily_pnl_pct", pct*100),
			zap.Float64("limit_pct", s.cfg.MaxDailyLossPct*100),
		)
		return true
	}
	return false
}

// ValidateBuy checks a proposed buy against the daily loss and position
// size limits and attaches protective levels.
func (s *Sizer) ValidateBuy(shares int64, price, portfolioValue float64) Validation {
	v := Validation{Approved: true, Warnings: []string{}}

	if s.ShouldStopTrading(portfolioValue) {
		v.Approved = false
		v.Warnings = append(v.Warnings, "Daily loss limit reached")
		return v
	}

	var sizePct float64
	if portfolioValue > 0 {
		sizePct = float64(shares) * price / portfolioValue
	}
	if sizePct > s.cfg.MaxPositionPct {
		v.Approved = false
		v.Warnings = append(v.Warnings, fmt.Sprintf("Position size (%.1f%%) exceeds limit (%.1f%%)",
			sizePct*100, s.cfg.MaxPositionPct*100))
	}

	v.StopLoss = s.StopLoss(price, Long)
	v.TakeProfit = s.TakeProfit(price, s.cfg.RiskReward, Long)
	return v
}

// PassesVolume reports whether volume meets the minimum liquidity filter.
func (s *Sizer) PassesVolume(volume int64) bool {
	return volume >= s.cfg.MinVolume
}

// Slots returns how many more positions may be opened.
func (s *Sizer) Slots(openPositions int) int {
	return max(s.cfg.MaxPositions-openPositions, 0)
}
