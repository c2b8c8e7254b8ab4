// Package signal turns indicator snapshots into a weighted composite signal.
package signal

import (
	"fmt"
	"strings"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
)

// Rule weights added to Strength when a rule fires.
const (
	WeightRSI       = 0.30
	WeightMA        = 0.25
	WeightMACD      = 0.25
	WeightBollinger = 0.20
)

// Label is a per-indicator sub-signal.
type Label string

const (
	LabelNeutral Label = "neutral"
	LabelBuy     Label = "buy"
	LabelSell    Label = "sell"
	LabelBullish Label = "bullish"
	LabelBearish Label = "bearish"
)

// Config holds signal thresholds
type Config struct {
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
}

// DefaultConfig returns the standard RSI thresholds.
func DefaultConfig() Config {
	return Config{
		RSIOversold:   30,
		RSIOverbought: 70,
	}
}

// Result is the composite signal for one bar.
type Result struct {
	RSISignal  Label       `json:"rsi_signal"`
	MASignal   Label       `json:"ma_signal"`
	MACDSignal Label       `json:"macd_signal"`
	BandSignal Label       `json:"bb_signal"`
	Strength   float64     `json:"strength"`
	Action     core.Action `json:"action"`
	Reasons    []string    `json:"reasons"`
}

// ShouldBuy reports a buy-side action with at least min strength.
func (r Result) ShouldBuy(min float64) bool {
	return r.Action.IsBuy() && r.Strength >= min
}

// ShouldSell reports a sell-side action with at most max strength.
func (r Result) ShouldSell(max float64) bool {
	return r.Action.IsSell() && r.Strength <= max
}

// Summary renders a one-line description of the signal.
func (r Result) Summary(price float64) string {
	action := strings.ToUpper(strings.ReplaceAll(string(r.Action), "_", " "))
	s := fmt.Sprintf("%s (strength %+.2f) at $%.2f", action, r.Strength, price)
	if len(r.Reasons) > 0 {
		s += ": " + strings.Join(r.Reasons, ", ")
	}
	return s
}

// Generator applies the rule set to indicator snapshots. It holds no state
// besides its configuration and is safe for concurrent use.
type Generator struct {
	cfg Config
}

// NewGenerator creates a new signal generator
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate evaluates every rule against snap. Rules whose inputs are
// undefined are skipped.
func (g *Generator) Generate(snap indicator.Snapshot) Result {
	r := Result{
		RSISignal:  LabelNeutral,
		MASignal:   LabelNeutral,
		MACDSignal: LabelNeutral,
		BandSignal: LabelNeutral,
		Reasons:    make([]string, 0, 4),
	}

	if snap.RSI != nil {
		switch {
		case *snap.RSI < g.cfg.RSIOversold:
			r.RSISignal = LabelBuy
			r.Strength += WeightRSI
			r.Reasons = append(r.Reasons, "RSI oversold")
		case *snap.RSI > g.cfg.RSIOverbought:
			r.RSISignal = LabelSell
			r.Strength -= WeightRSI
			r.Reasons = append(r.Reasons, "RSI overbought")
		}
	}

	if snap.SMAShort != nil && snap.SMALong != nil {
		switch {
		case *snap.SMAShort > *snap.SMALong:
			r.MASignal = LabelBullish
			r.Strength += WeightMA
			r.Reasons = append(r.Reasons, "Golden cross")
		case *snap.SMAShort < *snap.SMALong:
			r.MASignal = LabelBearish
			r.Strength -= WeightMA
			r.Reasons = append(r.Reasons, "Death cross")
		}
	}

	if snap.MACD != nil && snap.MACDSignal != nil && snap.MACDHistogram != nil {
		macd, sig, hist := *snap.MACD, *snap.MACDSignal, *snap.MACDHistogram
		switch {
		case macd > sig && hist > 0:
			r.MACDSignal = LabelBuy
			r.Strength += WeightMACD
			r.Reasons = append(r.Reasons, "MACD bullish crossover")
		case macd < sig && hist < 0:
			r.MACDSignal = LabelSell
			r.Strength -= WeightMACD
			r.Reasons = append(r.Reasons, "MACD bearish crossover")
		}
	}

	// A collapsed band (zero deviation) carries no touch information.
	if snap.BBUpper != nil && snap.BBLower != nil && *snap.BBUpper > *snap.BBLower {
		switch {
		case snap.Price <= *snap.BBLower:
			r.BandSignal = LabelBuy
			r.Strength += WeightBollinger
			r.Reasons = append(r.Reasons, "At lower band")
		case snap.Price >= *snap.BBUpper:
			r.BandSignal = LabelSell
			r.Strength -= WeightBollinger
			r.Reasons = append(r.Reasons, "At upper band")
		}
	}

	r.Action = Classify(r.Strength)
	return r
}

// Classify maps a summed strength to an action.
func Classify(strength float64) core.Action {
	switch {
	case strength >= 0.4:
		return core.ActionStrongBuy
	case strength >= 0.2:
		return core.ActionBuy
	case strength <= -0.4:
		return core.ActionStrongSell
	case strength <= -0.2:
		return core.ActionSell
	default:
		return core.ActionHold
	}
}
