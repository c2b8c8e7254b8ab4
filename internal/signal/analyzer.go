package signal

import "github.com/newthinker/tradelab/internal/indicator"

// Analysis pairs an indicator snapshot with the signal derived from it.
type Analysis struct {
	Snapshot indicator.Snapshot `json:"indicators"`
	Signal   Result             `json:"signal"`
}

// Analyzer computes indicators over a price history and generates the signal
// for its final bar.
type Analyzer struct {
	indicators indicator.Config
	generator  *Generator
}

// NewAnalyzer creates an analyzer for the given indicator and signal settings.
func NewAnalyzer(ind indicator.Config, sig Config) *Analyzer {
	return &Analyzer{
		indicators: ind,
		generator:  NewGenerator(sig),
	}
}

// Analyze evaluates the last bar of prices.
func (a *Analyzer) Analyze(prices []float64) Analysis {
	snap := indicator.Compute(prices, a.indicators).Latest()
	return Analysis{
		Snapshot: snap,
		Signal:   a.generator.Generate(snap),
	}
}

// Indicators returns the indicator configuration.
func (a *Analyzer) Indicators() indicator.Config {
	return a.indicators
}

// Generator returns the underlying rule generator.
func (a *Analyzer) Generator() *Generator {
	return a.generator
}
