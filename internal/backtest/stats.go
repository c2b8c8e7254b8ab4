package backtest

import (
	"math"
)

// CalculateStats computes performance statistics from the trade list and
// equity curve of a finished run.
func CalculateStats(trades []Trade, curve []EquityPoint) Stats {
	var winning, losing int
	for _, t := range trades {
		switch {
		case t.IsWin():
			winning++
		case t.IsLoss():
			losing++
		}
	}

	var winRate float64
	if closed := winning + losing; closed > 0 {
		winRate = float64(winning) / float64(closed) * 100
	}

	return Stats{
		TotalTrades:    len(trades),
		WinningTrades:  winning,
		LosingTrades:   losing,
		WinRate:        winRate,
		MaxDrawdownPct: calculateMaxDrawdown(curve),
		SharpeRatio:    calculateSharpeRatio(equityReturns(curve)),
	}
}

// calculateMaxDrawdown returns the deepest decline from the running peak
// as a non-positive percentage.
func calculateMaxDrawdown(curve []EquityPoint) float64 {
	var maxDD, peak float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (p.Equity - peak) / peak * 100; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func equityReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming ~252 trading days)
	return mean * 252 / (stdDev * math.Sqrt(252))
}
