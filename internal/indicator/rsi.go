package indicator

import "math"

// RSI calculates the Relative Strength Index using simple rolling means of
// gains and losses over period price deltas. It is undefined until period
// deltas exist, and undefined when a window has neither gains nor losses.
func RSI(prices []float64, period int) Series {
	result := newSeries(len(prices))
	if period <= 0 {
		return result
	}

	for i := period; i < len(prices); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			delta := prices[j] - prices[j-1]
			if delta > 0 {
				gains += delta
			} else if delta < 0 {
				losses -= delta
			}
		}
		result[i] = rsiValue(gains/float64(period), losses/float64(period))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return math.NaN()
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
