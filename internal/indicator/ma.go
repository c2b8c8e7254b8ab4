package indicator

// SMA calculates Simple Moving Average over the trailing period prices.
// The first period-1 points are undefined.
func SMA(prices []float64, period int) Series {
	result := newSeries(len(prices))
	if period <= 0 {
		return result
	}

	// Each window is summed on its own so a flat window averages to exactly
	// its constant.
	for i := period - 1; i < len(prices); i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += prices[j]
		}
		result[i] = sum / float64(period)
	}

	return result
}

// EMA calculates Exponential Moving Average with smoothing 2/(period+1).
// It is seeded with the first price and defined from the first point on.
// The recursion alpha*price + (1-alpha)*prev is rearranged to
// prev + alpha*(price-prev). The two forms agree to within a few ulps; the
// rearranged one holds a run of equal prices exactly.
func EMA(prices []float64, period int) Series {
	result := newSeries(len(prices))
	if len(prices) == 0 || period <= 0 {
		return result
	}

	alpha := 2.0 / float64(period+1)
	ema := prices[0]
	result[0] = ema

	for i := 1; i < len(prices); i++ {
		ema += alpha * (prices[i] - ema)
		result[i] = ema
	}

	return result
}
