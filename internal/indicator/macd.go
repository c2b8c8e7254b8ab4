package indicator

// MACDSeries holds the MACD line, its signal line and the histogram.
type MACDSeries struct {
	Line      Series
	Signal    Series
	Histogram Series
}

// MACD calculates EMA(fast) - EMA(slow), its EMA(signalPeriod) signal line
// and their difference.
func MACD(prices []float64, fast, slow, signalPeriod int) MACDSeries {
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	line := newSeries(len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signal := EMA(line, signalPeriod)
	histogram := newSeries(len(prices))
	for i := range prices {
		histogram[i] = line[i] - signal[i]
	}

	return MACDSeries{Line: line, Signal: signal, Histogram: histogram}
}
