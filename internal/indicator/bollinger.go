package indicator

import "math"

// Bands holds Bollinger Band series.
type Bands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// Bollinger calculates bands of k sample standard deviations around the
// period SMA. Points with an incomplete window are undefined.
func Bollinger(prices []float64, period int, k float64) Bands {
	middle := SMA(prices, period)
	bands := Bands{
		Upper:  newSeries(len(prices)),
		Middle: middle,
		Lower:  newSeries(len(prices)),
	}
	if period < 2 {
		return bands
	}

	for i := period - 1; i < len(prices); i++ {
		mean := middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period-1))
		bands.Upper[i] = mean + k*std
		bands.Lower[i] = mean - k*std
	}

	return bands
}
