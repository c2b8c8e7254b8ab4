package indicator

import "sync"

// Config holds indicator periods.
type Config struct {
	RSIPeriod       int     `json:"rsi_period"`
	SMAShort        int     `json:"sma_short"`
	SMALong         int     `json:"sma_long"`
	EMAShort        int     `json:"ema_short"`
	EMALong         int     `json:"ema_long"`
	BollingerPeriod int     `json:"bollinger_period"`
	BollingerK      float64 `json:"bollinger_k"`
	MACDFast        int     `json:"macd_fast"`
	MACDSlow        int     `json:"macd_slow"`
	MACDSignal      int     `json:"macd_signal"`
}

// DefaultConfig returns the standard indicator periods.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		SMAShort:        20,
		SMALong:         50,
		EMAShort:        12,
		EMALong:         26,
		BollingerPeriod: 20,
		BollingerK:      2.0,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
	}
}

// Set holds every configured indicator series for one price history.
type Set struct {
	Prices    []float64
	RSI       Series
	SMAShort  Series
	SMALong   Series
	EMAShort  Series
	EMALong   Series
	Bollinger Bands
	MACD      MACDSeries
}

// Compute calculates all indicators for prices. The indicators share no
// mutable state, so each is computed on its own goroutine.
func Compute(prices []float64, cfg Config) *Set {
	s := &Set{Prices: prices}

	tasks := []func(){
		func() { s.RSI = RSI(prices, cfg.RSIPeriod) },
		func() { s.SMAShort = SMA(prices, cfg.SMAShort) },
		func() { s.SMALong = SMA(prices, cfg.SMALong) },
		func() { s.EMAShort = EMA(prices, cfg.EMAShort) },
		func() { s.EMALong = EMA(prices, cfg.EMALong) },
		func() { s.Bollinger = Bollinger(prices, cfg.BollingerPeriod, cfg.BollingerK) },
		func() { s.MACD = MACD(prices, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal) },
	}

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, task := range tasks {
		go func() {
			defer wg.Done()
			task()
		}()
	}
	wg.Wait()

	return s
}

// Len returns the number of points in the set.
func (s *Set) Len() int {
	return len(s.Prices)
}

// At returns the snapshot for bar i. Out-of-range indexes yield an empty
// snapshot with every indicator undefined.
func (s *Set) At(i int) Snapshot {
	if i < 0 || i >= len(s.Prices) {
		return Snapshot{}
	}
	return Snapshot{
		Price:         s.Prices[i],
		RSI:           ptr(s.RSI.At(i)),
		SMAShort:      ptr(s.SMAShort.At(i)),
		SMALong:       ptr(s.SMALong.At(i)),
		EMAShort:      ptr(s.EMAShort.At(i)),
		EMALong:       ptr(s.EMALong.At(i)),
		BBUpper:       ptr(s.Bollinger.Upper.At(i)),
		BBMiddle:      ptr(s.Bollinger.Middle.At(i)),
		BBLower:       ptr(s.Bollinger.Lower.At(i)),
		MACD:          ptr(s.MACD.Line.At(i)),
		MACDSignal:    ptr(s.MACD.Signal.At(i)),
		MACDHistogram: ptr(s.MACD.Histogram.At(i)),
	}
}

// Latest returns the snapshot for the final bar.
func (s *Set) Latest() Snapshot {
	return s.At(len(s.Prices) - 1)
}

// Snapshot is the point-in-time value of every indicator. A nil field means
// the indicator is undefined at that bar.
type Snapshot struct {
	Price         float64  `json:"price"`
	RSI           *float64 `json:"rsi"`
	SMAShort      *float64 `json:"sma_short"`
	SMALong       *float64 `json:"sma_long"`
	EMAShort      *float64 `json:"ema_short"`
	EMALong       *float64 `json:"ema_long"`
	BBUpper       *float64 `json:"bb_upper"`
	BBMiddle      *float64 `json:"bb_middle"`
	BBLower       *float64 `json:"bb_lower"`
	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`
}
