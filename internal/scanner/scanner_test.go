package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu      sync.Mutex
	series  map[string][]core.OHLCV
	errs    map[string]error
	block   map[string]bool
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   []string
}

func (p *stubProvider) FetchHistory(ctx context.Context, symbol string, _ int, _ string) ([]core.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.calls = append(p.calls, symbol)
	p.mu.Unlock()

	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if p.block[symbol] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if err := p.errs[symbol]; err != nil {
		return nil, err
	}
	bars, ok := p.series[symbol]
	if !ok {
		return nil, core.ErrSymbolNotFound
	}
	return bars, nil
}

func linear(symbol string, n int, start, step float64, volume int64) []core.OHLCV {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, n)
	for i := range bars {
		price := start + step*float64(i)
		bars[i] = core.OHLCV{
			Symbol: symbol, Interval: "1d",
			Open: price, High: price, Low: price, Close: price,
			Volume: volume, Time: t0.AddDate(0, 0, i),
		}
	}
	return bars
}

func newScanner(p *stubProvider, cfg Config) *Scanner {
	analyzer := signal.NewAnalyzer(indicator.DefaultConfig(), signal.DefaultConfig())
	return New(cfg, p, analyzer, nil, metrics.NewRegistry())
}

func TestNew_DefaultsNonPositiveSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	cfg.Timeout = 0
	s := newScanner(&stubProvider{}, cfg)

	assert.Equal(t, 1, s.cfg.Workers)
	assert.Equal(t, DefaultConfig().Timeout, s.cfg.Timeout)
}

func TestScan_ZeroTimeoutStillScans(t *testing.T) {
	p := &stubProvider{series: map[string][]core.OHLCV{
		"UP": linear("UP", 100, 100, 1, 2_000_000),
	}}
	cfg := DefaultConfig()
	cfg.Timeout = 0
	s := newScanner(p, cfg)

	report := s.Scan(context.Background(), []string{"UP"})

	require.Len(t, report.Results, 1)
	assert.Empty(t, report.Skipped)
}

func TestScan_SortsByStrength(t *testing.T) {
	p := &stubProvider{series: map[string][]core.OHLCV{
		"DOWN": linear("DOWN", 100, 200, -1, 2_000_000),
		"FLAT": linear("FLAT", 100, 100, 0, 2_000_000),
		"UP":   linear("UP", 100, 100, 1, 2_000_000),
	}}
	s := newScanner(p, DefaultConfig())

	report := s.Scan(context.Background(), []string{"DOWN", "FLAT", "UP"})

	require.Len(t, report.Results, 3)
	assert.Empty(t, report.Skipped)

	var order []string
	for _, r := range report.Results {
		order = append(order, r.Symbol)
	}
	assert.Equal(t, []string{"UP", "FLAT", "DOWN"}, order)

	for i := 1; i < len(report.Results); i++ {
		assert.GreaterOrEqual(t, report.Results[i-1].Signal.Strength, report.Results[i].Signal.Strength)
	}

	flat := report.Results[1]
	assert.Equal(t, core.ActionHold, flat.Signal.Action)
	assert.Equal(t, 100.0, flat.Price)
	assert.True(t, flat.Liquid)
}

func TestScan_SkipsFailures(t *testing.T) {
	p := &stubProvider{
		series: map[string][]core.OHLCV{"AAPL": linear("AAPL", 60, 100, 0.5, 5_000_000)},
		errs:   map[string]error{"BAD": core.ErrCollectorFailed},
		block:  map[string]bool{"SLOW": true},
	}
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := newScanner(p, cfg)

	report := s.Scan(context.Background(), []string{"AAPL", "BAD", "SLOW", "MISSING"})

	require.Len(t, report.Results, 1)
	assert.Equal(t, "AAPL", report.Results[0].Symbol)

	outcomes := map[string]string{}
	for _, skip := range report.Skipped {
		outcomes[skip.Symbol] = skip.Outcome
		assert.NotEmpty(t, skip.Error)
	}
	assert.Equal(t, map[string]string{
		"BAD":     OutcomeNoData,
		"SLOW":    OutcomeTimeout,
		"MISSING": OutcomeNoData,
	}, outcomes)
}

func TestScan_InvalidSeriesIsNoData(t *testing.T) {
	bars := linear("X", 10, 100, 1, 1)
	bars[5].Time = bars[4].Time
	p := &stubProvider{series: map[string][]core.OHLCV{"X": bars, "EMPTY": {}}}
	s := newScanner(p, DefaultConfig())

	report := s.Scan(context.Background(), []string{"X", "EMPTY"})

	assert.Empty(t, report.Results)
	require.Len(t, report.Skipped, 2)
	for _, skip := range report.Skipped {
		assert.Equal(t, OutcomeNoData, skip.Outcome)
	}
}

func TestScan_BoundedWorkers(t *testing.T) {
	p := &stubProvider{series: map[string][]core.OHLCV{}, delay: 10 * time.Millisecond}
	var symbols []string
	for _, sym := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		p.series[sym] = linear(sym, 30, 100, 1, 1)
		symbols = append(symbols, sym)
	}
	cfg := DefaultConfig()
	cfg.Workers = 2
	s := newScanner(p, cfg)

	report := s.Scan(context.Background(), symbols)

	assert.Len(t, report.Results, len(symbols))
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(2))
	assert.Len(t, p.calls, len(symbols))
}

func TestScan_CancelledContext(t *testing.T) {
	p := &stubProvider{series: map[string][]core.OHLCV{
		"A": linear("A", 30, 100, 1, 1),
		"B": linear("B", 30, 100, 1, 1),
	}}
	s := newScanner(p, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := s.Scan(ctx, []string{"A", "B"})

	assert.Empty(t, report.Results)
	assert.Len(t, report.Skipped, 2)
}

func TestScan_EmptyWatchlist(t *testing.T) {
	s := newScanner(&stubProvider{}, DefaultConfig())

	report := s.Scan(context.Background(), nil)

	assert.Empty(t, report.Results)
	assert.Empty(t, report.Skipped)
}

func TestReport_Candidates(t *testing.T) {
	report := Report{Results: []Result{
		{Symbol: "AAA", Price: 10, Liquid: true, Analysis: signal.Analysis{Signal: signal.Result{Action: core.ActionBuy, Strength: 0.25}}},
		{Symbol: "THIN", Price: 5, Liquid: false, Analysis: signal.Analysis{Signal: signal.Result{Action: core.ActionStrongBuy, Strength: 0.6}}},
	}}

	got := report.Candidates()

	require.Len(t, got, 1)
	assert.Equal(t, "AAA", got[0].Symbol)
	assert.Equal(t, core.ActionBuy, got[0].Action)
	assert.Equal(t, 0.25, got[0].Strength)
}
