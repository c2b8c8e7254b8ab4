package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCollector for testing
type mockCollector struct {
	name  string
	bars  []core.OHLCV
	price float64
	err   error
	calls int
}

func (m *mockCollector) Name() string { return m.name }

func (m *mockCollector) FetchHistory(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]core.OHLCV, error) {
	m.calls++
	return m.bars, m.err
}

func (m *mockCollector) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	m.calls++
	return m.price, m.err
}

func bar(close float64) core.OHLCV {
	return core.OHLCV{Symbol: "AAPL", Close: close, Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(&mockCollector{name: "b"})
	r.Register(&mockCollector{name: "a"})
	r.Register(&mockCollector{name: "b"})

	c, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", c.Name())

	all := r.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Name())
	assert.Equal(t, "a", all[1].Name())
}

func TestRegistry_Prefer(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(&mockCollector{name: "a"})
	r.Register(&mockCollector{name: "b"})

	require.NoError(t, r.Prefer("b"))
	assert.Equal(t, "b", r.GetAll()[0].Name())

	err := r.Prefer("missing")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestRegistry_FetchHistoryFallback(t *testing.T) {
	failing := &mockCollector{name: "primary", err: errors.New("boom")}
	empty := &mockCollector{name: "empty"}
	good := &mockCollector{name: "backup", bars: []core.OHLCV{bar(100)}}
	unused := &mockCollector{name: "unused", bars: []core.OHLCV{bar(1)}}

	r := NewRegistry(nil, nil)
	for _, c := range []*mockCollector{failing, empty, good, unused} {
		r.Register(c)
	}

	bars, err := r.FetchHistory(context.Background(), "AAPL", 30, "1Day")
	require.NoError(t, err)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
	assert.Zero(t, unused.calls)
}

func TestRegistry_AllFail(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(&mockCollector{name: "a", err: errors.New("down")})
	r.Register(&mockCollector{name: "b", price: 0})

	_, err := r.FetchHistory(context.Background(), "AAPL", 30, "1Day")
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
	assert.Contains(t, err.Error(), "a: down")

	_, err = r.FetchLatestPrice(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestRegistry_Empty(t *testing.T) {
	_, err := NewRegistry(nil, nil).FetchLatestPrice(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
}

func TestRegistry_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRegistry(nil, nil)
	r.Register(&mockCollector{name: "a", err: context.Canceled})

	_, err := r.FetchHistory(ctx, "AAPL", 30, "1Day")
	assert.True(t, errors.Is(err, core.ErrCollectorTimeout))
}

func TestRegistry_LatestPrice(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(&mockCollector{name: "a", price: 187.5})

	price, err := r.FetchLatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 187.5, price)
}
