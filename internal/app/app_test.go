package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/notifier"
	"github.com/newthinker/tradelab/internal/scanner"
	"github.com/newthinker/tradelab/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockScanner struct {
	mu    sync.Mutex
	calls [][]string
}

func (m *mockScanner) Scan(ctx context.Context, symbols []string) scanner.Report {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), symbols...))
	m.mu.Unlock()

	report := scanner.Report{Started: time.Now()}
	for _, s := range symbols {
		report.Results = append(report.Results, scanner.Result{
			Symbol:   s,
			Price:    100,
			Liquid:   true,
			Analysis: signal.Analysis{Signal: signal.Result{Action: core.ActionHold}},
		})
	}
	return report
}

func (m *mockScanner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestApp_New(t *testing.T) {
	app := New(&mockScanner{}, nil, nil)

	if app == nil {
		t.Fatal("expected non-nil app")
	}

	stats := app.GetStats()
	if stats["running"].(bool) {
		t.Error("new app should not be running")
	}
	_, ok := app.Latest()
	assert.False(t, ok)
}

func TestApp_SetWatchlist(t *testing.T) {
	app := New(&mockScanner{}, nil, nil)
	app.SetWatchlist([]string{"aapl", "MSFT", "AAPL", " "})

	assert.Equal(t, []string{"AAPL", "MSFT"}, app.GetWatchlist())

	assert.True(t, app.AddToWatchlist("nvda"))
	assert.False(t, app.AddToWatchlist("NVDA"))
	assert.True(t, app.RemoveFromWatchlist("msft"))
	assert.False(t, app.RemoveFromWatchlist("MSFT"))
	assert.Equal(t, []string{"AAPL", "NVDA"}, app.GetWatchlist())
}

func TestApp_RunOnce(t *testing.T) {
	sc := &mockScanner{}
	app := New(sc, nil, nil)
	app.SetWatchlist([]string{"AAPL", "MSFT"})

	report, ok := app.RunOnce(context.Background())
	require.True(t, ok)
	assert.Len(t, report.Results, 2)

	latest, ok := app.Latest()
	require.True(t, ok)
	assert.Equal(t, report.Results, latest.Results)
	assert.Equal(t, 1, app.GetStats()["cycles"])
	assert.Equal(t, [][]string{{"AAPL", "MSFT"}}, sc.calls)
}

func TestApp_EmptyWatchlistNoScan(t *testing.T) {
	sc := &mockScanner{}
	app := New(sc, nil, nil)

	_, ok := app.RunOnce(context.Background())

	assert.False(t, ok)
	assert.Zero(t, sc.callCount())
}

func TestApp_StartStop(t *testing.T) {
	sc := &mockScanner{}
	app := New(sc, nil, nil)
	app.SetWatchlist([]string{"AAPL"})
	app.SetInterval(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	err := app.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.GreaterOrEqual(t, sc.callCount(), 2, "initial scan plus at least one tick")
	assert.False(t, app.GetStats()["running"].(bool), "app should not be running after stop")
}

func TestApp_NonPositiveIntervalFallsBack(t *testing.T) {
	app := New(&mockScanner{}, nil, nil)
	app.SetInterval(time.Minute)
	app.SetInterval(0)
	assert.Equal(t, "15m0s", app.GetStats()["interval"])

	app.SetInterval(-time.Second)
	assert.Equal(t, "15m0s", app.GetStats()["interval"])

	app.SetWatchlist([]string{"AAPL"})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, app.Start(ctx), context.DeadlineExceeded)
	})
}

func TestApp_Stop(t *testing.T) {
	app := New(&mockScanner{}, nil, nil)
	app.SetInterval(time.Hour)

	done := make(chan error, 1)
	go func() { done <- app.Start(context.Background()) }()

	require.Eventually(t, func() bool { return app.GetStats()["running"].(bool) }, time.Second, 5*time.Millisecond)
	app.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestApp_CannotStartTwice(t *testing.T) {
	app := New(&mockScanner{}, nil, nil)
	app.SetInterval(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go app.Start(ctx)
	require.Eventually(t, func() bool { return app.GetStats()["running"].(bool) }, time.Second, 5*time.Millisecond)

	err := app.Start(context.Background())
	if err == nil {
		t.Error("expected error when starting twice")
	}
}

type fixedScanner struct{ report scanner.Report }

func (f fixedScanner) Scan(ctx context.Context, symbols []string) scanner.Report { return f.report }

type recordingRouter struct {
	got []notifier.Alert
}

func (r *recordingRouter) Route(ctx context.Context, alerts []notifier.Alert) []notifier.Alert {
	r.got = append(r.got, alerts...)
	return alerts
}

func TestApp_RunOnceRoutesAlerts(t *testing.T) {
	bar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	report := scanner.Report{Results: []scanner.Result{
		{Symbol: "AAPL", Price: 101.5, Time: bar, Liquid: true, Analysis: signal.Analysis{Signal: signal.Result{
			Action: core.ActionStrongBuy, Strength: 0.55, Reasons: []string{"RSI oversold", "Golden cross"},
		}}},
		{Symbol: "MSFT", Price: 300, Liquid: true, Analysis: signal.Analysis{Signal: signal.Result{Action: core.ActionHold}}},
		{Symbol: "TINY", Price: 5, Liquid: false, Analysis: signal.Analysis{Signal: signal.Result{Action: core.ActionSell, Strength: -0.3}}},
	}}

	rr := &recordingRouter{}
	app := New(fixedScanner{report: report}, nil, nil)
	app.SetWatchlist([]string{"AAPL", "MSFT", "TINY"})
	app.SetRouter(rr)

	_, ok := app.RunOnce(context.Background())
	require.True(t, ok)

	require.Len(t, rr.got, 1)
	a := rr.got[0]
	assert.Equal(t, "AAPL", a.Symbol)
	assert.Equal(t, core.ActionStrongBuy, a.Action)
	assert.Equal(t, bar, a.BarTime)
	assert.Equal(t, "STRONG BUY (strength +0.55) at $101.50: RSI oversold, Golden cross", a.Summary)
	assert.Equal(t, 1, app.GetStats()["alerts"])
}

func TestApp_RunOnceWithoutActionableResults(t *testing.T) {
	rr := &recordingRouter{}
	app := New(&mockScanner{}, nil, nil)
	app.SetWatchlist([]string{"AAPL"})
	app.SetRouter(rr)

	_, ok := app.RunOnce(context.Background())
	require.True(t, ok)
	assert.Empty(t, rr.got)
}
