package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/notifier"
	"github.com/newthinker/tradelab/internal/storage/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	name    string
	err     error
	mu      sync.Mutex
	batches [][]notifier.Alert
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(ctx context.Context, alerts []notifier.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, alerts)
	return m.err
}

func (m *mockNotifier) sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRouter(t *testing.T, cfg Config, notifiers ...notifier.Notifier) (*Router, *clock) {
	t.Helper()
	reg := notifier.NewRegistry()
	for _, n := range notifiers {
		require.NoError(t, reg.Register(n))
	}
	r := New(cfg, reg, nil, nil)
	c := &clock{t: time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)}
	r.now = c.now
	return r, c
}

func alert(symbol string, action core.Action, strength float64) notifier.Alert {
	return notifier.Alert{Symbol: symbol, Action: action, Strength: strength, Price: 100}
}

func TestRouter_FiltersByStrength(t *testing.T) {
	n := &mockNotifier{name: "mock"}
	r, _ := newRouter(t, DefaultConfig(), n)

	routed := r.Route(context.Background(), []notifier.Alert{
		alert("WEAK", core.ActionBuy, 0.25),
		alert("STRONG", core.ActionStrongBuy, 0.55),
		alert("SHORT", core.ActionStrongSell, -0.75),
	})

	require.Len(t, routed, 2)
	assert.Equal(t, "STRONG", routed[0].Symbol)
	assert.Equal(t, "SHORT", routed[1].Symbol)
	require.Len(t, n.batches, 1, "one batch per route call")
	assert.Equal(t, 2, n.sent())
}

func TestRouter_FiltersByAction(t *testing.T) {
	n := &mockNotifier{name: "mock"}
	cfg := DefaultConfig()
	cfg.MinStrength = 0
	cfg.EnabledActions = []core.Action{core.ActionStrongBuy}
	r, _ := newRouter(t, cfg, n)

	routed := r.Route(context.Background(), []notifier.Alert{
		alert("A", core.ActionBuy, 0.3),
		alert("B", core.ActionStrongBuy, 0.6),
		alert("C", core.ActionHold, 0),
	})

	require.Len(t, routed, 1)
	assert.Equal(t, "B", routed[0].Symbol)
}

func TestRouter_Cooldown(t *testing.T) {
	n := &mockNotifier{name: "mock"}
	r, c := newRouter(t, DefaultConfig(), n)
	ctx := context.Background()

	assert.Len(t, r.Route(ctx, []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)}), 1)

	c.t = c.t.Add(time.Hour)
	assert.Empty(t, r.Route(ctx, []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.6)}), "same action within cooldown")

	assert.Len(t, r.Route(ctx, []notifier.Alert{alert("AAPL", core.ActionStrongSell, -0.5)}), 1, "action change bypasses cooldown")

	c.t = c.t.Add(5 * time.Hour)
	assert.Len(t, r.Route(ctx, []notifier.Alert{alert("AAPL", core.ActionStrongSell, -0.5)}), 1, "cooldown expired")

	assert.Equal(t, 3, n.sent())
}

func TestRouter_ClearCooldown(t *testing.T) {
	r, _ := newRouter(t, DefaultConfig())
	ctx := context.Background()

	r.Route(ctx, []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)})
	r.ClearCooldown("AAPL")

	assert.Len(t, r.Route(ctx, []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)}), 1)
}

func TestRouter_PersistsToStore(t *testing.T) {
	store := alerts.NewMemoryStore(10)
	r, c := newRouter(t, DefaultConfig())
	r.SetStore(store)

	routed := r.Route(context.Background(), []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)})
	require.Len(t, routed, 1)
	assert.NotEmpty(t, routed[0].ID)
	assert.Equal(t, c.t, routed[0].RaisedAt)

	got, err := store.GetByID(context.Background(), routed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
}

func TestRouter_NotifierFailure(t *testing.T) {
	bad := &mockNotifier{name: "bad", err: errors.New("down")}
	good := &mockNotifier{name: "good"}
	reg := notifier.NewRegistry()
	require.NoError(t, reg.Register(bad))
	require.NoError(t, reg.Register(good))
	m := metrics.NewRegistry()
	r := New(DefaultConfig(), reg, nil, m)

	routed := r.Route(context.Background(), []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)})

	assert.Len(t, routed, 1)
	assert.Equal(t, 1, good.sent())
	assert.Equal(t, 1, bad.sent())
}

func TestRouter_NilRegistry(t *testing.T) {
	r := New(DefaultConfig(), nil, nil, nil)

	assert.NotPanics(t, func() {
		routed := r.Route(context.Background(), []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)})
		assert.Len(t, routed, 1)
	})
}

func TestRouter_CleanupExpiredCooldowns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Hour
	r, c := newRouter(t, cfg)
	ctx := context.Background()

	r.Route(ctx, []notifier.Alert{alert("OLD", core.ActionStrongBuy, 0.5)})
	c.t = c.t.Add(90 * time.Minute)
	r.Route(ctx, []notifier.Alert{alert("NEW", core.ActionStrongBuy, 0.5)})
	c.t = c.t.Add(45 * time.Minute)

	assert.Equal(t, 1, r.CleanupExpiredCooldowns())
	assert.Equal(t, 1, r.GetStats()["cooldowns_active"])
}

func TestRouter_StartCleanupRoutine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	r := New(cfg, nil, nil, nil)
	r.Route(context.Background(), []notifier.Alert{alert("AAPL", core.ActionStrongBuy, 0.5)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartCleanupRoutine(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return r.GetStats()["cooldowns_active"] == 0
	}, time.Second, 5*time.Millisecond)
}
