package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apihandler "github.com/newthinker/tradelab/internal/api/handler/api"
	"github.com/newthinker/tradelab/internal/app"
	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/notifier"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/scanner"
	"github.com/newthinker/tradelab/internal/signal"
	"github.com/newthinker/tradelab/internal/storage/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flatProvider struct{}

func (flatProvider) FetchHistory(ctx context.Context, symbol string, _ int, _ string) ([]core.OHLCV, error) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, 60)
	for i := range bars {
		bars[i] = core.OHLCV{Symbol: symbol, Close: 100, Volume: 1_500_000, Time: t0.AddDate(0, 0, i)}
	}
	return bars, nil
}

func newTestServer(t *testing.T, apiKey string, m *metrics.Registry) (*Server, *app.App) {
	t.Helper()
	return newTestServerWithAlerts(t, apiKey, m, nil)
}

func newTestServerWithAlerts(t *testing.T, apiKey string, m *metrics.Registry, store alerts.Store) (*Server, *app.App) {
	t.Helper()
	provider := flatProvider{}
	sc := scanner.New(scanner.DefaultConfig(), provider,
		signal.NewAnalyzer(indicator.DefaultConfig(), signal.DefaultConfig()), nil, m)
	a := app.New(sc, nil, m)
	sizer := risk.NewSizer(risk.DefaultConfig(), nil)

	srv, err := NewServer(Config{Host: "localhost", APIKey: apiKey}, Dependencies{
		App:       a,
		Scanner:   sc,
		Provider:  provider,
		Sizer:     sizer,
		Allocator: risk.NewAllocator(sizer, nil),
		Alerts:    store,
		Backtest: apihandler.BacktestDefaults{
			Config:       backtest.DefaultConfig(),
			LookbackDays: 365,
			Timeframe:    "1d",
		},
	}, zap.NewNop(), m)
	require.NoError(t, err)
	return srv, a
}

func serve(srv *Server, method, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Config{}, Dependencies{}, nil, nil)
	assert.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, "secret", nil)

	w := serve(srv, "GET", "/api/v1/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_APIAuth(t *testing.T) {
	srv, _ := newTestServer(t, "test-key", nil)

	w := serve(srv, "GET", "/api/v1/signals")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(srv, "GET", "/api/v1/signals", "X-API-Key", "test-key")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(srv, "GET", "/api/v1/signals", "Authorization", "Bearer test-key")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := serve(srv, "GET", "/api/v1/signals")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Watchlist(t *testing.T) {
	srv, a := newTestServer(t, "", nil)
	a.SetWatchlist([]string{"AAPL", "MSFT"})

	w := serve(srv, "DELETE", "/api/v1/watchlist/msft")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"AAPL"}, a.GetWatchlist())

	w = serve(srv, "GET", "/api/v1/watchlist")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"AAPL"`)
}

func TestServer_SignalForSymbol(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := serve(srv, "GET", "/api/v1/signals/aapl")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"AAPL"`)
	assert.Contains(t, w.Body.String(), `"action":"hold"`)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := serve(srv, "PUT", "/api/v1/watchlist")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_LatestScan(t *testing.T) {
	srv, a := newTestServer(t, "", nil)
	a.SetWatchlist([]string{"AAPL"})
	_, ok := a.RunOnce(context.Background())
	require.True(t, ok)

	w := serve(srv, "GET", "/api/v1/signals")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"AAPL"`)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.NewRegistry()
	srv, _ := newTestServer(t, "secret", m)

	serve(srv, "GET", "/api/v1/signals/AAPL", "X-API-Key", "secret")

	w := serve(srv, "GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `path="GET /api/v1/signals/{symbol}"`), body)
	assert.Contains(t, body, "http_requests_in_flight")
}

func TestServer_Alerts(t *testing.T) {
	store := alerts.NewMemoryStore(10)
	saved, err := store.Save(context.Background(), notifier.Alert{Symbol: "AAPL", Action: core.ActionStrongBuy, Strength: 0.55})
	require.NoError(t, err)
	srv, _ := newTestServerWithAlerts(t, "", nil, store)

	w := serve(srv, http.MethodGet, "/api/v1/alerts?symbol=AAPL")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = serve(srv, http.MethodGet, "/api/v1/alerts/"+saved.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), saved.ID)

	w = serve(srv, http.MethodGet, "/api/v1/alerts/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_AlertsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := serve(srv, http.MethodGet, "/api/v1/alerts")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
