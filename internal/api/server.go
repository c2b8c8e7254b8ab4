// Package api serves the tradelab HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/tradelab/internal/api/handler/api"
	"github.com/newthinker/tradelab/internal/api/job"
	"github.com/newthinker/tradelab/internal/api/middleware"
	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/app"
	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/collector"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/report"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/scanner"
	"github.com/newthinker/tradelab/internal/storage/alerts"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/api/v1/health"

// Server represents the tradelab HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	APIKey  string
	MaxJobs int
	JobTTL  time.Duration
	// MetricsPath serves the Prometheus registry; it defaults to /metrics.
	MetricsPath string
}

// Dependencies are the components the handlers call into. Accounts,
// Exporter and Alerts are optional.
type Dependencies struct {
	App       *app.App
	Scanner   *scanner.Scanner
	Provider  collector.HistoryProvider
	Accounts  broker.AccountProvider
	Sizer     *risk.Sizer
	Allocator *risk.Allocator
	Diversify bool
	Exporter  *report.Exporter
	Alerts    alerts.Store
	Backtest  apihandler.BacktestDefaults
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger, m *metrics.Registry) (*Server, error) {
	if deps.App == nil || deps.Scanner == nil || deps.Provider == nil {
		return nil, errors.New("app, scanner and history provider are required")
	}
	if deps.Sizer == nil || deps.Allocator == nil {
		return nil, errors.New("sizer and allocator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes(cfg, deps, job.NewStore(cfg.MaxJobs, cfg.JobTTL), logger, m)

	var h http.Handler = s.mux
	h = middleware.APIKeyAuth(cfg.APIKey, healthPath, cfg.MetricsPath)(h)
	h = metrics.HTTPMiddleware(m)(h)
	h = metrics.LoggingMiddleware(logger)(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies, jobs *job.Store, logger *zap.Logger, m *metrics.Registry) {
	backtests := apihandler.NewBacktestHandler(jobs, deps.Provider, deps.Exporter, deps.Backtest, logger, m)
	signals := apihandler.NewSignalsHandler(deps.Scanner, deps.App)
	allocations := apihandler.NewAllocationHandler(deps.Scanner, deps.Accounts, deps.Sizer, deps.Allocator, deps.Diversify)
	watchlist := apihandler.NewWatchlistHandler(deps.App)

	s.mux.HandleFunc("POST /api/v1/backtests", backtests.Create)
	s.mux.HandleFunc("GET /api/v1/backtests/{id}", backtests.GetStatus)

	s.mux.HandleFunc("GET /api/v1/signals", signals.List)
	s.mux.HandleFunc("GET /api/v1/signals/{symbol}", signals.Get)

	s.mux.HandleFunc("POST /api/v1/allocations", allocations.Create)

	s.mux.HandleFunc("GET /api/v1/watchlist", watchlist.List)
	s.mux.HandleFunc("POST /api/v1/watchlist", watchlist.Add)
	s.mux.HandleFunc("DELETE /api/v1/watchlist/{symbol}", watchlist.Remove)

	if deps.Alerts != nil {
		history := apihandler.NewAlertsHandler(deps.Alerts)
		s.mux.HandleFunc("GET /api/v1/alerts", history.List)
		s.mux.HandleFunc("GET /api/v1/alerts/{id}", history.Get)
	}

	s.mux.HandleFunc("GET "+healthPath, func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"stats":  deps.App.GetStats(),
		})
	})

	if m != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(m, promhttp.HandlerOpts{Registry: m}))
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
