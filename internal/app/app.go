// Package app runs the periodic watchlist scan and keeps the latest report.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/notifier"
	"github.com/newthinker/tradelab/internal/scanner"
	"go.uber.org/zap"
)

// Scanner analyzes a list of symbols.
type Scanner interface {
	Scan(ctx context.Context, symbols []string) scanner.Report
}

const defaultInterval = 15 * time.Minute

// AlertRouter filters and delivers alerts raised by a scan.
type AlertRouter interface {
	Route(ctx context.Context, alerts []notifier.Alert) []notifier.Alert
}

// App is the monitoring loop behind the serve command.
type App struct {
	scanner Scanner
	router  AlertRouter
	logger  *zap.Logger
	metrics *metrics.Registry

	watchlist    []string
	watchlistSet map[string]struct{}
	interval     time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	latest  *scanner.Report
	cycles  int
	alerted int
}

// New creates a new App instance
func New(sc Scanner, logger *zap.Logger, m *metrics.Registry) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		scanner:      sc,
		logger:       logger,
		metrics:      m,
		watchlist:    []string{},
		watchlistSet: make(map[string]struct{}),
		interval:     defaultInterval,
	}
}

// SetWatchlist replaces the symbols to monitor. Symbols are upper-cased
// and duplicates dropped.
func (a *App) SetWatchlist(symbols []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.watchlist = make([]string, 0, len(symbols))
	a.watchlistSet = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		a.addLocked(s)
	}
	a.metrics.SetWatchlistSize(len(a.watchlist))
}

// AddToWatchlist adds a symbol. It reports false if it was already present.
func (a *App) AddToWatchlist(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	added := a.addLocked(symbol)
	a.metrics.SetWatchlistSize(len(a.watchlist))
	return added
}

func (a *App) addLocked(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false
	}
	if _, exists := a.watchlistSet[symbol]; exists {
		return false
	}
	a.watchlistSet[symbol] = struct{}{}
	a.watchlist = append(a.watchlist, symbol)
	return true
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (a *App) RemoveFromWatchlist(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.watchlistSet[symbol]; !exists {
		return false
	}
	delete(a.watchlistSet, symbol)
	for i, s := range a.watchlist {
		if s == symbol {
			a.watchlist = append(a.watchlist[:i], a.watchlist[i+1:]...)
			break
		}
	}
	a.metrics.SetWatchlistSize(len(a.watchlist))
	return true
}

// GetWatchlist returns the current watchlist symbols.
func (a *App) GetWatchlist() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]string, len(a.watchlist))
	copy(result, a.watchlist)
	return result
}

// SetRouter routes the actionable results of every scan. A nil router
// disables alerting.
func (a *App) SetRouter(r AlertRouter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.router = r
}

// SetInterval sets the scan interval. Non-positive values restore the
// default.
func (a *App) SetInterval(d time.Duration) {
	if d <= 0 {
		d = defaultInterval
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interval = d
}

// Start scans immediately and then on every interval until ctx is done.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	interval := a.interval
	count := len(a.watchlist)
	a.mu.Unlock()

	a.logger.Info("scan loop starting",
		zap.Int("watchlist_count", count),
		zap.Duration("interval", interval),
	)

	a.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("scan loop stopping")
			a.mu.Lock()
			a.running = false
			a.cancel = nil
			a.mu.Unlock()
			cancel()
			return ctx.Err()
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// Stop stops the scan loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// RunOnce scans the watchlist and stores the report as the latest one. An
// empty watchlist leaves the previous report in place.
func (a *App) RunOnce(ctx context.Context) (scanner.Report, bool) {
	symbols := a.GetWatchlist()
	if len(symbols) == 0 {
		a.logger.Debug("no symbols in watchlist")
		return scanner.Report{}, false
	}

	report := a.scanner.Scan(ctx, symbols)
	if ctx.Err() != nil && len(report.Results) == 0 {
		return report, false
	}

	a.mu.Lock()
	a.latest = &report
	a.cycles++
	router := a.router
	a.mu.Unlock()

	if router != nil {
		if candidates := Alerts(report); len(candidates) > 0 {
			routed := router.Route(ctx, candidates)
			a.mu.Lock()
			a.alerted += len(routed)
			a.mu.Unlock()
		}
	}

	return report, true
}

// Alerts converts the liquid, non-hold results of a report into alert
// candidates.
func Alerts(report scanner.Report) []notifier.Alert {
	out := make([]notifier.Alert, 0, len(report.Results))
	for _, res := range report.Results {
		if !res.Liquid || res.Signal.Action == core.ActionHold {
			continue
		}
		out = append(out, notifier.Alert{
			Symbol:   res.Symbol,
			Action:   res.Signal.Action,
			Strength: res.Signal.Strength,
			Price:    res.Price,
			Reasons:  res.Signal.Reasons,
			Summary:  res.Signal.Summary(res.Price),
			BarTime:  res.Time,
		})
	}
	return out
}

// Latest returns the most recent scan report.
func (a *App) Latest() (scanner.Report, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latest == nil {
		return scanner.Report{}, false
	}
	return *a.latest, true
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"running":   a.running,
		"watchlist": len(a.watchlist),
		"interval":  a.interval.String(),
		"cycles":    a.cycles,
		"alerts":    a.alerted,
	}
	if a.latest != nil {
		stats["last_scan"] = a.latest.Started
	}
	return stats
}
