package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/metrics"
	"go.uber.org/zap"
)

// Registry holds collectors in registration order and fetches through them
// with fallback: the first collector returning data wins.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
	order      []string

	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewRegistry creates a new collector registry
func NewRegistry(logger *zap.Logger, m *metrics.Registry) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		collectors: make(map[string]Collector),
		logger:     logger,
		metrics:    m,
	}
}

// Register adds a collector. Re-registering a name replaces it in place.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collectors[c.Name()]; !ok {
		r.order = append(r.order, c.Name())
	}
	r.collectors[c.Name()] = c
}

// Get retrieves a collector by name
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[name]
	return c, ok
}

// GetAll returns all registered collectors in registration order.
func (r *Registry) GetAll() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Collector, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.collectors[name])
	}
	return result
}

// Prefer moves name to the front of the fallback order.
func (r *Registry) Prefer(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collectors[name]; !ok {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown collector %q", name))
	}
	order := []string{name}
	for _, n := range r.order {
		if n != name {
			order = append(order, n)
		}
	}
	r.order = order
	return nil
}

// FetchHistory implements HistoryProvider with fallback.
func (r *Registry) FetchHistory(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]core.OHLCV, error) {
	var errs []error
	for _, c := range r.GetAll() {
		bars, err := c.FetchHistory(ctx, symbol, lookbackDays, timeframe)
		if err == nil && len(bars) == 0 {
			err = core.ErrNoData
		}
		if err == nil {
			return bars, nil
		}
		if ctx.Err() != nil {
			return nil, core.WrapError(core.ErrCollectorTimeout, ctx.Err())
		}
		r.failed(c.Name(), symbol, err)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return nil, r.exhausted(symbol, errs)
}

// FetchLatestPrice implements PriceProvider with fallback.
func (r *Registry) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	var errs []error
	for _, c := range r.GetAll() {
		price, err := c.FetchLatestPrice(ctx, symbol)
		if err == nil && price <= 0 {
			err = core.ErrNoData
		}
		if err == nil {
			return price, nil
		}
		if ctx.Err() != nil {
			return 0, core.WrapError(core.ErrCollectorTimeout, ctx.Err())
		}
		r.failed(c.Name(), symbol, err)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return 0, r.exhausted(symbol, errs)
}

func (r *Registry) failed(name, symbol string, err error) {
	r.metrics.RecordFetchFailure(name)
	r.logger.Warn("collector fetch failed",
		zap.String("collector", name),
		zap.String("symbol", symbol),
		zap.Error(err),
	)
}

func (r *Registry) exhausted(symbol string, errs []error) error {
	if len(errs) == 0 {
		return core.WrapError(core.ErrCollectorFailed, fmt.Errorf("no collectors registered for %s", symbol))
	}
	return core.WrapError(core.ErrCollectorFailed, errors.Join(errs...))
}
