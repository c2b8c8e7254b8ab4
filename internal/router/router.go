// Package router filters scan signals into alerts and fans them out to
// notifiers.
package router

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/notifier"
	"github.com/newthinker/tradelab/internal/storage/alerts"
	"go.uber.org/zap"
)

// Config holds router configuration
type Config struct {
	// MinStrength is the smallest absolute signal strength that alerts.
	MinStrength    float64       `mapstructure:"min_strength"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	EnabledActions []core.Action `mapstructure:"enabled_actions"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		MinStrength:    0.4,
		Cooldown:       4 * time.Hour,
		EnabledActions: []core.Action{core.ActionBuy, core.ActionSell, core.ActionStrongBuy, core.ActionStrongSell},
	}
}

type cooldown struct {
	at     time.Time
	action core.Action
}

// Router routes alerts to notifiers with filtering. A symbol alerts again
// only after the cooldown, or sooner when its action changes.
type Router struct {
	cfg       Config
	registry  *notifier.Registry
	store     alerts.Store
	logger    *zap.Logger
	metrics   *metrics.Registry
	cooldowns map[string]cooldown
	now       func() time.Time
	mu        sync.RWMutex
}

// New creates a new alert router. registry may be nil to only record history.
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger, m *metrics.Registry) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		metrics:   m,
		cooldowns: make(map[string]cooldown),
		now:       time.Now,
	}
}

// SetStore sets the alert history store
func (r *Router) SetStore(store alerts.Store) {
	r.store = store
}

// Route filters candidates, records the survivors and sends them to every
// notifier as one batch. It returns the routed alerts.
func (r *Router) Route(ctx context.Context, candidates []notifier.Alert) []notifier.Alert {
	now := r.now().UTC()
	routed := make([]notifier.Alert, 0, len(candidates))

	r.mu.Lock()
	for _, a := range candidates {
		if !r.passesLocked(a, now) {
			r.logger.Debug("alert filtered out",
				zap.String("symbol", a.Symbol),
				zap.String("action", string(a.Action)),
				zap.Float64("strength", a.Strength),
			)
			continue
		}
		r.cooldowns[a.Symbol] = cooldown{at: now, action: a.Action}
		a.RaisedAt = now
		routed = append(routed, a)
	}
	r.mu.Unlock()

	if len(routed) == 0 {
		return routed
	}

	for i, a := range routed {
		r.metrics.RecordAlert(string(a.Action))
		if r.store == nil {
			continue
		}
		saved, err := r.store.Save(ctx, a)
		if err != nil {
			r.logger.Error("failed to persist alert", zap.String("symbol", a.Symbol), zap.Error(err))
			continue
		}
		routed[i] = saved
	}

	if r.registry == nil {
		return routed
	}

	errs := r.registry.NotifyAll(ctx, routed)
	for _, n := range r.registry.GetAll() {
		err := errs[n.Name()]
		r.metrics.RecordNotification(n.Name(), err)
		if err != nil {
			r.logger.Error("notifier failed",
				zap.String("notifier", n.Name()),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("alerts routed",
		zap.Int("candidates", len(candidates)),
		zap.Int("routed", len(routed)),
		zap.Int("notifiers", len(r.registry.GetAll())),
		zap.Int("errors", len(errs)),
	)

	return routed
}

func (r *Router) passesLocked(a notifier.Alert, now time.Time) bool {
	if math.Abs(a.Strength) < r.cfg.MinStrength {
		return false
	}
	if len(r.cfg.EnabledActions) > 0 && !slices.Contains(r.cfg.EnabledActions, a.Action) {
		return false
	}

	last, exists := r.cooldowns[a.Symbol]
	if exists && last.action == a.Action && now.Sub(last.at) < r.cfg.Cooldown {
		return false
	}
	return true
}

// ClearCooldown removes cooldown for a specific symbol
func (r *Router) ClearCooldown(symbol string) {
	r.mu.Lock()
	delete(r.cooldowns, symbol)
	r.mu.Unlock()
}

// CleanupExpiredCooldowns removes cooldown entries older than 2x the cooldown duration.
func (r *Router) CleanupExpiredCooldowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	expiry := r.cfg.Cooldown * 2
	removed := 0

	for symbol, last := range r.cooldowns {
		if now.Sub(last.at) > expiry {
			delete(r.cooldowns, symbol)
			removed++
		}
	}

	return removed
}

// StartCleanupRoutine periodically drops expired cooldowns until ctx is done.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.CleanupExpiredCooldowns(); removed > 0 {
					r.logger.Debug("cleaned up expired cooldowns", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]any{
		"cooldowns_active": len(r.cooldowns),
		"min_strength":     r.cfg.MinStrength,
		"cooldown_seconds": r.cfg.Cooldown.Seconds(),
		"enabled_actions":  r.cfg.EnabledActions,
	}
}
