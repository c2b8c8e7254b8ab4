package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/newthinker/tradelab/internal/collector"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/signal"
	"go.uber.org/zap"
)

// Analyzer produces the signal for the last price of an expanding window.
type Analyzer interface {
	Analyze(prices []float64) signal.Analysis
}

// Backtester replays the signal process bar by bar against history
type Backtester struct {
	cfg      Config
	analyzer Analyzer
	logger   *zap.Logger
	metrics  *metrics.Registry
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithAnalyzer replaces the built-in indicator and signal pipeline. A custom
// analyzer is always called with the expanding window.
func WithAnalyzer(a Analyzer) Option {
	return func(b *Backtester) { b.analyzer = a }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records runs and trades into m.
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Backtester) { b.metrics = m }
}

// New creates a new Backtester
func New(cfg Config, opts ...Option) *Backtester {
	b := &Backtester{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the run configuration.
func (b *Backtester) Config() Config {
	return b.cfg
}

// RunSymbol fetches history for symbol and runs the simulation over it.
func (b *Backtester) RunSymbol(ctx context.Context, provider collector.HistoryProvider, symbol string, lookbackDays int, timeframe string) (*Result, error) {
	bars, err := provider.FetchHistory(ctx, symbol, lookbackDays, timeframe)
	if err != nil {
		b.metrics.RecordBacktest("error", 0)
		return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}
	return b.Run(ctx, symbol, bars)
}

// Run simulates the FLAT/LONG state machine over bars.
func (b *Backtester) Run(ctx context.Context, symbol string, bars []core.OHLCV) (*Result, error) {
	start := time.Now()

	if err := core.ValidateSeries(bars); err != nil {
		b.metrics.RecordBacktest("error", time.Since(start))
		return nil, err
	}

	closes := core.Closes(bars)
	signalAt := b.signalSource(closes)

	capital := b.cfg.InitialCapital
	var pos *Position
	trades := make([]Trade, 0)
	curve := make([]EquityPoint, 0, len(bars))

	for i, bar := range bars {
		select {
		case <-ctx.Done():
			b.metrics.RecordBacktest("cancelled", time.Since(start))
			return nil, ctx.Err()
		default:
		}

		price := bar.Close

		if i >= b.cfg.WarmupBars {
			sig := signalAt(i)

			if pos == nil {
				if sig.ShouldBuy(b.cfg.EntryStrength) {
					shares := int64(math.Floor(capital * b.cfg.PositionSizePct / price))
					if shares >= 1 {
						capital -= float64(shares) * price
						pos = &Position{Symbol: symbol, Shares: shares, EntryPrice: price, EntryTime: bar.Time}
						trades = append(trades, Trade{
							Time:     bar.Time,
							Side:     SideBuy,
							Price:    price,
							Shares:   shares,
							Signal:   sig.Action,
							Strength: sig.Strength,
						})
						b.logger.Debug("position opened",
							zap.String("symbol", symbol),
							zap.Time("time", bar.Time),
							zap.Int64("shares", shares),
							zap.Float64("price", price),
						)
					}
				}
			} else if reason := b.exitReason(sig, pos, price); reason != "" {
				capital, trades = b.close(capital, trades, pos, bar, sig, reason)
				pos = nil
			}
		}

		equity := capital
		if pos != nil {
			equity += float64(pos.Shares) * price
		}
		curve = append(curve, EquityPoint{Time: bar.Time, Equity: equity})
	}

	last := bars[len(bars)-1]
	if pos != nil {
		capital, trades = b.close(capital, trades, pos, last, signal.Result{}, ReasonEndOfTest)
	}

	for _, t := range trades {
		b.metrics.RecordTrade(string(t.Side), t.Reason)
	}

	totalReturn := (capital - b.cfg.InitialCapital) / b.cfg.InitialCapital * 100
	buyHold := (last.Close - bars[0].Close) / bars[0].Close * 100

	result := &Result{
		Symbol:           symbol,
		Start:            bars[0].Time,
		End:              last.Time,
		InitialCapital:   b.cfg.InitialCapital,
		FinalCapital:     capital,
		TotalReturnPct:   totalReturn,
		BuyHoldReturnPct: buyHold,
		Outperformance:   totalReturn - buyHold,
		Trades:           trades,
		EquityCurve:      curve,
		Stats:            CalculateStats(trades, curve),
	}

	b.metrics.RecordBacktest("success", time.Since(start))
	b.logger.Info("backtest complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(trades)),
		zap.Float64("total_return_pct", totalReturn),
	)

	return result, nil
}

// signalSource returns the per-bar signal function for closes. Incremental
// mode reads every bar from one full-series indicator set; indicator values
// are prefix-stable so this matches recomputing the expanding window.
func (b *Backtester) signalSource(closes []float64) func(i int) signal.Result {
	if b.analyzer != nil {
		return func(i int) signal.Result {
			return b.analyzer.Analyze(closes[:i+1]).Signal
		}
	}

	if b.cfg.Incremental {
		set := indicator.Compute(closes, b.cfg.Indicators)
		gen := signal.NewGenerator(b.cfg.Signal)
		return func(i int) signal.Result {
			return gen.Generate(set.At(i))
		}
	}

	analyzer := signal.NewAnalyzer(b.cfg.Indicators, b.cfg.Signal)
	return func(i int) signal.Result {
		return analyzer.Analyze(closes[:i+1]).Signal
	}
}

// exitReason checks the exit rules in priority order.
func (b *Backtester) exitReason(sig signal.Result, pos *Position, price float64) string {
	pnl := (price - pos.EntryPrice) / pos.EntryPrice

	switch {
	case sig.ShouldSell(b.cfg.ExitStrength):
		return ReasonSellSignal
	case pnl <= -b.cfg.StopLossPct:
		return ReasonStopLoss
	case pnl >= b.cfg.TakeProfitMultiple*b.cfg.StopLossPct:
		return ReasonTakeProfit
	default:
		return ""
	}
}

func (b *Backtester) close(capital float64, trades []Trade, pos *Position, bar core.OHLCV, sig signal.Result, reason string) (float64, []Trade) {
	price := bar.Close
	pnlPct := (price - pos.EntryPrice) / pos.EntryPrice * 100

	trades = append(trades, Trade{
		Time:     bar.Time,
		Side:     SideSell,
		Price:    price,
		Shares:   pos.Shares,
		Signal:   sig.Action,
		Strength: sig.Strength,
		PnLPct:   pnlPct,
		Reason:   reason,
	})

	b.logger.Debug("position closed",
		zap.String("symbol", pos.Symbol),
		zap.Time("time", bar.Time),
		zap.String("reason", reason),
		zap.Float64("pnl_pct", pnlPct),
	)

	return capital + float64(pos.Shares)*price, trades
}
