// Package scanner analyzes a watchlist concurrently and ranks the results
// by signal strength.
package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/tradelab/internal/collector"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/signal"
	"go.uber.org/zap"
)

// Outcome labels for a scanned symbol.
const (
	OutcomeOK      = "ok"
	OutcomeNoData  = "no_data"
	OutcomeTimeout = "timeout"
)

// Config controls a scan.
type Config struct {
	Workers      int           `json:"workers"`
	Timeout      time.Duration `json:"timeout"`
	LookbackDays int           `json:"lookback_days"`
	Timeframe    string        `json:"timeframe"`
	MinVolume    int64         `json:"min_volume"`
}

// DefaultConfig returns the standard scan settings.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		Timeout:      15 * time.Second,
		LookbackDays: 365,
		Timeframe:    "1d",
		MinVolume:    1_000_000,
	}
}

// Result is the analysis of one symbol's latest bar.
type Result struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
	Time   time.Time `json:"time"`
	// Liquid is false when the last bar's volume is below the minimum.
	Liquid bool `json:"liquid"`
	signal.Analysis
}

// Skip records a symbol that produced no result.
type Skip struct {
	Symbol  string `json:"symbol"`
	Outcome string `json:"outcome"`
	Error   string `json:"error"`
}

// Report is the output of one scan.
type Report struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []Result      `json:"results"`
	Skipped  []Skip        `json:"skipped"`
}

// Candidates converts the liquid results into allocation candidates.
func (r Report) Candidates() []risk.Candidate {
	out := make([]risk.Candidate, 0, len(r.Results))
	for _, res := range r.Results {
		if !res.Liquid {
			continue
		}
		out = append(out, risk.Candidate{
			Symbol:   res.Symbol,
			Price:    res.Price,
			Action:   res.Signal.Action,
			Strength: res.Signal.Strength,
		})
	}
	return out
}

// Scanner fetches history and analyzes symbols with a bounded worker pool.
type Scanner struct {
	cfg      Config
	provider collector.HistoryProvider
	analyzer *signal.Analyzer
	logger   *zap.Logger
	metrics  *metrics.Registry
}

// New creates a scanner. A nil logger is replaced with a no-op logger.
func New(cfg Config, provider collector.HistoryProvider, analyzer *signal.Analyzer, logger *zap.Logger, m *metrics.Registry) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Scanner{
		cfg:      cfg,
		provider: provider,
		analyzer: analyzer,
		logger:   logger,
		metrics:  m,
	}
}

type outcome struct {
	result Result
	skip   *Skip
}

// Scan analyzes every symbol. Symbols whose data cannot be fetched in time
// are skipped, never fatal. Results are ordered by strength, strongest buy
// first; ties keep watchlist order.
func (s *Scanner) Scan(ctx context.Context, symbols []string) Report {
	start := time.Now()

	jobs := make(chan int)
	outcomes := make([]outcome, len(symbols))

	var wg sync.WaitGroup
	for w := 0; w < min(s.cfg.Workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.scanOne(ctx, symbols[i])
			}
		}()
	}

feed:
	for i := range symbols {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(symbols); j++ {
				outcomes[j] = outcome{skip: &Skip{Symbol: symbols[j], Outcome: OutcomeTimeout, Error: ctx.Err().Error()}}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report := Report{
		Started: start,
		Results: make([]Result, 0, len(symbols)),
		Skipped: make([]Skip, 0),
	}
	for _, o := range outcomes {
		if o.skip != nil {
			report.Skipped = append(report.Skipped, *o.skip)
			s.metrics.RecordScanOutcome(o.skip.Outcome)
			continue
		}
		report.Results = append(report.Results, o.result)
		s.metrics.RecordScanOutcome(OutcomeOK)
		s.metrics.RecordSignal(string(o.result.Signal.Action))
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Signal.Strength > report.Results[j].Signal.Strength
	})

	report.Duration = time.Since(start)
	s.metrics.RecordScan(report.Duration)
	s.logger.Info("scan complete",
		zap.Int("symbols", len(symbols)),
		zap.Int("results", len(report.Results)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// ScanSymbol analyzes a single symbol.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	bars, err := s.provider.FetchHistory(ctx, symbol, s.cfg.LookbackDays, s.cfg.Timeframe)
	if err == nil {
		err = core.ValidateSeries(bars)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, core.WrapError(core.ErrCollectorTimeout, err)
		}
		return Result{}, err
	}

	last := bars[len(bars)-1]
	return Result{
		Symbol:   symbol,
		Price:    last.Close,
		Volume:   last.Volume,
		Time:     last.Time,
		Liquid:   last.Volume >= s.cfg.MinVolume,
		Analysis: s.analyzer.Analyze(core.Closes(bars)),
	}, nil
}

func (s *Scanner) scanOne(ctx context.Context, symbol string) outcome {
	res, err := s.ScanSymbol(ctx, symbol)
	if err != nil {
		kind := OutcomeNoData
		if errors.Is(err, core.ErrCollectorTimeout) {
			kind = OutcomeTimeout
		}
		s.logger.Warn("symbol skipped",
			zap.String("symbol", symbol),
			zap.String("outcome", kind),
			zap.Error(err),
		)
		return outcome{skip: &Skip{Symbol: symbol, Outcome: kind, Error: err.Error()}}
	}
	return outcome{result: res}
}
