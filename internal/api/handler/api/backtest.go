// Package api implements the JSON handlers behind /api/v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/api/job"
	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/collector"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/report"
	"go.uber.org/zap"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for starting a backtest. Zero or
// missing fields keep the server's configured values.
type BacktestRequest struct {
	Symbol          string   `json:"symbol"`
	LookbackDays    int      `json:"lookback_days,omitempty"`
	Timeframe       string   `json:"timeframe,omitempty"`
	InitialCapital  float64  `json:"initial_capital,omitempty"`
	PositionSizePct float64  `json:"position_size_pct,omitempty"`
	StopLossPct     float64  `json:"stop_loss_pct,omitempty"`
	EntryStrength   *float64 `json:"entry_strength,omitempty"`
	ExitStrength    *float64 `json:"exit_strength,omitempty"`
	Export          bool     `json:"export,omitempty"`
}

// BacktestOutput is the result stored on a finished backtest job.
type BacktestOutput struct {
	Result *backtest.Result `json:"result"`
	Report *report.Manifest `json:"report,omitempty"`
}

// BacktestDefaults are applied to requests that leave fields unset.
type BacktestDefaults struct {
	Config       backtest.Config
	LookbackDays int
	Timeframe    string
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	provider collector.HistoryProvider
	exporter *report.Exporter
	defaults BacktestDefaults
	logger   *zap.Logger
	metrics  *metrics.Registry
}

// NewBacktestHandler creates a new backtest handler. A nil exporter
// rejects export requests.
func NewBacktestHandler(
	jobStore *job.Store,
	provider collector.HistoryProvider,
	exporter *report.Exporter,
	defaults BacktestDefaults,
	logger *zap.Logger,
	m *metrics.Registry,
) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore: jobStore,
		provider: provider,
		exporter: exporter,
		defaults: defaults,
		logger:   logger,
		metrics:  m,
	}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("symbol is required")))
		return
	}
	if req.Export && h.exporter == nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("report export is not configured")))
		return
	}

	cfg, err := h.config(req)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobStore.Create("backtest")
	h.metrics.SetJobsActive("backtest", h.jobStore.Active())

	go h.runBacktest(j.ID, cfg, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// config merges request overrides into the defaults.
func (h *BacktestHandler) config(req BacktestRequest) (backtest.Config, error) {
	cfg := h.defaults.Config
	if req.InitialCapital != 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.PositionSizePct != 0 {
		cfg.PositionSizePct = req.PositionSizePct
	}
	if req.StopLossPct != 0 {
		cfg.StopLossPct = req.StopLossPct
	}
	if req.EntryStrength != nil {
		cfg.EntryStrength = *req.EntryStrength
	}
	if req.ExitStrength != nil {
		cfg.ExitStrength = *req.ExitStrength
	}

	switch {
	case cfg.InitialCapital <= 0:
		return cfg, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("initial_capital must be positive"))
	case cfg.PositionSizePct <= 0 || cfg.PositionSizePct > 1:
		return cfg, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("position_size_pct must be in (0, 1]"))
	case cfg.StopLossPct <= 0 || cfg.StopLossPct >= 1:
		return cfg, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("stop_loss_pct must be in (0, 1)"))
	case req.LookbackDays < 0:
		return cfg, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("lookback_days cannot be negative"))
	}
	return cfg, nil
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, cfg backtest.Config, req BacktestRequest) {
	defer func() { h.metrics.SetJobsActive("backtest", h.jobStore.Active()) }()

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	lookback := req.LookbackDays
	if lookback == 0 {
		lookback = h.defaults.LookbackDays
	}
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = h.defaults.Timeframe
	}

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	bt := backtest.New(cfg, backtest.WithLogger(h.logger), backtest.WithMetrics(h.metrics))
	result, err := bt.RunSymbol(ctx, h.provider, req.Symbol, lookback, timeframe)
	if err != nil {
		h.fail(jobID, req.Symbol, err)
		return
	}

	out := BacktestOutput{Result: result}
	if req.Export {
		manifest, err := h.exporter.Export(ctx, result)
		if err != nil {
			h.fail(jobID, req.Symbol, err)
			return
		}
		out.Report = &manifest
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = out
	})
}

func (h *BacktestHandler) fail(jobID, symbol string, err error) {
	h.logger.Warn("backtest job failed",
		zap.String("job_id", jobID),
		zap.String("symbol", symbol),
		zap.Error(err),
	)

	var coded *core.Error
	if !errors.As(err, &coded) {
		coded = core.WrapError(core.ErrCollectorFailed, err)
	} else {
		coded = core.WrapError(coded, err)
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Error = coded
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		detail := map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
		if j.Error.Cause != nil {
			detail["cause"] = j.Error.Cause.Error()
		}
		resp["error"] = detail
	}

	response.JSON(w, http.StatusOK, resp)
}
