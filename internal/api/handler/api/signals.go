package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/scanner"
)

// SymbolScanner analyzes one symbol on demand.
type SymbolScanner interface {
	ScanSymbol(ctx context.Context, symbol string) (scanner.Result, error)
}

// LatestScan exposes the most recent watchlist scan.
type LatestScan interface {
	Latest() (scanner.Report, bool)
}

// SignalsHandler handles signal-related API requests.
type SignalsHandler struct {
	scanner SymbolScanner
	latest  LatestScan
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(sc SymbolScanner, latest LatestScan) *SignalsHandler {
	return &SignalsHandler{scanner: sc, latest: latest}
}

// Get analyzes a single symbol and returns its indicators and signal.
func (h *SignalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	result, err := h.scanner.ScanSymbol(r.Context(), symbol)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":     result.Symbol,
		"price":      result.Price,
		"volume":     result.Volume,
		"time":       result.Time,
		"liquid":     result.Liquid,
		"indicators": result.Snapshot,
		"signal":     result.Signal,
		"summary":    result.Signal.Summary(result.Price),
	})
}

// List returns the latest watchlist scan, optionally filtered by action
// and truncated by limit.
func (h *SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.latest.Latest()
	if !ok {
		response.JSON(w, http.StatusOK, map[string]any{
			"scanned_at": nil,
			"results":    []scanner.Result{},
			"skipped":    []scanner.Skip{},
		})
		return
	}

	q := r.URL.Query()
	results := rep.Results
	if action := q.Get("action"); action != "" {
		filtered := make([]scanner.Result, 0, len(results))
		for _, res := range results {
			if res.Signal.Action == core.Action(action) {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n >= 0 && n < len(results) {
			results = results[:n]
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"scanned_at": rep.Started,
		"duration":   rep.Duration.String(),
		"results":    results,
		"skipped":    rep.Skipped,
	})
}
