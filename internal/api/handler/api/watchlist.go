package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/core"
)

// WatchlistApp defines the interface needed from app.App.
type WatchlistApp interface {
	GetWatchlist() []string
	AddToWatchlist(symbol string) bool
	RemoveFromWatchlist(symbol string) bool
}

// WatchlistHandler handles watchlist API requests.
type WatchlistHandler struct {
	app WatchlistApp
}

// NewWatchlistHandler creates a new watchlist handler.
func NewWatchlistHandler(app WatchlistApp) *WatchlistHandler {
	return &WatchlistHandler{app: app}
}

// AddRequest is the request body for adding a symbol.
type AddRequest struct {
	Symbol string `json:"symbol"`
}

// List returns all symbols in the watchlist.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	symbols := h.app.GetWatchlist()
	response.JSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// Add adds a symbol to the watchlist.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("symbol is required")))
		return
	}

	added := h.app.AddToWatchlist(symbol)
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	response.JSON(w, status, map[string]any{
		"symbol": symbol,
		"added":  added,
	})
}

// Remove removes a symbol from the watchlist.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if !h.app.RemoveFromWatchlist(symbol) {
		response.Fail(w, core.ErrSymbolNotFound)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"removed": true,
	})
}
