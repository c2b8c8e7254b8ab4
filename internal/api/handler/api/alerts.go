package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/storage/alerts"
)

const defaultAlertLimit = 50

// AlertsHandler serves the history of routed alerts.
type AlertsHandler struct {
	store alerts.Store
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(store alerts.Store) *AlertsHandler {
	return &AlertsHandler{store: store}
}

// List returns alerts matching query parameters, newest first.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	count, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"total":  count,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get returns a single alert by ID.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, a)
}

func parseAlertFilter(r *http.Request) (alerts.ListFilter, error) {
	q := r.URL.Query()
	filter := alerts.ListFilter{
		Symbol: strings.ToUpper(strings.TrimSpace(q.Get("symbol"))),
		Limit:  defaultAlertLimit,
	}

	if action := q.Get("action"); action != "" {
		filter.Action = core.Action(action)
		if !filter.Action.Valid() {
			return filter, fmt.Errorf("unknown action %q", action)
		}
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		return filter, fmt.Errorf("from: %w", err)
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		return filter, fmt.Errorf("to: %w", err)
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("limit must be a positive integer, got %q", limit)
		}
		filter.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("offset must be a non-negative integer, got %q", offset)
		}
		filter.Offset = n
	}

	return filter, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
