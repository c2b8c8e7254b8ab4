package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/scanner"
)

// WatchlistScanner analyzes many symbols at once.
type WatchlistScanner interface {
	Scan(ctx context.Context, symbols []string) scanner.Report
}

// AllocationRequest asks for an allocation plan. Symbols are scanned first;
// Candidates are used as given. Without an account provider the budget must
// be supplied by the caller.
type AllocationRequest struct {
	Symbols        []string         `json:"symbols,omitempty"`
	Candidates     []risk.Candidate `json:"candidates,omitempty"`
	PortfolioValue float64          `json:"portfolio_value,omitempty"`
	Capital        float64          `json:"capital,omitempty"`
	OpenPositions  int              `json:"open_positions,omitempty"`
	Diversify      *bool            `json:"diversify,omitempty"`
}

// AllocationHandler ranks candidates and proposes buys.
type AllocationHandler struct {
	scanner   WatchlistScanner
	accounts  broker.AccountProvider
	sizer     *risk.Sizer
	allocator *risk.Allocator
	diversify bool
}

// NewAllocationHandler creates an allocation handler. accounts may be nil.
func NewAllocationHandler(sc WatchlistScanner, accounts broker.AccountProvider, sizer *risk.Sizer, allocator *risk.Allocator, diversify bool) *AllocationHandler {
	return &AllocationHandler{
		scanner:   sc,
		accounts:  accounts,
		sizer:     sizer,
		allocator: allocator,
		diversify: diversify,
	}
}

// Create builds an allocation plan.
func (h *AllocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}
	if len(req.Symbols) == 0 && len(req.Candidates) == 0 {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("symbols or candidates required")))
		return
	}

	budget, err := h.budget(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}

	candidates := req.Candidates
	var skipped []scanner.Skip
	if len(req.Symbols) > 0 {
		symbols := make([]string, 0, len(req.Symbols))
		for _, s := range req.Symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
		rep := h.scanner.Scan(r.Context(), symbols)
		candidates = append(candidates, rep.Candidates()...)
		skipped = rep.Skipped
	}

	diversify := h.diversify
	if req.Diversify != nil {
		diversify = *req.Diversify
	}

	plan := risk.NewPlan(nil)
	if !budget.Halted {
		plan = h.allocator.RankAndAllocate(candidates, budget.PortfolioValue, budget.Capital, budget.Slots, diversify)
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"budget":        budget,
		"plan":          plan,
		"risk_pct":      plan.RiskPct(budget.PortfolioValue),
		"potential_pct": plan.PotentialPct(),
		"reward_risk":   plan.RewardRisk(),
		"skipped":       skipped,
	})
}

func (h *AllocationHandler) budget(ctx context.Context, req AllocationRequest) (risk.Budget, error) {
	if req.PortfolioValue > 0 {
		capital := req.Capital
		if capital <= 0 {
			capital = req.PortfolioValue
		}
		return h.sizer.Budget(broker.Account{
			Cash:           capital,
			BuyingPower:    capital,
			PortfolioValue: req.PortfolioValue,
			Equity:         req.PortfolioValue,
		}, req.OpenPositions), nil
	}
	if h.accounts == nil {
		return risk.Budget{}, core.WrapError(core.ErrInvalidRequest,
			errors.New("portfolio_value required when no account provider is configured"))
	}
	return h.sizer.FetchBudget(ctx, h.accounts)
}
