package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/newthinker/tradelab/internal/core"
	"go.uber.org/zap"
)

// Candidate is one analyzed symbol offered for allocation.
type Candidate struct {
	Symbol   string      `json:"symbol"`
	Price    float64     `json:"price"`
	Action   core.Action `json:"action"`
	Strength float64     `json:"strength"`
}

// Opportunity is a qualified candidate with its risk and reward levels.
type Opportunity struct {
	Candidate
	StopLoss       float64 `json:"stop_loss"`
	TakeProfit     float64 `json:"take_profit"`
	RiskPerShare   float64 `json:"risk_per_share"`
	RewardPerShare float64 `json:"reward_per_share"`
	// RawRatio is reward over risk before strength scaling.
	RawRatio     float64 `json:"raw_ratio"`
	Ratio        float64 `json:"ratio"`
	PositionCost float64 `json:"position_cost"`
}

// Allocation is a proposed buy. Nothing here places orders.
type Allocation struct {
	Symbol     string  `json:"symbol"`
	Shares     int64   `json:"shares"`
	EntryPrice float64 `json:"entry_price"`
	Cost       float64 `json:"cost"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	RiskReward float64 `json:"risk_reward"`
	MaxLoss    float64 `json:"max_loss"`
	MaxGain    float64 `json:"max_gain"`
	Reason     string  `json:"reason"`
}

// Plan is a set of allocations with their totals.
type Plan struct {
	Allocations    []Allocation `json:"allocations"`
	Deployed       float64      `json:"deployed"`
	TotalRisk      float64      `json:"total_risk"`
	TotalPotential float64      `json:"total_potential"`
}

// NewPlan totals allocs.
func NewPlan(allocs []Allocation) Plan {
	p := Plan{Allocations: allocs}
	for _, a := range allocs {
		p.Deployed += a.Cost
		p.TotalRisk += a.MaxLoss
		p.TotalPotential += a.MaxGain
	}
	return p
}

// RiskPct returns total risk as a percentage of portfolioValue.
func (p Plan) RiskPct(portfolioValue float64) float64 {
	if portfolioValue <= 0 {
		return 0
	}
	return p.TotalRisk / portfolioValue * 100
}

// PotentialPct returns total potential gain as a percentage of deployed capital.
func (p Plan) PotentialPct() float64 {
	if p.Deployed <= 0 {
		return 0
	}
	return p.TotalPotential / p.Deployed * 100
}

// RewardRisk returns the overall reward to risk ratio.
func (p Plan) RewardRisk() float64 {
	if p.TotalRisk <= 0 {
		return 0
	}
	return p.TotalPotential / p.TotalRisk
}

// Allocator ranks buy candidates and spreads capital across them.
type Allocator struct {
	sizer  *Sizer
	logger *zap.Logger
}

// NewAllocator creates an Allocator that sizes through sizer.
func NewAllocator(sizer *Sizer, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{sizer: sizer, logger: logger}
}

// Rank keeps buy-side candidates whose strength-scaled reward/risk ratio
// reaches the configured minimum, best first.
func (a *Allocator) Rank(candidates []Candidate, portfolioValue float64) []Opportunity {
	cfg := a.sizer.Config()
	opps := make([]Opportunity, 0, len(candidates))

	for _, c := range candidates {
		if !c.Action.IsBuy() {
			continue
		}

		d := a.sizer.SizePosition(c.Symbol, c.Price, portfolioValue, 0)
		if !d.Approved {
			a.logger.Debug("candidate not sizable", zap.String("symbol", c.Symbol), zap.String("reason", d.Reason))
			continue
		}

		stop := a.sizer.StopLoss(c.Price, Long)
		target := a.sizer.TakeProfit(c.Price, cfg.RiskReward, Long)
		risk := c.Price - stop
		reward := target - c.Price
		if risk <= 0 {
			continue
		}

		raw := reward / risk
		ratio := raw * math.Max(0, c.Strength)
		if ratio < cfg.MinRiskReward {
			a.logger.Debug("candidate below minimum ratio",
				zap.String("symbol", c.Symbol),
				zap.Float64("ratio", ratio),
			)
			continue
		}

		opps = append(opps, Opportunity{
			Candidate:      c,
			StopLoss:       stop,
			TakeProfit:     target,
			RiskPerShare:   risk,
			RewardPerShare: reward,
			RawRatio:       raw,
			Ratio:          ratio,
			PositionCost:   d.Cost,
		})
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Ratio > opps[j].Ratio
	})
	return opps
}

// Allocate turns ranked opportunities into allocations. With diversify the
// top slots are filled in order, each capped by its sized cost and the
// remaining capital; otherwise only the best opportunity is bought.
func (a *Allocator) Allocate(opps []Opportunity, capital float64, slots int, diversify bool) []Allocation {
	allocs := make([]Allocation, 0)
	if slots <= 0 || len(opps) == 0 {
		return allocs
	}

	if !diversify {
		best := opps[0]
		if alloc, ok := allocation(best, math.Min(best.PositionCost, capital)); ok {
			alloc.Reason = fmt.Sprintf("Best opportunity - R/R %.2f", best.Ratio)
			allocs = append(allocs, alloc)
		}
		return allocs
	}

	remaining := capital
	minAlloc := a.sizer.Config().MinAllocation
	for i, opp := range opps[:min(len(opps), slots)] {
		size := math.Min(opp.PositionCost, remaining)
		if size < minAlloc {
			a.logger.Debug("insufficient capital for slot",
				zap.String("symbol", opp.Symbol),
				zap.Float64("size", size),
			)
			continue
		}

		alloc, ok := allocation(opp, size)
		if !ok {
			continue
		}
		alloc.Reason = fmt.Sprintf("Top %d opportunity - R/R %.2f", i+1, opp.Ratio)
		allocs = append(allocs, alloc)
		remaining -= alloc.Cost
	}

	return allocs
}

// RankAndAllocate ranks candidates and allocates capital across them.
func (a *Allocator) RankAndAllocate(candidates []Candidate, portfolioValue, capital float64, slots int, diversify bool) Plan {
	opps := a.Rank(candidates, portfolioValue)
	plan := NewPlan(a.Allocate(opps, capital, slots, diversify))

	a.logger.Info("allocation complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("qualified", len(opps)),
		zap.Int("allocations", len(plan.Allocations)),
		zap.Float64("deployed", plan.Deployed),
	)
	return plan
}

func allocation(opp Opportunity, size float64) (Allocation, bool) {
	shares := int64(math.Floor(size / opp.Price))
	if shares < 1 {
		return Allocation{}, false
	}
	return Allocation{
		Symbol:     opp.Symbol,
		Shares:     shares,
		EntryPrice: opp.Price,
		Cost:       float64(shares) * opp.Price,
		StopLoss:   opp.StopLoss,
		TakeProfit: opp.TakeProfit,
		RiskReward: opp.Ratio,
		MaxLoss:    float64(shares) * opp.RiskPerShare,
		MaxGain:    float64(shares) * opp.RewardPerShare,
	}, true
}
