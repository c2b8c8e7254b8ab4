package risk

import (
	"testing"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAllocator(mutate func(*Config)) *Allocator {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewAllocator(NewSizer(cfg, nil), nil)
}

func TestAllocator_RankScenario(t *testing.T) {
	// raw reward/risk is 5, so strengths give 2.5, 1.2 and 3.0
	a := newAllocator(func(c *Config) { c.RiskReward = 5 })

	opps := a.Rank([]Candidate{
		{Symbol: "AAA", Price: 100, Action: core.ActionBuy, Strength: 0.5},
		{Symbol: "BBB", Price: 100, Action: core.ActionBuy, Strength: 0.24},
		{Symbol: "CCC", Price: 100, Action: core.ActionStrongBuy, Strength: 0.6},
	}, 100000)

	require.Len(t, opps, 2)
	assert.Equal(t, "CCC", opps[0].Symbol)
	assert.InDelta(t, 3.0, opps[0].Ratio, 1e-9)
	assert.Equal(t, "AAA", opps[1].Symbol)
	assert.InDelta(t, 2.5, opps[1].Ratio, 1e-9)
	assert.InDelta(t, 5.0, opps[1].RawRatio, 1e-9)
}

func TestAllocator_RankFilters(t *testing.T) {
	a := newAllocator(func(c *Config) { c.RiskReward = 5 })

	opps := a.Rank([]Candidate{
		{Symbol: "SELL", Price: 100, Action: core.ActionSell, Strength: 0.9},
		{Symbol: "HOLD", Price: 100, Action: core.ActionHold, Strength: 0.9},
		{Symbol: "NEG", Price: 100, Action: core.ActionBuy, Strength: -0.5},
		{Symbol: "PRICEY", Price: 50000, Action: core.ActionBuy, Strength: 0.9},
		{Symbol: "OK", Price: 100, Action: core.ActionBuy, Strength: 0.9},
	}, 100000)

	require.Len(t, opps, 1)
	assert.Equal(t, "OK", opps[0].Symbol)
	assert.InDelta(t, 10000.0, opps[0].PositionCost, 1e-9)
}

func qualified(t *testing.T, a *Allocator, symbols ...string) []Opportunity {
	t.Helper()
	candidates := make([]Candidate, len(symbols))
	for i, s := range symbols {
		// descending strength keeps the input order after ranking
		candidates[i] = Candidate{Symbol: s, Price: 100, Action: core.ActionStrongBuy, Strength: 1 - float64(i)*0.1}
	}
	opps := a.Rank(candidates, 100000)
	require.Len(t, opps, len(symbols))
	return opps
}

func TestAllocator_Diversify(t *testing.T) {
	a := newAllocator(nil)
	opps := qualified(t, a, "AAA", "BBB", "CCC")

	allocs := a.Allocate(opps, 15000, 2, true)

	require.Len(t, allocs, 2)
	assert.Equal(t, "AAA", allocs[0].Symbol)
	assert.Equal(t, int64(100), allocs[0].Shares)
	assert.Equal(t, "Top 1 opportunity - R/R 2.00", allocs[0].Reason)
	assert.Equal(t, "BBB", allocs[1].Symbol)
	assert.Equal(t, int64(50), allocs[1].Shares)
	assert.InDelta(t, 5000.0, allocs[1].Cost, 1e-9)
}

func TestAllocator_DiversifyMinimumFloor(t *testing.T) {
	a := newAllocator(nil)
	opps := qualified(t, a, "AAA", "BBB")

	allocs := a.Allocate(opps, 10050, 5, true)

	require.Len(t, allocs, 1)
	assert.Equal(t, "AAA", allocs[0].Symbol)
}

func TestAllocator_Concentrate(t *testing.T) {
	a := newAllocator(nil)
	opps := qualified(t, a, "AAA", "BBB")

	allocs := a.Allocate(opps, 5000, 5, false)

	require.Len(t, allocs, 1)
	assert.Equal(t, "AAA", allocs[0].Symbol)
	assert.Equal(t, int64(50), allocs[0].Shares)
	assert.Equal(t, "Best opportunity - R/R 2.00", allocs[0].Reason)

	capped := a.Allocate(opps, 1_000_000, 5, false)
	require.Len(t, capped, 1)
	assert.InDelta(t, 10000.0, capped[0].Cost, 1e-9)
}

func TestAllocator_NoSlots(t *testing.T) {
	a := newAllocator(nil)
	opps := qualified(t, a, "AAA")

	assert.Empty(t, a.Allocate(opps, 50000, 0, true))
	assert.Empty(t, a.Allocate(nil, 50000, 3, true))
}

func TestAllocator_RankAndAllocatePlan(t *testing.T) {
	a := newAllocator(nil)

	plan := a.RankAndAllocate([]Candidate{
		{Symbol: "AAA", Price: 100, Action: core.ActionStrongBuy, Strength: 1.0},
	}, 100000, 50000, 3, true)

	require.Len(t, plan.Allocations, 1)
	alloc := plan.Allocations[0]
	assert.InDelta(t, 95.0, alloc.StopLoss, 1e-9)
	assert.InDelta(t, 110.0, alloc.TakeProfit, 1e-9)
	assert.InDelta(t, 500.0, alloc.MaxLoss, 1e-6)
	assert.InDelta(t, 1000.0, alloc.MaxGain, 1e-6)

	assert.InDelta(t, 10000.0, plan.Deployed, 1e-9)
	assert.InDelta(t, 0.5, plan.RiskPct(100000), 1e-6)
	assert.InDelta(t, 10.0, plan.PotentialPct(), 1e-6)
	assert.InDelta(t, 2.0, plan.RewardRisk(), 1e-6)
}

func TestPlan_Empty(t *testing.T) {
	p := NewPlan(nil)
	assert.Zero(t, p.RiskPct(100000))
	assert.Zero(t, p.PotentialPct())
	assert.Zero(t, p.RewardRisk())
}
