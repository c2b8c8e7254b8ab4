package main

import (
	"fmt"
	"os"

	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/report"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	allocPortfolio float64
	allocCapital   float64
	allocOpen      int
	allocDiversify bool
)

var allocateCmd = &cobra.Command{
	Use:   "allocate [symbols...]",
	Short: "Propose position sizes for buy signals",
	Long: `Scan symbols, rank the buy signals by strength-scaled reward/risk and
spread the available capital across them. The budget comes from the
Alpaca account unless --portfolio-value is given. Nothing is ordered.`,
	RunE: runAllocate,
}

func init() {
	allocateCmd.Flags().Float64Var(&allocPortfolio, "portfolio-value", 0, "Portfolio value to size against")
	allocateCmd.Flags().Float64Var(&allocCapital, "capital", 0, "Capital available for new buys (default: portfolio value)")
	allocateCmd.Flags().IntVar(&allocOpen, "open-positions", 0, "Positions already held")
	allocateCmd.Flags().BoolVar(&allocDiversify, "diversify", false, "Spread capital over several opportunities")

	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	symbols, err := e.symbols(args)
	if err != nil {
		return err
	}

	sizer := risk.NewSizer(e.cfg.RiskConfig(), e.log)

	var budget risk.Budget
	switch {
	case allocPortfolio > 0:
		capital := allocCapital
		if capital <= 0 {
			capital = allocPortfolio
		}
		budget = sizer.Budget(broker.Account{
			Cash:           capital,
			BuyingPower:    capital,
			PortfolioValue: allocPortfolio,
			Equity:         allocPortfolio,
		}, allocOpen)
	case e.accounts != nil:
		budget, err = sizer.FetchBudget(cmd.Context(), e.accounts)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("--portfolio-value is required when the alpaca collector is disabled")
	}

	fmt.Printf("Portfolio: $%.2f  Available: $%.2f  Open positions: %d\n",
		budget.PortfolioValue, budget.Capital, budget.OpenPositions)
	if budget.Halted {
		fmt.Printf("No new positions: %s\n", budget.Reason)
		return nil
	}

	rep := newScanner(e).Scan(cmd.Context(), symbols)
	report.WriteScan(os.Stdout, rep)

	diversify := allocDiversify || e.cfg.Risk.Diversify
	plan := risk.NewAllocator(sizer, e.log).
		RankAndAllocate(rep.Candidates(), budget.PortfolioValue, budget.Capital, budget.Slots, diversify)

	fmt.Println()
	report.WritePlan(os.Stdout, plan, budget.PortfolioValue)

	e.log.Debug("allocation planned",
		zap.Int("allocations", len(plan.Allocations)),
		zap.Float64("deployed", plan.Deployed),
	)
	return nil
}
