package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/tradelab/internal/risk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show account balances, positions and the buy budget",
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	if e.accounts == nil {
		return fmt.Errorf("no account provider configured; enable collectors.alpaca")
	}

	ctx := cmd.Context()
	info, err := e.accounts.FetchAccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("getting account info: %w", err)
	}
	positions, err := e.accounts.FetchPositions(ctx)
	if err != nil {
		return fmt.Errorf("getting positions: %w", err)
	}

	fmt.Println("Account Summary")
	fmt.Println("---------------")
	fmt.Printf("Status:          %s\n", info.Status)
	fmt.Printf("Portfolio Value: $%.2f\n", info.PortfolioValue)
	fmt.Printf("Cash:            $%.2f\n", info.Cash)
	fmt.Printf("Buying Power:    $%.2f\n", info.BuyingPower)
	if clock, ok := e.accounts.(interface {
		IsMarketOpen(ctx context.Context) (bool, error)
	}); ok {
		if open, err := clock.IsMarketOpen(ctx); err != nil {
			e.log.Warn("market clock unavailable", zap.Error(err))
		} else {
			fmt.Printf("Market Open:     %t\n", open)
		}
	}

	budget := risk.NewSizer(e.cfg.RiskConfig(), e.log).Budget(*info, len(positions))
	if budget.Halted {
		fmt.Printf("New Positions:   blocked (%s)\n", budget.Reason)
	} else {
		fmt.Printf("New Positions:   %d slots, $%.2f available\n", budget.Slots, budget.Capital)
	}
	fmt.Println()

	if len(positions) == 0 {
		fmt.Println("No positions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tQTY\tAVG ENTRY\tPRICE\tMKT VALUE\tP&L\t")
	fmt.Fprintln(w, "------\t---\t---------\t-----\t---------\t---\t")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%+.2f (%+.2f%%)\t\n",
			p.Symbol, p.Quantity, p.AvgEntryPrice, p.CurrentPrice, p.MarketValue, p.UnrealizedPL, p.UnrealizedPct)
	}
	w.Flush()

	e.log.Info("positions listed", zap.Int("count", len(positions)))
	return nil
}
