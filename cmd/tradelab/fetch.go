package main

import (
	"fmt"

	"github.com/newthinker/tradelab/internal/collector/csvfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fetchDays  int
	fetchFrame string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Download history into storage as CSV",
	Long: `Fetch bars from the enabled collectors and save them to the configured
storage, where the csv collector can replay them offline.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "Lookback in calendar days (default from config)")
	fetchCmd.Flags().StringVar(&fetchFrame, "timeframe", "", "Bar timeframe (default from config)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	symbols, err := e.symbols(args)
	if err != nil {
		return err
	}
	days := fetchDays
	if days <= 0 {
		days = e.cfg.Backtest.LookbackDays
	}
	timeframe := fetchFrame
	if timeframe == "" {
		timeframe = e.cfg.Backtest.Timeframe
	}

	ctx := cmd.Context()
	var failed int
	for _, symbol := range symbols {
		bars, err := e.collectors.FetchHistory(ctx, symbol, days, timeframe)
		if err != nil {
			failed++
			e.log.Warn("fetch failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if err := e.csv.Save(ctx, symbol, timeframe, bars); err != nil {
			return fmt.Errorf("saving %s: %w", symbol, err)
		}
		fmt.Printf("%-6s %4d bars -> %s\n", symbol, len(bars), csvfile.Key(symbol, timeframe))
	}

	if failed == len(symbols) {
		return fmt.Errorf("no history fetched")
	}
	return nil
}
