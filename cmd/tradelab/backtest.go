package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestSymbol  string
	backtestDays    int
	backtestFrame   string
	backtestCapital float64
	backtestExport  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay signals over history",
	Long:  "Run the single-position simulation for a symbol and show performance statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().IntVar(&backtestDays, "days", 0, "Lookback in calendar days (default from config)")
	backtestCmd.Flags().StringVar(&backtestFrame, "timeframe", "", "Bar timeframe (default from config)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "Initial capital (default from config)")
	backtestCmd.Flags().BoolVar(&backtestExport, "export", false, "Write the report to storage")

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg.BacktestConfig()
	if backtestCapital > 0 {
		cfg.InitialCapital = backtestCapital
	}
	days := backtestDays
	if days <= 0 {
		days = e.cfg.Backtest.LookbackDays
	}
	timeframe := backtestFrame
	if timeframe == "" {
		timeframe = e.cfg.Backtest.Timeframe
	}
	symbol := strings.ToUpper(backtestSymbol)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bt := backtest.New(cfg, backtest.WithLogger(e.log), backtest.WithMetrics(e.metrics))
	result, err := bt.RunSymbol(ctx, e.collectors, symbol, days, timeframe)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	report.WriteBacktest(os.Stdout, result)

	if backtestExport || e.cfg.Backtest.Export {
		manifest, err := report.NewExporter(e.store, e.log).Export(ctx, result)
		if err != nil {
			return fmt.Errorf("exporting report: %w", err)
		}
		fmt.Printf("\nReport saved: %s\n", manifest.RunID)
		e.log.Info("report exported", zap.String("run_id", manifest.RunID))
	}
	return nil
}
