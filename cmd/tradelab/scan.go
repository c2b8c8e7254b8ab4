package main

import (
	"fmt"
	"os"

	"github.com/newthinker/tradelab/internal/report"
	"github.com/newthinker/tradelab/internal/scanner"
	"github.com/newthinker/tradelab/internal/signal"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [symbols...]",
	Short: "Compute current signals for symbols",
	Long:  "Analyze each symbol's latest bar and list signals by strength. Without arguments the configured watchlist is scanned.",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func newScanner(e *env) *scanner.Scanner {
	analyzer := signal.NewAnalyzer(e.cfg.IndicatorConfig(), e.cfg.SignalConfig())
	return scanner.New(e.cfg.ScannerConfig(), e.collectors, analyzer, e.log, e.metrics)
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	symbols, err := e.symbols(args)
	if err != nil {
		return err
	}

	rep := newScanner(e).Scan(cmd.Context(), symbols)
	report.WriteScan(os.Stdout, rep)

	if len(rep.Results) == 0 {
		return fmt.Errorf("no symbol could be analyzed")
	}
	return nil
}
