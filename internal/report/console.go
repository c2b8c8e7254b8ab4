package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/scanner"
)

// MaxListedTrades bounds the trade history printed by WriteBacktest.
const MaxListedTrades = 10

const dateLayout = "2006-01-02"

// WriteBacktest prints a human-readable summary of r.
func WriteBacktest(w io.Writer, r *backtest.Result) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "BACKTEST RESULTS: %s\n", r.Symbol)
	fmt.Fprintf(w, "Period: %s to %s\n", r.Start.Format(dateLayout), r.End.Format(dateLayout))
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w, "\nCapital:")
	fmt.Fprintf(w, "  Initial:     $%s\n", money(r.InitialCapital))
	fmt.Fprintf(w, "  Final:       $%s\n", money(r.FinalCapital))
	fmt.Fprintf(w, "  Profit/Loss: %s\n", signedMoney(r.FinalCapital-r.InitialCapital))

	fmt.Fprintln(w, "\nReturns:")
	fmt.Fprintf(w, "  Strategy Return:   %+.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(w, "  Buy & Hold Return: %+.2f%%\n", r.BuyHoldReturnPct)
	fmt.Fprintf(w, "  Outperformance:    %+.2f%%\n", r.Outperformance)

	fmt.Fprintln(w, "\nTrade Statistics:")
	fmt.Fprintf(w, "  Total Trades:   %d\n", r.Stats.TotalTrades)
	fmt.Fprintf(w, "  Winning Trades: %d\n", r.Stats.WinningTrades)
	fmt.Fprintf(w, "  Losing Trades:  %d\n", r.Stats.LosingTrades)
	fmt.Fprintf(w, "  Win Rate:       %.1f%%\n", r.Stats.WinRate)
	fmt.Fprintf(w, "  Max Drawdown:   %.2f%%\n", r.Stats.MaxDrawdownPct)
	fmt.Fprintf(w, "  Sharpe Ratio:   %.2f\n", r.Stats.SharpeRatio)

	if len(r.Trades) > 0 {
		fmt.Fprintln(w, "\nTrade History:")
		for i, t := range r.Trades {
			if i == MaxListedTrades {
				fmt.Fprintf(w, "  ... and %d more trades\n", len(r.Trades)-MaxListedTrades)
				break
			}
			if t.Side == backtest.SideBuy {
				fmt.Fprintf(w, "  %d. BUY %d @ $%.2f on %s (Signal: %s)\n",
					i+1, t.Shares, t.Price, t.Time.Format(dateLayout), actionName(t.Signal))
			} else {
				fmt.Fprintf(w, "  %d. SELL %d @ $%.2f on %s (P/L: %+.2f%%, %s)\n",
					i+1, t.Shares, t.Price, t.Time.Format(dateLayout), t.PnLPct, t.Reason)
			}
		}
	}
	fmt.Fprintln(w, rule)
}

// WriteScan prints the ranked scan results and the skipped symbols.
func WriteScan(w io.Writer, rep scanner.Report) {
	counts := make(map[core.Action]int)
	for _, r := range rep.Results {
		counts[r.Signal.Action]++
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "MARKET SCAN (%d analyzed, %d skipped)\n", len(rep.Results), len(rep.Skipped))
	fmt.Fprintln(w, strings.Repeat("=", 60))
	for _, a := range []core.Action{core.ActionStrongBuy, core.ActionBuy, core.ActionHold, core.ActionSell, core.ActionStrongSell} {
		fmt.Fprintf(w, "  %-12s %d\n", actionName(a)+":", counts[a])
	}

	if len(rep.Results) > 0 {
		fmt.Fprintln(w)
		for _, r := range rep.Results {
			line := fmt.Sprintf("  %-8s %s", r.Symbol, r.Signal.Summary(r.Price))
			if !r.Liquid {
				line += " [low volume]"
			}
			fmt.Fprintln(w, line)
		}
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range rep.Skipped {
			fmt.Fprintf(w, "  %-8s %s: %s\n", s.Symbol, s.Outcome, s.Error)
		}
	}
}

// WritePlan prints an allocation plan with its risk totals.
func WritePlan(w io.Writer, plan risk.Plan, portfolioValue float64) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "ALLOCATION PLAN")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	if len(plan.Allocations) == 0 {
		fmt.Fprintln(w, "No viable opportunities or capital available")
		return
	}

	for _, a := range plan.Allocations {
		fmt.Fprintf(w, "  %s: %d shares @ $%.2f = $%s\n", a.Symbol, a.Shares, a.EntryPrice, money(a.Cost))
		fmt.Fprintf(w, "    Stop $%.2f | Target $%.2f | R/R %.2f | Max Loss $%.2f | Max Gain $%.2f\n",
			a.StopLoss, a.TakeProfit, a.RiskReward, a.MaxLoss, a.MaxGain)
		fmt.Fprintf(w, "    %s\n", a.Reason)
	}

	fmt.Fprintf(w, "\n%d allocations\n", len(plan.Allocations))
	fmt.Fprintf(w, "  Total deployed:  $%s\n", money(plan.Deployed))
	fmt.Fprintf(w, "  Total risk:      $%s (%.2f%%)\n", money(plan.TotalRisk), plan.RiskPct(portfolioValue))
	fmt.Fprintf(w, "  Total potential: $%s (%.2f%%)\n", money(plan.TotalPotential), plan.PotentialPct())
}

func actionName(a core.Action) string {
	if a == "" {
		return "N/A"
	}
	return strings.ToUpper(strings.ReplaceAll(string(a), "_", " "))
}

// money formats v with two decimals and thousands separators.
func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func signedMoney(v float64) string {
	if v < 0 {
		return "-$" + money(-v)
	}
	return "+$" + money(v)
}
