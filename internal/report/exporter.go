// Package report exports backtest results to archive storage and renders
// the console summaries printed by the CLI.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/storage/archive"
	"go.uber.org/zap"
)

// Prefix is the archive directory holding exported runs.
const Prefix = "reports"

// Manifest lists the objects written for one exported run.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
	Result    string    `json:"result"`
	Trades    string    `json:"trades"`
	Equity    string    `json:"equity"`
}

// Exporter writes backtest results into an archive.
type Exporter struct {
	store  archive.Storage
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// NewExporter creates an exporter over store.
func NewExporter(store archive.Storage, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		store:  store,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Export writes result.json, trades.csv, equity.csv and manifest.json under
// reports/<run id>/.
func (e *Exporter) Export(ctx context.Context, result *backtest.Result) (Manifest, error) {
	id := e.newID()
	dir := path.Join(Prefix, id)
	m := Manifest{
		RunID:     id,
		Symbol:    result.Symbol,
		CreatedAt: e.now().UTC(),
		Result:    path.Join(dir, "result.json"),
		Trades:    path.Join(dir, "trades.csv"),
		Equity:    path.Join(dir, "equity.csv"),
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encoding result: %w", err)
	}
	trades, err := TradesCSV(result.Trades)
	if err != nil {
		return Manifest{}, err
	}
	equity, err := EquityCSV(result.EquityCurve)
	if err != nil {
		return Manifest{}, err
	}
	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encoding manifest: %w", err)
	}

	objects := []struct {
		key  string
		data []byte
	}{
		{m.Result, body},
		{m.Trades, trades},
		{m.Equity, equity},
		{path.Join(dir, "manifest.json"), manifest},
	}
	for _, obj := range objects {
		if err := e.store.Write(ctx, obj.key, obj.data); err != nil {
			return Manifest{}, fmt.Errorf("writing %s: %w", obj.key, err)
		}
	}

	e.logger.Info("report exported",
		zap.String("run_id", id),
		zap.String("symbol", result.Symbol),
		zap.Int("trades", len(result.Trades)),
	)
	return m, nil
}

// Load reads an exported result back by run id.
func (e *Exporter) Load(ctx context.Context, runID string) (*backtest.Result, error) {
	data, err := e.store.Read(ctx, path.Join(Prefix, runID, "result.json"))
	if err != nil {
		return nil, err
	}
	var result backtest.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", runID, err)
	}
	return &result, nil
}

// TradesCSV renders trades with a header row.
func TradesCSV(trades []backtest.Trade) ([]byte, error) {
	rows := [][]string{{"time", "side", "shares", "price", "signal", "strength", "pnl_pct", "reason"}}
	for _, t := range trades {
		pnl := ""
		if t.Side == backtest.SideSell {
			pnl = formatFloat(t.PnLPct)
		}
		rows = append(rows, []string{
			t.Time.Format(time.RFC3339),
			string(t.Side),
			strconv.FormatInt(t.Shares, 10),
			formatFloat(t.Price),
			string(t.Signal),
			formatFloat(t.Strength),
			pnl,
			t.Reason,
		})
	}
	return writeCSV(rows)
}

// EquityCSV renders the equity curve with a header row.
func EquityCSV(curve []backtest.EquityPoint) ([]byte, error) {
	rows := [][]string{{"time", "equity"}}
	for _, p := range curve {
		rows = append(rows, []string{p.Time.Format(time.RFC3339), formatFloat(p.Equity)})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encoding csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
