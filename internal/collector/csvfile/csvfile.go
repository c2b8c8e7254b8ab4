// Package csvfile serves price history from CSV files kept in archive
// storage under history/<timeframe>/<SYMBOL>.csv.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/storage/archive"
)

// DefaultTimeframe is used when a fetch names no timeframe.
const DefaultTimeframe = "1Day"

var header = []string{"time", "open", "high", "low", "close", "volume"}

// Source reads bars from archive storage.
type Source struct {
	store archive.Storage
}

// New creates a CSV history source over store.
func New(store archive.Storage) *Source {
	return &Source{store: store}
}

func (s *Source) Name() string { return "csv" }

// Key returns the storage path for a symbol's history.
func Key(symbol, timeframe string) string {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	return fmt.Sprintf("history/%s/%s.csv", timeframe, strings.ToUpper(symbol))
}

// FetchHistory returns the bars within lookbackDays of the newest bar in
// the file. A non-positive lookback returns the whole file.
func (s *Source) FetchHistory(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]core.OHLCV, error) {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	data, err := s.store.Read(ctx, Key(symbol, timeframe))
	if err != nil {
		return nil, err
	}

	bars, err := Decode(bytes.NewReader(data), symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty history for %s", symbol))
	}

	if lookbackDays > 0 {
		cutoff := bars[len(bars)-1].Time.AddDate(0, 0, -lookbackDays)
		for i, b := range bars {
			if !b.Time.Before(cutoff) {
				bars = bars[i:]
				break
			}
		}
	}
	return bars, nil
}

// FetchLatestPrice returns the close of the newest bar.
func (s *Source) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.FetchHistory(ctx, symbol, 0, DefaultTimeframe)
	if err != nil {
		return 0, err
	}
	return bars[len(bars)-1].Close, nil
}

// Save writes bars to the history file for symbol.
func (s *Source) Save(ctx context.Context, symbol, timeframe string, bars []core.OHLCV) error {
	var buf bytes.Buffer
	if err := Encode(&buf, bars); err != nil {
		return err
	}
	return s.store.Write(ctx, Key(symbol, timeframe), buf.Bytes())
}

// Decode parses CSV bars. The first row must be the header; time accepts
// RFC 3339 or YYYY-MM-DD.
func Decode(r io.Reader, symbol, timeframe string) ([]core.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrInsufficientData, fmt.Errorf("reading csv: %w", err))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, err := columns(rows[0])
	if err != nil {
		return nil, err
	}

	bars := make([]core.OHLCV, 0, len(rows)-1)
	for n, row := range rows[1:] {
		bar, err := parseRow(row, cols)
		if err != nil {
			return nil, core.WrapError(core.ErrInsufficientData, fmt.Errorf("line %d: %w", n+2, err))
		}
		bar.Symbol = symbol
		bar.Interval = timeframe
		bars = append(bars, bar)
	}
	return bars, nil
}

// columns maps header names to their index.
func columns(head []string) (map[string]int, error) {
	cols := make(map[string]int, len(head))
	for i, h := range head {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"time", "close"} {
		if _, ok := cols[want]; !ok {
			return nil, core.WrapError(core.ErrInsufficientData, fmt.Errorf("csv header missing %q column", want))
		}
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int) (core.OHLCV, error) {
	var bar core.OHLCV

	ts, err := parseTime(field(row, cols, "time"))
	if err != nil {
		return bar, err
	}
	bar.Time = ts

	if bar.Close, err = strconv.ParseFloat(field(row, cols, "close"), 64); err != nil {
		return bar, fmt.Errorf("close: %w", err)
	}
	bar.Open = optionalFloat(field(row, cols, "open"), bar.Close)
	bar.High = optionalFloat(field(row, cols, "high"), bar.Close)
	bar.Low = optionalFloat(field(row, cols, "low"), bar.Close)

	if v := field(row, cols, "volume"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return bar, fmt.Errorf("volume: %w", err)
		}
		bar.Volume = int64(f)
	}
	return bar, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func optionalFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// Encode writes bars as CSV with a header row.
func Encode(w io.Writer, bars []core.OHLCV) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range bars {
		record := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
