package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/api/response"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	bars map[string][]core.OHLCV
	err  error
}

func (p *stubProvider) FetchHistory(ctx context.Context, symbol string, _ int, _ string) ([]core.OHLCV, error) {
	if p.err != nil {
		return nil, p.err
	}
	bars, ok := p.bars[symbol]
	if !ok {
		return nil, core.ErrSymbolNotFound
	}
	return bars, nil
}

func series(symbol string, closes ...float64) []core.OHLCV {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{Symbol: symbol, Close: c, Open: c, High: c, Low: c, Volume: 2_000_000, Time: t0.AddDate(0, 0, i)}
	}
	return bars
}

func flat(symbol string, n int, price float64) []core.OHLCV {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return series(symbol, closes...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is an object: %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorDetail {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}
