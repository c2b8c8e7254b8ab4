package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// validSymbol matches stock symbols like AAPL, BRK.B, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9^-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches bars and prices from the Yahoo Finance chart API.
type Yahoo struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// Option configures a Yahoo collector.
type Option func(*Yahoo)

// WithBaseURL overrides the chart endpoint.
func WithBaseURL(url string) Option {
	return func(y *Yahoo) { y.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(y *Yahoo) { y.client = c }
}

// New creates a new Yahoo collector
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchLatestPrice returns the regular market price.
func (y *Yahoo) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := validateSymbol(symbol); err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.baseURL, y.toYahooSymbol(symbol))

	r, err := y.chart(ctx, url, symbol)
	if err != nil {
		return 0, err
	}
	if r.Meta.RegularMarketPrice <= 0 {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no price for %s", symbol))
	}
	return r.Meta.RegularMarketPrice, nil
}

// FetchHistory fetches bars for the last lookbackDays
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]core.OHLCV, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	end := y.now()
	start := end.AddDate(0, 0, -lookbackDays)

	url := fmt.Sprintf("%s/%s?interval=%s&period1=%d&period2=%d",
		y.baseURL, y.toYahooSymbol(symbol), toYahooInterval(timeframe), start.Unix(), end.Unix())

	r, err := y.chart(ctx, url, symbol)
	if err != nil {
		return nil, err
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no quotes for %s", symbol))
	}
	quotes := r.Indicators.Quote[0]

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Close) || quotes.Open[i] == nil || quotes.Close[i] == nil {
			continue // Skip missing data
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = int64(*quotes.Volume[i])
		}
		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: timeframe,
			Open:     *quotes.Open[i],
			High:     deref(quotes.High, i, *quotes.Close[i]),
			Low:      deref(quotes.Low, i, *quotes.Close[i]),
			Close:    *quotes.Close[i],
			Volume:   volume,
			Time:     time.Unix(int64(ts), 0).UTC(),
		})
	}

	return data, nil
}

func (y *Yahoo) chart(ctx context.Context, url, symbol string) (*chartResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching chart: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	return &result.Chart.Result[0], nil
}

func deref(values []*float64, i int, fallback float64) float64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return fallback
}

// toYahooInterval maps Alpaca-style and short timeframes to chart intervals.
func toYahooInterval(timeframe string) string {
	switch timeframe {
	case "1Min", "1m":
		return "1m"
	case "5Min", "5m":
		return "5m"
	case "15Min", "15m":
		return "15m"
	case "1Hour", "1h":
		return "1h"
	case "1Week", "1wk":
		return "1wk"
	default:
		return "1d"
	}
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol              string  `json:"symbol"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	RegularMarketVolume int     `json:"regularMarketVolume"`
	RegularMarketTime   int     `json:"regularMarketTime"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int     `json:"volume"`
}
