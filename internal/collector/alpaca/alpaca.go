// Package alpaca reads bars, latest trades and account state from the
// Alpaca REST APIs.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/shopspring/decimal"
)

const (
	DefaultTradingURL = "https://paper-api.alpaca.markets"
	DefaultDataURL    = "https://data.alpaca.markets"

	maxBarsPerPage = 10000
)

// Config holds Alpaca credentials and endpoints.
type Config struct {
	KeyID      string
	SecretKey  string
	TradingURL string
	DataURL    string
	Feed       string // "iex" or "sip"
}

// Alpaca implements collector.Collector and broker.AccountProvider.
type Alpaca struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// New creates an Alpaca client. Empty endpoints fall back to the paper
// trading and market data defaults.
func New(cfg Config) (*Alpaca, error) {
	if cfg.KeyID == "" || cfg.SecretKey == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("alpaca: key_id and secret_key are required"))
	}
	if cfg.TradingURL == "" {
		cfg.TradingURL = DefaultTradingURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = DefaultDataURL
	}
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	cfg.TradingURL = strings.TrimRight(cfg.TradingURL, "/")
	cfg.DataURL = strings.TrimRight(cfg.DataURL, "/")

	return &Alpaca{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
	}, nil
}

func (a *Alpaca) Name() string { return "alpaca" }

// FetchHistory fetches bars for the last lookbackDays, following pagination.
func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]core.OHLCV, error) {
	if timeframe == "" {
		timeframe = "1Day"
	}
	end := a.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	q.Set("limit", fmt.Sprint(maxBarsPerPage))
	q.Set("adjustment", "raw")
	q.Set("feed", a.cfg.Feed)

	var bars []core.OHLCV
	for {
		var page barsResponse
		endpoint := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", a.cfg.DataURL, url.PathEscape(symbol), q.Encode())
		if err := a.get(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
		}

		for _, b := range page.Bars {
			bars = append(bars, core.OHLCV{
				Symbol:   symbol,
				Interval: timeframe,
				Open:     b.Open,
				High:     b.High,
				Low:      b.Low,
				Close:    b.Close,
				Volume:   b.Volume,
				Time:     b.Time.UTC(),
			})
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		q.Set("page_token", *page.NextPageToken)
	}

	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars for %s", symbol))
	}
	return bars, nil
}

// FetchLatestPrice returns the price of the latest trade.
func (a *Alpaca) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	var resp latestTradeResponse
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/trades/latest?feed=%s", a.cfg.DataURL, url.PathEscape(symbol), a.cfg.Feed)
	if err := a.get(ctx, endpoint, &resp); err != nil {
		return 0, fmt.Errorf("fetching latest trade for %s: %w", symbol, err)
	}
	if resp.Trade.Price <= 0 {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no trade for %s", symbol))
	}
	return resp.Trade.Price, nil
}

// FetchAccountInfo returns the account summary. Alpaca reports money as
// decimal strings.
func (a *Alpaca) FetchAccountInfo(ctx context.Context) (*broker.Account, error) {
	var resp accountResponse
	if err := a.get(ctx, a.cfg.TradingURL+"/v2/account", &resp); err != nil {
		return nil, core.WrapError(core.ErrAccountUnavailable, err)
	}
	return &broker.Account{
		Cash:           resp.Cash.InexactFloat64(),
		PortfolioValue: resp.PortfolioValue.InexactFloat64(),
		BuyingPower:    resp.BuyingPower.InexactFloat64(),
		Equity:         resp.Equity.InexactFloat64(),
		Status:         resp.Status,
		TradingBlocked: resp.TradingBlocked || resp.AccountBlocked,
	}, nil
}

// FetchPositions returns all open positions.
func (a *Alpaca) FetchPositions(ctx context.Context) ([]broker.Position, error) {
	var resp []positionResponse
	if err := a.get(ctx, a.cfg.TradingURL+"/v2/positions", &resp); err != nil {
		return nil, core.WrapError(core.ErrAccountUnavailable, err)
	}

	positions := make([]broker.Position, 0, len(resp))
	for _, p := range resp {
		positions = append(positions, broker.Position{
			Symbol:        p.Symbol,
			Quantity:      p.Qty.IntPart(),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
			CurrentPrice:  p.CurrentPrice.InexactFloat64(),
			MarketValue:   p.MarketValue.InexactFloat64(),
			UnrealizedPL:  p.UnrealizedPL.InexactFloat64(),
			UnrealizedPct: p.UnrealizedPLPC.Mul(decimal.NewFromInt(100)).InexactFloat64(),
		})
	}
	return positions, nil
}

// IsMarketOpen reports the exchange clock state.
func (a *Alpaca) IsMarketOpen(ctx context.Context) (bool, error) {
	var resp clockResponse
	if err := a.get(ctx, a.cfg.TradingURL+"/v2/clock", &resp); err != nil {
		return false, err
	}
	return resp.IsOpen, nil
}

func (a *Alpaca) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.cfg.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return core.WrapError(core.ErrCollectorFailed,
			fmt.Errorf("alpaca: status %d: %s", resp.StatusCode, apiErr.Message))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Alpaca API response types
type barsResponse struct {
	Bars          []barJSON `json:"bars"`
	Symbol        string    `json:"symbol"`
	NextPageToken *string   `json:"next_page_token"`
}

type barJSON struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume int64     `json:"v"`
}

type latestTradeResponse struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Time  time.Time `json:"t"`
		Price float64   `json:"p"`
		Size  int64     `json:"s"`
	} `json:"trade"`
}

type accountResponse struct {
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	BuyingPower    decimal.Decimal `json:"buying_power"`
	Equity         decimal.Decimal `json:"equity"`
	Status         string          `json:"status"`
	TradingBlocked bool            `json:"trading_blocked"`
	AccountBlocked bool            `json:"account_blocked"`
}

type positionResponse struct {
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	AvgEntryPrice  decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	UnrealizedPL   decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPC decimal.Decimal `json:"unrealized_plpc"`
}

type clockResponse struct {
	IsOpen bool `json:"is_open"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
