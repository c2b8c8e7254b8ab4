package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090

backtest:
  initial_capital: 50000
  stop_loss_pct: 0.08

scanner:
  workers: 8
  timeout: 5s

storage:
  type: localfs
  path: "/tmp/tradelab"

alerts:
  cooldown: 2h
  actions: [strong_buy, strong_sell]

notifiers:
  webhook:
    enabled: true
    url: "https://hooks.example.com/tradelab"

watchlist: [AAPL, MSFT]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Storage.Type)
	}
	assert.Equal(t, 50000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 0.08, cfg.Backtest.StopLossPct)
	assert.Equal(t, 8, cfg.Scanner.Workers)
	assert.Equal(t, 5*time.Second, cfg.Scanner.Timeout)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Watchlist)
	assert.Equal(t, 2*time.Hour, cfg.RouterConfig().Cooldown)
	assert.Equal(t, []core.Action{core.ActionStrongBuy, core.ActionStrongSell}, cfg.RouterConfig().EnabledActions)
	assert.True(t, cfg.Notifiers.Webhook.Enabled)

	// Unset keys keep their defaults.
	assert.Equal(t, 50, cfg.Backtest.WarmupBars)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, "yahoo", cfg.Collectors.Provider)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TRADELAB_TEST_ALPACA_KEY", "key-123")
	t.Setenv("TRADELAB_TEST_ALPACA_SECRET", "secret-456")
	path := writeConfig(t, `
collectors:
  provider: alpaca
  alpaca:
    enabled: true
    key_id: "${TRADELAB_TEST_ALPACA_KEY}"
    secret_key: "${TRADELAB_TEST_ALPACA_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.Collectors.Alpaca.KeyID)
	assert.Equal(t, "secret-456", cfg.AlpacaConfig().SecretKey)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, indicator.DefaultConfig(), cfg.IndicatorConfig())
	assert.Equal(t, backtest.DefaultConfig(), cfg.BacktestConfig())
	assert.Equal(t, risk.DefaultConfig(), cfg.RiskConfig())
	assert.Equal(t, int64(1_000_000), cfg.ScannerConfig().MinVolume)
	assert.Equal(t, "localfs", cfg.ArchiveConfig().Backend)
	assert.Equal(t, router.DefaultConfig(), cfg.RouterConfig())
	assert.Equal(t, 587, cfg.EmailConfig().Port)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{"defaults", func(*Config) {}, nil},
		{"invalid port - zero", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"invalid port - too high", func(c *Config) { c.Server.Port = 70000 }, core.ErrConfigInvalid},
		{"rsi thresholds inverted", func(c *Config) { c.Signal.RSIOversold = 80 }, core.ErrConfigInvalid},
		{"zero sma period", func(c *Config) { c.Indicators.SMALong = 0 }, core.ErrConfigInvalid},
		{"bollinger period one", func(c *Config) { c.Indicators.BollingerPeriod = 1 }, core.ErrConfigInvalid},
		{"no capital", func(c *Config) { c.Backtest.InitialCapital = 0 }, core.ErrConfigInvalid},
		{"position over 100%", func(c *Config) { c.Backtest.PositionSizePct = 1.5 }, core.ErrConfigInvalid},
		{"stop loss zero", func(c *Config) { c.Risk.StopLossPct = 0 }, core.ErrConfigInvalid},
		{"no position slots", func(c *Config) { c.Risk.MaxPositions = 0 }, core.ErrConfigInvalid},
		{"no workers", func(c *Config) { c.Scanner.Workers = 0 }, core.ErrConfigInvalid},
		{"zero scan interval", func(c *Config) { c.Scanner.Interval = 0 }, core.ErrConfigInvalid},
		{"negative scan interval", func(c *Config) { c.Scanner.Interval = -time.Minute }, core.ErrConfigInvalid},
		{"zero scan timeout", func(c *Config) { c.Scanner.Timeout = 0 }, core.ErrConfigInvalid},
		{"unknown provider", func(c *Config) { c.Collectors.Provider = "bloomberg" }, core.ErrConfigInvalid},
		{"provider disabled", func(c *Config) { c.Collectors.Provider = "csv" }, core.ErrConfigInvalid},
		{"alpaca without keys", func(c *Config) { c.Collectors.Alpaca.Enabled = true }, core.ErrConfigMissing},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, core.ErrConfigMissing},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, core.ErrConfigInvalid},
		{"alert strength above one", func(c *Config) { c.Alerts.MinStrength = 1.5 }, core.ErrConfigInvalid},
		{"unknown alert action", func(c *Config) { c.Alerts.Actions = []string{"moon"} }, core.ErrConfigInvalid},
		{"alerts disabled skips checks", func(c *Config) { c.Alerts.Enabled = false; c.Alerts.MinStrength = -1 }, nil},
		{"webhook without url", func(c *Config) { c.Notifiers.Webhook.Enabled = true }, core.ErrConfigMissing},
		{"telegram without chat", func(c *Config) {
			c.Notifiers.Telegram.Enabled = true
			c.Notifiers.Telegram.BotToken = "token"
		}, core.ErrConfigMissing},
		{"email without recipients", func(c *Config) {
			c.Notifiers.Email.Enabled = true
			c.Notifiers.Email.Host = "smtp.example.com"
			c.Notifiers.Email.From = "bot@example.com"
		}, core.ErrConfigMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestConfig_ValidateReportsFirstBadPeriod(t *testing.T) {
	for i := 0; i < 20; i++ {
		cfg := Defaults()
		cfg.Indicators.RSIPeriod = 0
		cfg.Indicators.MACDSignal = 0
		cfg.Indicators.EMALong = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "indicators.rsi_period")
	}
}

func TestConfig_BacktestConfigCarriesSections(t *testing.T) {
	cfg := Defaults()
	cfg.Indicators.RSIPeriod = 7
	cfg.Signal.RSIOversold = 25
	cfg.Backtest.Incremental = false

	bt := cfg.BacktestConfig()

	assert.Equal(t, 7, bt.Indicators.RSIPeriod)
	assert.Equal(t, 25.0, bt.Signal.RSIOversold)
	assert.False(t, bt.Incremental)
}
