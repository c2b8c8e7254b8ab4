// Package config loads tradelab settings from YAML with environment
// overrides and converts them into component configurations.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/collector/alpaca"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/notifier/email"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/router"
	"github.com/newthinker/tradelab/internal/scanner"
	"github.com/newthinker/tradelab/internal/signal"
	"github.com/newthinker/tradelab/internal/storage/archive"
	"github.com/spf13/viper"
)

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Indicators IndicatorConfig  `mapstructure:"indicators"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Collectors CollectorsConfig `mapstructure:"collectors"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Notifiers  NotifiersConfig  `mapstructure:"notifiers"`
	Watchlist  []string         `mapstructure:"watchlist"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type IndicatorConfig struct {
	RSIPeriod       int     `mapstructure:"rsi_period"`
	SMAShort        int     `mapstructure:"sma_short"`
	SMALong         int     `mapstructure:"sma_long"`
	EMAShort        int     `mapstructure:"ema_short"`
	EMALong         int     `mapstructure:"ema_long"`
	BollingerPeriod int     `mapstructure:"bollinger_period"`
	BollingerK      float64 `mapstructure:"bollinger_k"`
	MACDFast        int     `mapstructure:"macd_fast"`
	MACDSlow        int     `mapstructure:"macd_slow"`
	MACDSignal      int     `mapstructure:"macd_signal"`
}

type SignalConfig struct {
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought"`
}

type BacktestConfig struct {
	InitialCapital     float64 `mapstructure:"initial_capital"`
	PositionSizePct    float64 `mapstructure:"position_size_pct"`
	WarmupBars         int     `mapstructure:"warmup_bars"`
	EntryStrength      float64 `mapstructure:"entry_strength"`
	ExitStrength       float64 `mapstructure:"exit_strength"`
	StopLossPct        float64 `mapstructure:"stop_loss_pct"`
	TakeProfitMultiple float64 `mapstructure:"take_profit_multiple"`
	Incremental        bool    `mapstructure:"incremental"`
	LookbackDays       int     `mapstructure:"lookback_days"`
	Timeframe          string  `mapstructure:"timeframe"`
	Export             bool    `mapstructure:"export"`
}

type RiskConfig struct {
	MaxPositionPct  float64 `mapstructure:"max_position_pct"`
	MaxDailyLossPct float64 `mapstructure:"max_daily_loss_pct"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	RiskReward      float64 `mapstructure:"risk_reward"`
	MaxPositions    int     `mapstructure:"max_positions"`
	MinVolume       int64   `mapstructure:"min_volume"`
	MinRiskReward   float64 `mapstructure:"min_risk_reward"`
	MinAllocation   float64 `mapstructure:"min_allocation"`
	Diversify       bool    `mapstructure:"diversify"`
}

type ScannerConfig struct {
	Workers      int           `mapstructure:"workers"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Interval     time.Duration `mapstructure:"interval"`
	LookbackDays int           `mapstructure:"lookback_days"`
	Timeframe    string        `mapstructure:"timeframe"`
}

// CollectorsConfig enables market data sources. Provider is tried first;
// the other enabled sources are fallbacks.
type CollectorsConfig struct {
	Provider string       `mapstructure:"provider"`
	Alpaca   AlpacaConfig `mapstructure:"alpaca"`
	Yahoo    YahooConfig  `mapstructure:"yahoo"`
	CSV      CSVConfig    `mapstructure:"csv"`
}

type AlpacaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	KeyID      string `mapstructure:"key_id"`
	SecretKey  string `mapstructure:"secret_key"`
	TradingURL string `mapstructure:"trading_url"`
	DataURL    string `mapstructure:"data_url"`
	Feed       string `mapstructure:"feed"`
}

type YahooConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type CSVConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AlertsConfig controls routing of scan signals to notifiers.
type AlertsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MinStrength float64       `mapstructure:"min_strength"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	Actions     []string      `mapstructure:"actions"`
	HistorySize int           `mapstructure:"history_size"`
}

type NotifiersConfig struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	ind := indicator.DefaultConfig()
	sig := signal.DefaultConfig()
	bt := backtest.DefaultConfig()
	rk := risk.DefaultConfig()
	sc := scanner.DefaultConfig()
	rt := router.DefaultConfig()
	actions := make([]string, len(rt.EnabledActions))
	for i, a := range rt.EnabledActions {
		actions[i] = string(a)
	}

	return &Config{
		Log: LogConfig{Level: "info"},
		Indicators: IndicatorConfig{
			RSIPeriod:       ind.RSIPeriod,
			SMAShort:        ind.SMAShort,
			SMALong:         ind.SMALong,
			EMAShort:        ind.EMAShort,
			EMALong:         ind.EMALong,
			BollingerPeriod: ind.BollingerPeriod,
			BollingerK:      ind.BollingerK,
			MACDFast:        ind.MACDFast,
			MACDSlow:        ind.MACDSlow,
			MACDSignal:      ind.MACDSignal,
		},
		Signal: SignalConfig{
			RSIOversold:   sig.RSIOversold,
			RSIOverbought: sig.RSIOverbought,
		},
		Backtest: BacktestConfig{
			InitialCapital:     bt.InitialCapital,
			PositionSizePct:    bt.PositionSizePct,
			WarmupBars:         bt.WarmupBars,
			EntryStrength:      bt.EntryStrength,
			ExitStrength:       bt.ExitStrength,
			StopLossPct:        bt.StopLossPct,
			TakeProfitMultiple: bt.TakeProfitMultiple,
			Incremental:        bt.Incremental,
			LookbackDays:       365,
			Timeframe:          "1d",
		},
		Risk: RiskConfig{
			MaxPositionPct:  rk.MaxPositionPct,
			MaxDailyLossPct: rk.MaxDailyLossPct,
			StopLossPct:     rk.StopLossPct,
			RiskReward:      rk.RiskReward,
			MaxPositions:    rk.MaxPositions,
			MinVolume:       rk.MinVolume,
			MinRiskReward:   rk.MinRiskReward,
			MinAllocation:   rk.MinAllocation,
			Diversify:       true,
		},
		Scanner: ScannerConfig{
			Workers:      sc.Workers,
			Timeout:      sc.Timeout,
			Interval:     15 * time.Minute,
			LookbackDays: sc.LookbackDays,
			Timeframe:    sc.Timeframe,
		},
		Collectors: CollectorsConfig{
			Provider: "yahoo",
			Yahoo:    YahooConfig{Enabled: true},
		},
		Storage: StorageConfig{
			Type: "localfs",
			Path: "./data",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Alerts: AlertsConfig{
			Enabled:     true,
			MinStrength: rt.MinStrength,
			Cooldown:    rt.Cooldown,
			Actions:     actions,
			HistorySize: 1000,
		},
		Notifiers: NotifiersConfig{
			Email: EmailConfig{Port: 587},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Signal.RSIOversold >= c.Signal.RSIOverbought {
		return invalid("rsi_oversold (%v) must be below rsi_overbought (%v)", c.Signal.RSIOversold, c.Signal.RSIOverbought)
	}

	ind := c.Indicators
	for _, p := range []struct {
		name   string
		period int
	}{
		{"rsi_period", ind.RSIPeriod},
		{"sma_short", ind.SMAShort},
		{"sma_long", ind.SMALong},
		{"ema_short", ind.EMAShort},
		{"ema_long", ind.EMALong},
		{"bollinger_period", ind.BollingerPeriod},
		{"macd_fast", ind.MACDFast},
		{"macd_slow", ind.MACDSlow},
		{"macd_signal", ind.MACDSignal},
	} {
		if p.period < 1 {
			return invalid("indicators.%s must be positive, got %d", p.name, p.period)
		}
	}
	if ind.BollingerPeriod < 2 {
		return invalid("bollinger_period must be at least 2, got %d", ind.BollingerPeriod)
	}

	bt := c.Backtest
	if bt.InitialCapital <= 0 {
		return invalid("initial_capital must be positive, got %v", bt.InitialCapital)
	}
	if bt.PositionSizePct <= 0 || bt.PositionSizePct > 1 {
		return invalid("position_size_pct must be in (0, 1], got %v", bt.PositionSizePct)
	}
	if bt.StopLossPct <= 0 || bt.StopLossPct >= 1 {
		return invalid("backtest stop_loss_pct must be in (0, 1), got %v", bt.StopLossPct)
	}
	if bt.WarmupBars < 0 {
		return invalid("warmup_bars cannot be negative, got %d", bt.WarmupBars)
	}

	rk := c.Risk
	if rk.MaxPositionPct <= 0 || rk.MaxPositionPct > 1 {
		return invalid("max_position_pct must be in (0, 1], got %v", rk.MaxPositionPct)
	}
	if rk.StopLossPct <= 0 || rk.StopLossPct >= 1 {
		return invalid("risk stop_loss_pct must be in (0, 1), got %v", rk.StopLossPct)
	}
	if rk.MaxPositions < 1 {
		return invalid("max_positions must be at least 1, got %d", rk.MaxPositions)
	}

	if c.Scanner.Workers < 1 {
		return invalid("scanner workers must be at least 1, got %d", c.Scanner.Workers)
	}
	if c.Scanner.Interval <= 0 {
		return invalid("scanner interval must be positive, got %v", c.Scanner.Interval)
	}
	if c.Scanner.Timeout <= 0 {
		return invalid("scanner timeout must be positive, got %v", c.Scanner.Timeout)
	}

	switch c.Collectors.Provider {
	case "yahoo":
		if !c.Collectors.Yahoo.Enabled {
			return invalid("provider yahoo is not enabled")
		}
	case "csv":
		if !c.Collectors.CSV.Enabled {
			return invalid("provider csv is not enabled")
		}
	case "alpaca":
		if !c.Collectors.Alpaca.Enabled {
			return invalid("provider alpaca is not enabled")
		}
	default:
		return invalid("unknown collector provider %q", c.Collectors.Provider)
	}
	if a := c.Collectors.Alpaca; a.Enabled && (a.KeyID == "" || a.SecretKey == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("alpaca key_id and secret_key required when alpaca is enabled"))
	}

	switch c.Storage.Type {
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage path required for localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required for s3 storage"))
		}
	default:
		return invalid("unknown storage type %q", c.Storage.Type)
	}

	if al := c.Alerts; al.Enabled {
		if al.MinStrength < 0 || al.MinStrength > 1 {
			return invalid("alerts min_strength must be in [0, 1], got %v", al.MinStrength)
		}
		if al.Cooldown < 0 {
			return invalid("alerts cooldown cannot be negative, got %v", al.Cooldown)
		}
		for _, a := range al.Actions {
			if !core.Action(a).Valid() {
				return invalid("unknown alert action %q", a)
			}
		}
	}

	n := c.Notifiers
	if n.Webhook.Enabled && n.Webhook.URL == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("webhook url required when webhook is enabled"))
	}
	if n.Telegram.Enabled && (n.Telegram.BotToken == "" || n.Telegram.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("telegram bot_token and chat_id required when telegram is enabled"))
	}
	if n.Email.Enabled && (n.Email.Host == "" || n.Email.From == "" || len(n.Email.To) == 0) {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("email host, from and to required when email is enabled"))
	}

	return nil
}

// IndicatorConfig returns the indicator periods.
func (c *Config) IndicatorConfig() indicator.Config {
	i := c.Indicators
	return indicator.Config{
		RSIPeriod:       i.RSIPeriod,
		SMAShort:        i.SMAShort,
		SMALong:         i.SMALong,
		EMAShort:        i.EMAShort,
		EMALong:         i.EMALong,
		BollingerPeriod: i.BollingerPeriod,
		BollingerK:      i.BollingerK,
		MACDFast:        i.MACDFast,
		MACDSlow:        i.MACDSlow,
		MACDSignal:      i.MACDSignal,
	}
}

// SignalConfig returns the signal thresholds.
func (c *Config) SignalConfig() signal.Config {
	return signal.Config{
		RSIOversold:   c.Signal.RSIOversold,
		RSIOverbought: c.Signal.RSIOverbought,
	}
}

// BacktestConfig returns the simulation parameters.
func (c *Config) BacktestConfig() backtest.Config {
	b := c.Backtest
	return backtest.Config{
		InitialCapital:     b.InitialCapital,
		PositionSizePct:    b.PositionSizePct,
		WarmupBars:         b.WarmupBars,
		EntryStrength:      b.EntryStrength,
		ExitStrength:       b.ExitStrength,
		StopLossPct:        b.StopLossPct,
		TakeProfitMultiple: b.TakeProfitMultiple,
		Incremental:        b.Incremental,
		Indicators:         c.IndicatorConfig(),
		Signal:             c.SignalConfig(),
	}
}

// RiskConfig returns the sizing and allocation limits.
func (c *Config) RiskConfig() risk.Config {
	r := c.Risk
	return risk.Config{
		MaxPositionPct:  r.MaxPositionPct,
		MaxDailyLossPct: r.MaxDailyLossPct,
		StopLossPct:     r.StopLossPct,
		RiskReward:      r.RiskReward,
		MaxPositions:    r.MaxPositions,
		MinVolume:       r.MinVolume,
		MinRiskReward:   r.MinRiskReward,
		MinAllocation:   r.MinAllocation,
	}
}

// ScannerConfig returns the watchlist scan settings.
func (c *Config) ScannerConfig() scanner.Config {
	s := c.Scanner
	return scanner.Config{
		Workers:      s.Workers,
		Timeout:      s.Timeout,
		LookbackDays: s.LookbackDays,
		Timeframe:    s.Timeframe,
		MinVolume:    c.Risk.MinVolume,
	}
}

// ArchiveConfig returns the storage backend settings.
func (c *Config) ArchiveConfig() archive.Config {
	s := c.Storage
	return archive.Config{
		Backend:   s.Type,
		LocalPath: s.Path,
		S3: archive.S3Config{
			Bucket:    s.S3.Bucket,
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Prefix:    s.S3.Prefix,
		},
	}
}

// AlpacaConfig returns the Alpaca client settings.
func (c *Config) AlpacaConfig() alpaca.Config {
	a := c.Collectors.Alpaca
	return alpaca.Config{
		KeyID:      a.KeyID,
		SecretKey:  a.SecretKey,
		TradingURL: a.TradingURL,
		DataURL:    a.DataURL,
		Feed:       a.Feed,
	}
}

// RouterConfig returns the alert filtering settings.
func (c *Config) RouterConfig() router.Config {
	a := c.Alerts
	actions := make([]core.Action, len(a.Actions))
	for i, s := range a.Actions {
		actions[i] = core.Action(s)
	}
	return router.Config{
		MinStrength:    a.MinStrength,
		Cooldown:       a.Cooldown,
		EnabledActions: actions,
	}
}

// EmailConfig returns the SMTP notifier settings.
func (c *Config) EmailConfig() email.Config {
	e := c.Notifiers.Email
	return email.Config{
		Host:     e.Host,
		Port:     e.Port,
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		To:       e.To,
	}
}
