package main

import (
	"fmt"
	"strings"

	"github.com/newthinker/tradelab/internal/broker"
	"github.com/newthinker/tradelab/internal/collector"
	"github.com/newthinker/tradelab/internal/collector/alpaca"
	"github.com/newthinker/tradelab/internal/collector/csvfile"
	"github.com/newthinker/tradelab/internal/collector/yahoo"
	"github.com/newthinker/tradelab/internal/config"
	"github.com/newthinker/tradelab/internal/logger"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/storage/archive"
	"go.uber.org/zap"
)

// env is the wiring shared by every command.
type env struct {
	cfg        *config.Config
	log        *zap.Logger
	metrics    *metrics.Registry
	store      archive.Storage
	collectors *collector.Registry
	csv        *csvfile.Source
	accounts   broker.AccountProvider // nil unless Alpaca is enabled
}

func setup() (*env, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log.Development, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	e := &env{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.NewRegistry()
	}

	e.store, err = archiveFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	if err := e.registerCollectors(); err != nil {
		return nil, err
	}
	return e, nil
}

func archiveFor(cfg *config.Config) (archive.Storage, error) {
	return archive.New(cfg.ArchiveConfig())
}

func (e *env) registerCollectors() error {
	c := e.cfg.Collectors
	e.collectors = collector.NewRegistry(e.log, e.metrics)

	if c.Yahoo.Enabled {
		var opts []yahoo.Option
		if c.Yahoo.BaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(c.Yahoo.BaseURL))
		}
		e.collectors.Register(yahoo.New(opts...))
	}

	if c.Alpaca.Enabled {
		client, err := alpaca.New(e.cfg.AlpacaConfig())
		if err != nil {
			return fmt.Errorf("creating alpaca client: %w", err)
		}
		e.collectors.Register(client)
		e.accounts = client
	}

	e.csv = csvfile.New(e.store)
	if c.CSV.Enabled {
		e.collectors.Register(e.csv)
	}

	if c.Provider != "" {
		if err := e.collectors.Prefer(c.Provider); err != nil {
			return fmt.Errorf("preferring %s: %w", c.Provider, err)
		}
	}

	names := make([]string, 0, 3)
	for _, col := range e.collectors.GetAll() {
		names = append(names, col.Name())
	}
	e.log.Debug("collectors registered", zap.Strings("order", names))
	return nil
}

// symbols returns args, or the configured watchlist when none are given.
func (e *env) symbols(args []string) ([]string, error) {
	if len(args) == 0 {
		args = e.cfg.Watchlist
	}
	symbols := make([]string, 0, len(args))
	for _, s := range args {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols given and the watchlist is empty")
	}
	return symbols, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}
