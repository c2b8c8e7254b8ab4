package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/tradelab/internal/api"
	apihandler "github.com/newthinker/tradelab/internal/api/handler/api"
	"github.com/newthinker/tradelab/internal/app"
	"github.com/newthinker/tradelab/internal/notifier"
	"github.com/newthinker/tradelab/internal/notifier/email"
	"github.com/newthinker/tradelab/internal/notifier/telegram"
	"github.com/newthinker/tradelab/internal/notifier/webhook"
	"github.com/newthinker/tradelab/internal/report"
	"github.com/newthinker/tradelab/internal/risk"
	"github.com/newthinker/tradelab/internal/router"
	"github.com/newthinker/tradelab/internal/storage/alerts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tradelab server",
	Long:  "Serve the HTTP API and rescan the watchlist on the configured interval",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.cfg

	sc := newScanner(e)
	a := app.New(sc, e.log, e.metrics)
	a.SetWatchlist(cfg.Watchlist)
	a.SetInterval(cfg.Scanner.Interval)

	ctx := cmd.Context()
	var history alerts.Store
	if cfg.Alerts.Enabled {
		notifiers, err := buildNotifiers(e)
		if err != nil {
			return err
		}
		store := alerts.NewMemoryStore(cfg.Alerts.HistorySize)
		rt := router.New(cfg.RouterConfig(), notifiers, e.log, e.metrics)
		rt.SetStore(store)
		rt.StartCleanupRoutine(ctx, time.Hour)
		a.SetRouter(rt)
		history = store
	}

	sizer := risk.NewSizer(cfg.RiskConfig(), e.log)
	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MaxJobs:     cfg.Server.MaxJobs,
		JobTTL:      time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{
		App:       a,
		Scanner:   sc,
		Provider:  e.collectors,
		Accounts:  e.accounts,
		Sizer:     sizer,
		Allocator: risk.NewAllocator(sizer, e.log),
		Diversify: cfg.Risk.Diversify,
		Exporter:  report.NewExporter(e.store, e.log),
		Alerts:    history,
		Backtest: apihandler.BacktestDefaults{
			Config:       cfg.BacktestConfig(),
			LookbackDays: cfg.Backtest.LookbackDays,
			Timeframe:    cfg.Backtest.Timeframe,
		},
	}, e.log, e.metrics)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	e.log.Info("starting tradelab server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("watchlist", len(cfg.Watchlist)),
		zap.Duration("interval", cfg.Scanner.Interval),
		zap.Bool("alerts", cfg.Alerts.Enabled),
	)

	errc := make(chan error, 2)
	go func() { errc <- server.Start() }()
	go func() {
		if err := a.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
		e.log.Error("server error", zap.Error(err))
	}

	e.log.Info("shutting down tradelab server")
	a.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		return serr
	}
	return err
}

// buildNotifiers registers every enabled notification channel.
func buildNotifiers(e *env) (*notifier.Registry, error) {
	n := e.cfg.Notifiers
	reg := notifier.NewRegistry()

	if n.Webhook.Enabled {
		wh, err := webhook.New(n.Webhook.URL, n.Webhook.Headers)
		if err != nil {
			return nil, fmt.Errorf("creating webhook notifier: %w", err)
		}
		if err := reg.Register(wh); err != nil {
			return nil, err
		}
	}
	if n.Telegram.Enabled {
		tg, err := telegram.New(n.Telegram.BotToken, n.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("creating telegram notifier: %w", err)
		}
		if err := reg.Register(tg); err != nil {
			return nil, err
		}
	}
	if n.Email.Enabled {
		em, err := email.New(e.cfg.EmailConfig())
		if err != nil {
			return nil, fmt.Errorf("creating email notifier: %w", err)
		}
		if err := reg.Register(em); err != nil {
			return nil, err
		}
	}

	if len(reg.GetAll()) == 0 {
		e.log.Warn("alerts enabled without notifiers; alerts are only recorded")
	}
	return reg, nil
}
