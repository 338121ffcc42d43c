package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BBWPScreener/internal/cache"
	"BBWPScreener/internal/metrics"
	"BBWPScreener/internal/notifier"
	"BBWPScreener/internal/scheduler"
	"BBWPScreener/internal/screener"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled scans with Telegram reports and a metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, cancel, a)
		},
	}
}

func serve(ctx context.Context, cancel context.CancelFunc, a *app) error {
	cfg, log := a.cfg, a.logger
	log.Info("BBWP screener starting")

	// Metrics and health
	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	if p, ok := a.cache.(cache.Pinger); ok {
		health.AddCheck("cache", p.Ping)
	}
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, nil, health, log)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	agg := screener.NewAggregator(a.fetcher,
		screener.WithParams(cfg.Params()),
		screener.WithWorkers(cfg.Workers),
		screener.WithObservers(m, health),
		screener.WithLogger(log),
	)

	// Telegram is optional in serve mode
	var sender scheduler.Sender
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	if err := cfg.ValidateTelegram(); err != nil {
		log.Warn("telegram disabled", zap.Error(err))
	} else {
		sender = tn
	}

	format := notifier.FormatOptions{LowThreshold: cfg.Indicator.LowThreshold, RecentWindow: cfg.Indicator.RecentWindow}
	sched := scheduler.NewScheduler(ctx, agg, sender, cfg.Universe, cfg.DefaultTimeframe(), format, log)

	schedules, err := cfg.Schedules()
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		schedules = scheduler.DefaultSchedules
	}
	if err := sched.RegisterAll(schedules); err != nil {
		return err
	}
	if sc, ok := a.cache.(*cache.SQLiteCache); ok {
		if _, err := sched.Cron.AddFunc("0 0 * * * *", func() {
			if n, err := sc.PurgeExpired(ctx); err != nil {
				log.Warn("purge expired series", zap.Error(err))
			} else if n > 0 {
				log.Info("purged expired series", zap.Int64("rows", n))
			}
		}); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	if sender != nil {
		sched.Go(func() { tn.StartPolling(ctx, sched.HandleCommand) })
		log.Info("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, scanning now", zap.String("timeframe", cfg.Timeframe))
		sched.Go(func() { sched.Scan(cfg.DefaultTimeframe()) })
	}

	log.Info("BBWP screener is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received, stopping")
	case <-ctx.Done():
	}
	cancel()
	return nil
}
