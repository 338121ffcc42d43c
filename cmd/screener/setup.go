package main

import (
	"context"
	"os"

	"BBWPScreener/internal/cache"
	"BBWPScreener/internal/collector"
	"BBWPScreener/internal/config"
	"BBWPScreener/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

// app bundles the wired dependencies shared by scan and serve.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	cache   cache.Cache
	fetcher collector.Fetcher
}

func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return defaultConfigPath
}

// newApp loads and validates config, then builds logger, cache and fetcher.
// override runs after loading and before validation so flags win over files.
func newApp(ctx context.Context, cmd *cobra.Command, override func(*config.Config) error) (*app, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return nil, err
	}
	if override != nil {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	c := buildCache(ctx, cfg, log)
	source := buildFetcher(cfg, log)
	var fetcher collector.Fetcher = source
	if cfg.Cache.Backend != "none" {
		fetcher = collector.NewCachedFetcher(source, c, log)
	}
	log.Info("data source ready",
		zap.String("fetcher", fetcher.Name()),
		zap.String("cache", cfg.Cache.Backend),
		zap.Int("symbols", len(cfg.Universe)))

	return &app{cfg: cfg, logger: log, cache: c, fetcher: fetcher}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("close cache", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func buildFetcher(cfg *config.Config, log *zap.Logger) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.HTTPOptions())
	case "mock":
		return collector.NewMockFetcher(100)
	default:
		return collector.NewBinanceFetcher(cfg.HTTPOptions(), log)
	}
}

// buildCache falls back to an in-memory cache when the configured store is unreachable.
func buildCache(ctx context.Context, cfg *config.Config, log *zap.Logger) cache.Cache {
	switch cfg.Cache.Backend {
	case "none":
		return cache.NewNoopCache()
	case "sqlite":
		sc, err := cache.NewSQLiteCache(cfg.Cache.SQLitePath, cfg.Cache.TTL, log)
		if err != nil {
			log.Warn("init sqlite cache failed, using memory", zap.Error(err))
			break
		}
		if n, err := sc.PurgeExpired(ctx); err != nil {
			log.Warn("purge expired series", zap.Error(err))
		} else if n > 0 {
			log.Info("purged expired series", zap.Int64("rows", n))
		}
		return sc
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.KeyPrefix,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			log.Warn("init redis cache failed, using memory", zap.Error(err))
			break
		}
		return rc
	}
	return cache.NewMemoryCache(cfg.Cache.TTL)
}
