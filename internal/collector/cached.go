package collector

import (
	"context"

	"BBWPScreener/internal/cache"
	"BBWPScreener/internal/model"

	"go.uber.org/zap"
)

// CachedFetcher serves repeated requests for the same (symbol, timeframe, limit) from a cache.
// Cache failures never fail a fetch; they only cost a round trip to the wrapped source.
type CachedFetcher struct {
	next   Fetcher
	cache  cache.Cache
	logger *zap.Logger
}

func NewCachedFetcher(next Fetcher, c cache.Cache, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{next: next, cache: c, logger: logger}
}

func (f *CachedFetcher) Name() string { return f.next.Name() + "+cache" }

func (f *CachedFetcher) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	key := cache.Key{Symbol: symbol, Timeframe: tf, Limit: limit}

	series, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.logger.Warn("cache read failed, fetching from source", zap.String("key", key.String()), zap.Error(err))
	} else if ok {
		f.logger.Debug("cache hit", zap.String("key", key.String()))
		return series, nil
	}

	series, err = f.next.FetchBars(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	if len(series) > 0 {
		if err := f.cache.Set(ctx, key, series); err != nil {
			f.logger.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
	return series, nil
}
