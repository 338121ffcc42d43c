package cache

import (
	"context"

	"BBWPScreener/internal/model"
)

// NoopCache never stores anything; used when caching is disabled.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (n *NoopCache) Get(_ context.Context, _ Key) (model.Series, bool, error) { return nil, false, nil }
func (n *NoopCache) Set(_ context.Context, _ Key, _ model.Series) error        { return nil }
func (n *NoopCache) Close() error                                              { return nil }
