package cache

import (
	"context"
	"time"

	"BBWPScreener/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a process-local TTL cache. A zero TTL keeps entries until Clear.
type MemoryCache struct {
	lru *expirable.LRU[string, model.Series]
}

// NewMemoryCache creates an unbounded MemoryCache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, model.Series](0, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (model.Series, bool, error) {
	series, ok := c.lru.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	return series, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, series model.Series) error {
	c.lru.Add(key.String(), append(model.Series(nil), series...))
	return nil
}

// Len reports the number of stored entries; expired ones linger until the background sweep.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

func (c *MemoryCache) Clear() {
	c.lru.Purge()
}

func (c *MemoryCache) Close() error { return nil }
