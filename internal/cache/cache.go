// Package cache stores fetched price series between requests so repeated fetches within
// a run (or within the TTL across runs) do not hit the exchange again.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"BBWPScreener/internal/model"
)

// Key identifies one fetch request.
type Key struct {
	Symbol    string
	Timeframe model.Timeframe
	Limit     int
}

func (k Key) String() string {
	return strings.Join([]string{k.Symbol, string(k.Timeframe), strconv.Itoa(k.Limit)}, "|")
}

// Cache is a series store keyed by fetch request.
type Cache interface {
	// Get returns the cached series; ok is false on a miss or an expired entry.
	Get(ctx context.Context, key Key) (series model.Series, ok bool, err error)
	Set(ctx context.Context, key Key, series model.Series) error
	Close() error
}

// Pinger is implemented by backends that depend on an external store.
type Pinger interface {
	Ping(ctx context.Context) error
}

func encodeSeries(series model.Series) ([]byte, error) {
	data, err := json.Marshal(series)
	if err != nil {
		return nil, fmt.Errorf("encode series: %w", err)
	}
	return data, nil
}

func decodeSeries(data []byte) (model.Series, error) {
	var series model.Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	return series, nil
}
