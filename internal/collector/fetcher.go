package collector

import (
	"context"
	"errors"
	"sort"
	"time"

	"BBWPScreener/internal/model"
)

var (
	// ErrUnavailable signals that no series could be obtained (network, rate limit, bad payload).
	// It is distinct from a successful fetch that returned zero bars.
	ErrUnavailable = errors.New("series unavailable")
	// ErrUnsupportedTimeframe is returned when a source has no mapping for a timeframe.
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
)

// Fetcher retrieves price series from a market data source.
// Implementations return bars in ascending timestamp order without duplicates and enforce
// their own timeouts.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error)
	Name() string
}

// HTTPOptions configures the REST-backed fetchers.
type HTTPOptions struct {
	BaseURL string
	Proxy   string
	Timeout time.Duration
	Retries int
}

func (o HTTPOptions) withDefaults(baseURL string) HTTPOptions {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

// normalizeSeries sorts bars chronologically and drops repeated timestamps, keeping the
// most recent copy of each.
func normalizeSeries(bars model.Series) model.Series {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func trimToLimit(bars model.Series, limit int) model.Series {
	if limit > 0 && len(bars) > limit {
		return bars[len(bars)-limit:]
	}
	return bars
}
