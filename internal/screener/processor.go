package screener

import (
	"context"
	"errors"
	"fmt"

	"BBWPScreener/internal/calculator"
	"BBWPScreener/internal/collector"
	"BBWPScreener/internal/model"
)

var errEmptySeries = errors.New("empty series")

// Params are the indicator and extraction settings for one run.
type Params struct {
	Period       int
	RecentWindow int
	LowThreshold float64
	Limit        int // bars requested from the fetcher
}

// DefaultParams returns the stock settings: period 20, last 6 positions, threshold 15, 500 bars.
func DefaultParams() Params {
	return Params{
		Period:       calculator.DefaultPeriod,
		RecentWindow: 6,
		LowThreshold: 15,
		Limit:        500,
	}
}

// Validate rejects non-positive period, window and limit. Any threshold is allowed.
func (p Params) Validate() error {
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %d", p.Period)
	}
	if p.RecentWindow <= 0 {
		return fmt.Errorf("recent window must be positive, got %d", p.RecentWindow)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", p.Limit)
	}
	return nil
}

// ProcessSymbol runs fetch, compute and extraction for a single symbol.
// Every fault, including a panic, comes back as a *FailureError.
func ProcessSymbol(ctx context.Context, f collector.Fetcher, symbol string, tf model.Timeframe, p Params) (res model.SymbolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = model.SymbolResult{}
			err = fail(symbol, ReasonProcessingError, fmt.Errorf("panic: %v", r))
		}
	}()

	series, err := f.FetchBars(ctx, symbol, tf, p.Limit)
	if err != nil {
		return model.SymbolResult{}, fail(symbol, ReasonFetchFailed, err)
	}
	if len(series) == 0 {
		return model.SymbolResult{}, fail(symbol, ReasonFetchFailed, errEmptySeries)
	}
	if err := series.Validate(); err != nil {
		return model.SymbolResult{}, fail(symbol, ReasonProcessingError, err)
	}

	ind := calculator.ComputeBBWP(series, p.Period)
	if ind.Defined() == 0 {
		return model.SymbolResult{}, fail(symbol, ReasonNoValidIndicator,
			fmt.Errorf("%d bars, period %d", len(series), p.Period))
	}
	return Summarize(symbol, ind, p), nil
}

// Summarize extracts the last value and the low count over the trailing
// RecentWindow positions. Undefined positions in the window are not counted.
func Summarize(symbol string, ind model.IndicatorSeries, p Params) model.SymbolResult {
	res := model.SymbolResult{Symbol: symbol}
	if last, ok := ind.Last(); ok && last.Valid {
		res.LastValue = last.Value
		res.HasLast = true
	}
	for _, pt := range ind.Tail(p.RecentWindow) {
		if pt.Valid && pt.Value < p.LowThreshold {
			res.LowCount++
		}
	}
	return res
}
