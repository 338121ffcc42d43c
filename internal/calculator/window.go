package calculator

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// rollingExtremes returns the highest and lowest value of each trailing window of the given
// length, aligned with values. Positions before the first full window are zero.
func rollingExtremes(values []float64, period int) (highs, lows []float64) {
	if period < 2 {
		// talib leaves single-bar windows unset; a one-bar window is its own extreme.
		highs = append([]float64(nil), values...)
		lows = append([]float64(nil), values...)
		return highs, lows
	}
	return talib.Max(values, period), talib.Min(values, period)
}

// rangePosition returns where current sits within [low, high] on a 0..100 scale.
// ok is false for an empty or non-finite range.
func rangePosition(current, high, low float64) (pos float64, ok bool) {
	rng := high - low
	if rng == 0 || math.IsNaN(rng) || math.IsInf(rng, 0) || rng < 0 {
		return 0, false
	}
	pos = (current - low) / rng * 100
	if pos < 0 {
		pos = 0
	}
	if pos > 100 {
		pos = 100
	}
	return pos, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
