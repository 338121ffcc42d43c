package calculator

import "BBWPScreener/internal/model"

// DefaultPeriod is the lookback window, in bars, used when none is configured.
const DefaultPeriod = 20

// ComputeBBWP maps each close onto its position within the trailing high-low range of the
// last period closes, scaled to 0..100.
//
// The result always has the same length as series. A position is undefined when fewer than
// period bars end at it, when the window's range is zero, or when the window holds a
// non-finite close. A series shorter than period yields an all-undefined result.
func ComputeBBWP(series model.Series, period int) model.IndicatorSeries {
	out := make(model.IndicatorSeries, len(series))
	for i, b := range series {
		out[i].Time = b.Time
	}
	if period <= 0 || len(series) < period {
		return out
	}

	closes := series.Closes()
	highs, lows := rollingExtremes(closes, period)

	lastBad := -1
	for i, c := range closes {
		if !finite(c) {
			lastBad = i
		}
		if i < period-1 {
			continue
		}
		if lastBad > i-period {
			continue
		}
		if v, ok := rangePosition(c, highs[i], lows[i]); ok {
			out[i].Value = v
			out[i].Valid = true
		}
	}
	return out
}
