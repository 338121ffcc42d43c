package model

import "time"

// IndicatorPoint is one indicator observation. Value is meaningful only when Valid is set.
type IndicatorPoint struct {
	Time  time.Time
	Value float64
	Valid bool
}

// IndicatorSeries is aligned 1:1 with the Series it was computed from.
type IndicatorSeries []IndicatorPoint

// Defined counts the positions holding a value.
func (s IndicatorSeries) Defined() int {
	n := 0
	for _, p := range s {
		if p.Valid {
			n++
		}
	}
	return n
}

// Last returns the final point, which may itself be undefined.
func (s IndicatorSeries) Last() (IndicatorPoint, bool) {
	if len(s) == 0 {
		return IndicatorPoint{}, false
	}
	return s[len(s)-1], true
}

// Tail returns the trailing n points, or the whole series when shorter.
func (s IndicatorSeries) Tail(n int) IndicatorSeries {
	if n <= 0 {
		return nil
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
