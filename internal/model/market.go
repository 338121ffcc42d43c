package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeframe is returned when a timeframe code is not one of 4h, 1d, 1w.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Timeframe is the sampling interval of bars.
type Timeframe string

const (
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
	Timeframe1w Timeframe = "1w"
)

// Timeframes lists the supported timeframes in selector order.
var Timeframes = []Timeframe{Timeframe4h, Timeframe1d, Timeframe1w}

// ParseTimeframe accepts a bare code ("1d") or a labelled choice ("1d (diario)").
func ParseTimeframe(s string) (Timeframe, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty", ErrInvalidTimeframe)
	}
	tf := Timeframe(strings.ToLower(fields[0]))
	if !tf.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return tf, nil
}

func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe4h, Timeframe1d, Timeframe1w:
		return true
	}
	return false
}

// Duration returns the length of one bar.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	case Timeframe1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

func (t Timeframe) String() string { return string(t) }

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered run of bars, oldest first.
type Series []OHLCV

// Closes extracts the close prices in series order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Validate checks that timestamps are strictly increasing.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return fmt.Errorf("bar %d at %s does not follow %s", i, s[i].Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}
