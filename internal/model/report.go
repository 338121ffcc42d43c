package model

import "time"

// SymbolResult summarises one symbol's indicator run.
type SymbolResult struct {
	Symbol    string
	LastValue float64
	HasLast   bool // false when the final position is undefined
	LowCount  int
}

// SymbolFailure records why a symbol was left out of the ranking.
type SymbolFailure struct {
	Symbol  string
	Reason  string
	Message string
}

// BatchReport is the outcome of one pass over the symbol universe.
type BatchReport struct {
	RunID        string
	Timeframe    Timeframe
	Results      []SymbolResult
	Failures     []SymbolFailure
	SuccessCount int
	FailureCount int
	Total        int
	StartedAt    time.Time
	FinishedAt   time.Time
	Aborted      bool
}

// Processed is the number of symbols handled so far.
func (r *BatchReport) Processed() int { return r.SuccessCount + r.FailureCount }

// NoData reports the global empty condition: nothing succeeded.
func (r *BatchReport) NoData() bool { return r.SuccessCount == 0 }

// Progress returns the processed fraction in [0,1].
func (r *BatchReport) Progress() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Processed()) / float64(r.Total)
}

// Duration is the wall time of the run.
func (r *BatchReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
