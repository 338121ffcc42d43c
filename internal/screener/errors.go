package screener

import (
	"errors"
	"fmt"
)

// FailureReason classifies why a symbol was left out of a batch.
type FailureReason string

const (
	ReasonFetchFailed      FailureReason = "FetchFailed"
	ReasonNoValidIndicator FailureReason = "NoValidIndicator"
	ReasonProcessingError  FailureReason = "ProcessingError"
)

var (
	ErrFetchFailed      = errors.New("fetch failed")
	ErrNoValidIndicator = errors.New("no valid indicator value")
	ErrProcessingError  = errors.New("processing error")

	// ErrGlobalEmptyResult is returned by Aggregator.Run when no symbol succeeded.
	// It is a batch-level state, never attached to a single symbol.
	ErrGlobalEmptyResult = errors.New("no symbol produced data")
)

func (r FailureReason) sentinel() error {
	switch r {
	case ReasonFetchFailed:
		return ErrFetchFailed
	case ReasonNoValidIndicator:
		return ErrNoValidIndicator
	default:
		return ErrProcessingError
	}
}

// FailureError is the per-symbol failure signal. It matches both its reason
// sentinel and the underlying cause under errors.Is.
type FailureError struct {
	Symbol string
	Reason FailureReason
	Err    error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Reason, e.Err)
}

func (e *FailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason.sentinel()}
	}
	return []error{e.Reason.sentinel(), e.Err}
}

func fail(symbol string, reason FailureReason, err error) *FailureError {
	return &FailureError{Symbol: symbol, Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from err. Errors that did not come from
// symbol processing are reported as ProcessingError.
func ReasonOf(err error) FailureReason {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonProcessingError
}
