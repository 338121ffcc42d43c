package screener

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"BBWPScreener/internal/collector"
	"BBWPScreener/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress is emitted once per processed symbol.
type Progress struct {
	RunID     string
	Timeframe model.Timeframe
	Symbol    string
	Processed int
	Total     int
	Fraction  float64 // Processed/Total, in [0,1]
	Result    *model.SymbolResult
	Err       error
}

// Observer receives advisory notifications from a batch. Calls are serialized.
type Observer interface {
	OnSymbolProcessed(Progress)
	OnBatchFinished(*model.BatchReport)
}

// ProgressFunc adapts a plain function to an Observer that ignores batch completion.
type ProgressFunc func(Progress)

func (f ProgressFunc) OnSymbolProcessed(p Progress)        { f(p) }
func (f ProgressFunc) OnBatchFinished(*model.BatchReport) {}

// Aggregator drives ProcessSymbol over a symbol universe.
type Aggregator struct {
	fetcher   collector.Fetcher
	params    Params
	workers   int
	observers []Observer
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParams overrides DefaultParams.
func WithParams(p Params) Option { return func(a *Aggregator) { a.params = p } }

// WithWorkers bounds the number of symbols processed concurrently. Values below 2
// keep the sequential loop.
func WithWorkers(n int) Option { return func(a *Aggregator) { a.workers = n } }

// WithObservers registers observers for progress and completion events.
func WithObservers(obs ...Observer) Option {
	return func(a *Aggregator) { a.observers = append(a.observers, obs...) }
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates a new Aggregator reading series from fetcher.
func NewAggregator(fetcher collector.Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		params:  DefaultParams(),
		workers: 1,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Params returns the parameters the aggregator runs with.
func (a *Aggregator) Params() Params { return a.params }

type outcome struct {
	done   bool
	result model.SymbolResult
	err    error
}

// batchState is the accumulator shared by workers; mu guards the counters and
// observer calls.
type batchState struct {
	mu       sync.Mutex
	report   *model.BatchReport
	outcomes []outcome
}

// Run processes every symbol and returns the ranked report.
//
// A cancelled ctx stops the run between symbols; the partial report is returned
// with Aborted set together with the context error. When no symbol succeeds the
// report is returned with ErrGlobalEmptyResult.
func (a *Aggregator) Run(ctx context.Context, symbols []string, tf model.Timeframe) (*model.BatchReport, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidTimeframe, tf)
	}
	if err := a.params.Validate(); err != nil {
		return nil, err
	}

	st := &batchState{
		report: &model.BatchReport{
			RunID:     uuid.NewString(),
			Timeframe: tf,
			Total:     len(symbols),
			StartedAt: a.now(),
		},
		outcomes: make([]outcome, len(symbols)),
	}
	a.logger.Info("batch started",
		zap.String("run_id", st.report.RunID),
		zap.String("timeframe", tf.String()),
		zap.Int("symbols", len(symbols)),
		zap.Int("workers", a.workers),
		zap.String("source", a.fetcher.Name()))

	if a.workers > 1 {
		a.runPool(ctx, st, symbols, tf)
	} else {
		for i, symbol := range symbols {
			if ctx.Err() != nil {
				break
			}
			a.process(ctx, st, i, symbol, tf)
		}
	}

	report := a.finalize(st, symbols)
	for _, o := range a.observers {
		o.OnBatchFinished(report)
	}

	a.logger.Info("batch finished",
		zap.String("run_id", report.RunID),
		zap.String("timeframe", tf.String()),
		zap.Int("success", report.SuccessCount),
		zap.Int("failure", report.FailureCount),
		zap.Bool("aborted", report.Aborted),
		zap.Duration("duration", report.Duration()))

	switch {
	case report.Aborted:
		return report, fmt.Errorf("batch aborted after %d of %d symbols: %w",
			report.Processed(), report.Total, context.Cause(ctx))
	case report.NoData():
		return report, ErrGlobalEmptyResult
	}
	return report, nil
}

func (a *Aggregator) runPool(ctx context.Context, st *batchState, symbols []string, tf model.Timeframe) {
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			a.process(ctx, st, i, symbol, tf)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in the outcomes
}

func (a *Aggregator) process(ctx context.Context, st *batchState, i int, symbol string, tf model.Timeframe) {
	res, err := ProcessSymbol(ctx, a.fetcher, symbol, tf, a.params)

	if err != nil {
		a.logger.Warn("symbol skipped",
			zap.String("symbol", symbol),
			zap.String("timeframe", tf.String()),
			zap.String("reason", string(ReasonOf(err))),
			zap.Error(err))
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.outcomes[i] = outcome{done: true, result: res, err: err}
	p := Progress{
		RunID:     st.report.RunID,
		Timeframe: tf,
		Symbol:    symbol,
		Err:       err,
	}
	if err != nil {
		st.report.FailureCount++
	} else {
		st.report.SuccessCount++
		r := res
		p.Result = &r
	}
	p.Processed = st.report.Processed()
	p.Total = st.report.Total
	p.Fraction = st.report.Progress()

	for _, o := range a.observers {
		o.OnSymbolProcessed(p)
	}
}

// finalize merges outcomes in input order, so tie-breaks match the sequential run.
func (a *Aggregator) finalize(st *batchState, symbols []string) *model.BatchReport {
	st.mu.Lock()
	defer st.mu.Unlock()

	report := st.report
	for i, o := range st.outcomes {
		if !o.done {
			report.Aborted = true
			continue
		}
		if o.err != nil {
			report.Failures = append(report.Failures, model.SymbolFailure{
				Symbol:  symbols[i],
				Reason:  string(ReasonOf(o.err)),
				Message: o.err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, o.result)
	}
	RankResults(report.Results)
	report.FinishedAt = a.now()
	return report
}

// RankResults sorts ascending by last value with missing values last, keeping
// input order among ties.
func RankResults(results []model.SymbolResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i], results[j]
		if ri.HasLast != rj.HasLast {
			return ri.HasLast
		}
		if !ri.HasLast {
			return false
		}
		return ri.LastValue < rj.LastValue
	})
}
