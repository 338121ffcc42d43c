package screener

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"BBWPScreener/internal/collector"
	"BBWPScreener/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	progress []Progress
	finished []*model.BatchReport
}

func (r *recordingObserver) OnSymbolProcessed(p Progress)          { r.progress = append(r.progress, p) }
func (r *recordingObserver) OnBatchFinished(rep *model.BatchReport) { r.finished = append(r.finished, rep) }

func symbolsOf(results []model.SymbolResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Symbol
	}
	return out
}

func TestRun_PartialFailure(t *testing.T) {
	f := collector.NewMockFetcher(100)
	f.Errors["ETH/USDT"] = collector.ErrUnavailable

	agg := NewAggregator(f)
	report, err := agg.Run(context.Background(), []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, model.Timeframe1d)
	require.NoError(t, err)

	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.Equal(t, 3, report.Total)
	assert.NotContains(t, symbolsOf(report.Results), "ETH/USDT")
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "ETH/USDT", report.Failures[0].Symbol)
	assert.Equal(t, string(ReasonFetchFailed), report.Failures[0].Reason)
	assert.False(t, report.Aborted)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRun_AllFail(t *testing.T) {
	f := collector.NewMockFetcher(100)
	symbols := []string{"A/USDT", "B/USDT", "C/USDT"}
	for _, s := range symbols {
		f.Errors[s] = collector.ErrUnavailable
	}

	report, err := NewAggregator(f).Run(context.Background(), symbols, model.Timeframe4h)
	require.ErrorIs(t, err, ErrGlobalEmptyResult)
	require.NotNil(t, report)
	assert.True(t, report.NoData())
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 3, report.FailureCount)
	assert.Empty(t, report.Results)
}

func TestRun_RankedAscendingMissingLast(t *testing.T) {
	f := collector.NewMockFetcher(100)
	f.Series["HIGH/USDT"] = ramp(100, 10)                  // last 100
	f.Series["NONE/USDT"] = makeSeries(1, 2, 3, 5, 5, 5)   // last undefined
	f.Series["LOW/USDT"] = makeSeries(10, 20, 30, 5, 6, 4) // last 0
	f.Series["MID/USDT"] = makeSeries(30, 20, 10, 11)      // last 10
	f.Series["NONE2/USDT"] = makeSeries(9, 8, 7, 7, 7, 7)  // last undefined

	agg := NewAggregator(f, WithParams(smallParams()))
	report, err := agg.Run(context.Background(),
		[]string{"NONE/USDT", "HIGH/USDT", "LOW/USDT", "NONE2/USDT", "MID/USDT"}, model.Timeframe1d)
	require.NoError(t, err)

	assert.Equal(t, []string{"LOW/USDT", "MID/USDT", "HIGH/USDT", "NONE/USDT", "NONE2/USDT"}, symbolsOf(report.Results))
}

func TestRankResults_StableTies(t *testing.T) {
	results := []model.SymbolResult{
		{Symbol: "a", LastValue: 50, HasLast: true},
		{Symbol: "b"},
		{Symbol: "c", LastValue: 10, HasLast: true},
		{Symbol: "d", LastValue: 50, HasLast: true},
		{Symbol: "e"},
	}
	RankResults(results)
	assert.Equal(t, []string{"c", "a", "d", "b", "e"}, symbolsOf(results))
}

func TestRun_CountsMatchUniverse(t *testing.T) {
	f := collector.NewMockFetcher(100)
	var symbols []string
	for i := 0; i < 12; i++ {
		s := fmt.Sprintf("S%02d/USDT", i)
		symbols = append(symbols, s)
		if i%4 == 1 {
			f.Errors[s] = collector.ErrUnavailable
		}
	}

	report, err := NewAggregator(f).Run(context.Background(), symbols, model.Timeframe1w)
	require.NoError(t, err)
	assert.Equal(t, len(symbols), report.SuccessCount+report.FailureCount)
	assert.Equal(t, len(symbols)-3, report.SuccessCount)
	assert.Len(t, report.Results, report.SuccessCount)
	assert.Len(t, report.Failures, report.FailureCount)
}

func TestRun_ProgressNotifications(t *testing.T) {
	f := collector.NewMockFetcher(100)
	f.Errors["B/USDT"] = collector.ErrUnavailable
	obs := &recordingObserver{}

	symbols := []string{"A/USDT", "B/USDT", "C/USDT", "D/USDT"}
	report, err := NewAggregator(f, WithObservers(obs)).Run(context.Background(), symbols, model.Timeframe1d)
	require.NoError(t, err)

	require.Len(t, obs.progress, len(symbols))
	prev := 0.0
	for i, p := range obs.progress {
		assert.Equal(t, symbols[i], p.Symbol)
		assert.Equal(t, i+1, p.Processed)
		assert.Equal(t, len(symbols), p.Total)
		assert.GreaterOrEqual(t, p.Fraction, prev)
		assert.LessOrEqual(t, p.Fraction, 1.0)
		prev = p.Fraction
	}
	assert.Equal(t, 1.0, obs.progress[len(symbols)-1].Fraction)
	assert.Error(t, obs.progress[1].Err)
	assert.Nil(t, obs.progress[1].Result)
	assert.NotNil(t, obs.progress[0].Result)

	require.Len(t, obs.finished, 1)
	assert.Same(t, report, obs.finished[0])
}

func TestRun_WorkerPoolMatchesSequential(t *testing.T) {
	f := collector.NewMockFetcher(100)
	var symbols []string
	for i := 0; i < 21; i++ {
		s := fmt.Sprintf("COIN%d/USDT", i)
		symbols = append(symbols, s)
	}
	f.Errors["COIN3/USDT"] = collector.ErrUnavailable
	f.Errors["COIN17/USDT"] = collector.ErrUnavailable
	f.Series["COIN5/USDT"] = makeSeries(5, 5, 5, 5, 5) // no valid indicator

	seq, err := NewAggregator(f).Run(context.Background(), symbols, model.Timeframe1d)
	require.NoError(t, err)

	obs := &recordingObserver{}
	par, err := NewAggregator(f, WithWorkers(4), WithObservers(obs)).Run(context.Background(), symbols, model.Timeframe1d)
	require.NoError(t, err)

	assert.Equal(t, seq.Results, par.Results)
	assert.Equal(t, seq.Failures, par.Failures)
	assert.Equal(t, seq.SuccessCount, par.SuccessCount)
	assert.Equal(t, seq.FailureCount, par.FailureCount)
	require.Len(t, obs.progress, len(symbols))
	for i, p := range obs.progress {
		assert.Equal(t, i+1, p.Processed, "progress counters must be serialized")
	}
}

func TestRun_AbortBetweenSymbols(t *testing.T) {
	f := collector.NewMockFetcher(100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopAfterTwo := ProgressFunc(func(p Progress) {
		if p.Processed == 2 {
			cancel()
		}
	})
	symbols := []string{"A/USDT", "B/USDT", "C/USDT", "D/USDT", "E/USDT"}
	report, err := NewAggregator(f, WithObservers(stopAfterTwo)).Run(ctx, symbols, model.Timeframe1d)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, 2, report.Processed())
	assert.Equal(t, 2, report.SuccessCount+report.FailureCount)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 0, f.Calls("C/USDT"))
}

func TestRun_PanicDoesNotAbortBatch(t *testing.T) {
	f := collector.NewMockFetcher(100)
	fetcher := panicFetcher{Fetcher: f, symbol: "BOOM/USDT"}

	report, err := NewAggregator(fetcher).Run(context.Background(), []string{"BOOM/USDT", "BTC/USDT"}, model.Timeframe1d)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, string(ReasonProcessingError), report.Failures[0].Reason)
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	f := collector.NewMockFetcher(100)

	_, err := NewAggregator(f).Run(context.Background(), []string{"BTC/USDT"}, model.Timeframe("2h"))
	assert.ErrorIs(t, err, model.ErrInvalidTimeframe)

	_, err = NewAggregator(f, WithParams(Params{Period: 0, RecentWindow: 6, Limit: 10})).
		Run(context.Background(), []string{"BTC/USDT"}, model.Timeframe1d)
	assert.Error(t, err)
}
