package metrics

import (
	"BBWPScreener/internal/model"
	"BBWPScreener/internal/screener"

	"github.com/prometheus/client_golang/prometheus"
)

const outcomeSuccess = "success"

// Metrics holds the screener's Prometheus collectors. It is a screener.Observer.
type Metrics struct {
	SymbolsProcessed *prometheus.CounterVec   // labels: timeframe, outcome
	BatchDuration    *prometheus.HistogramVec // labels: timeframe
	LastValue        *prometheus.GaugeVec     // labels: symbol, timeframe
	BatchSuccess     *prometheus.GaugeVec     // labels: timeframe
	BatchFailure     *prometheus.GaugeVec     // labels: timeframe
	BatchesTotal     *prometheus.CounterVec   // labels: timeframe, status
}

// NewMetrics registers the collectors with reg, or the default registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SymbolsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbwp_symbols_processed_total",
			Help: "Symbols processed, by outcome (success or failure reason)",
		}, []string{"timeframe", "outcome"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bbwp_batch_duration_seconds",
			Help:    "Wall time of a full universe scan",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"timeframe"}),
		LastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bbwp_last_value",
			Help: "Most recent BBWP value per symbol",
		}, []string{"symbol", "timeframe"}),
		BatchSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bbwp_batch_success",
			Help: "Successful symbols in the last batch",
		}, []string{"timeframe"}),
		BatchFailure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bbwp_batch_failure",
			Help: "Failed symbols in the last batch",
		}, []string{"timeframe"}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbwp_batches_total",
			Help: "Finished batches (ok, no_data, aborted)",
		}, []string{"timeframe", "status"}),
	}

	reg.MustRegister(
		m.SymbolsProcessed,
		m.BatchDuration,
		m.LastValue,
		m.BatchSuccess,
		m.BatchFailure,
		m.BatchesTotal,
	)
	return m
}

func (m *Metrics) OnSymbolProcessed(p screener.Progress) {
	outcome := outcomeSuccess
	if p.Err != nil {
		outcome = string(screener.ReasonOf(p.Err))
	}
	m.SymbolsProcessed.WithLabelValues(p.Timeframe.String(), outcome).Inc()
}

func (m *Metrics) OnBatchFinished(r *model.BatchReport) {
	tf := r.Timeframe.String()
	m.BatchDuration.WithLabelValues(tf).Observe(r.Duration().Seconds())
	m.BatchSuccess.WithLabelValues(tf).Set(float64(r.SuccessCount))
	m.BatchFailure.WithLabelValues(tf).Set(float64(r.FailureCount))
	m.BatchesTotal.WithLabelValues(tf, batchStatus(r)).Inc()

	for _, res := range r.Results {
		if res.HasLast {
			m.LastValue.WithLabelValues(res.Symbol, tf).Set(res.LastValue)
		} else {
			m.LastValue.DeleteLabelValues(res.Symbol, tf)
		}
	}
	// stale values would otherwise outlive a failing symbol
	for _, f := range r.Failures {
		m.LastValue.DeleteLabelValues(f.Symbol, tf)
	}
}

func batchStatus(r *model.BatchReport) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.NoData():
		return "no_data"
	}
	return "ok"
}
