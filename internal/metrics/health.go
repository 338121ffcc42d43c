package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"BBWPScreener/internal/model"
	"BBWPScreener/internal/screener"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type runStatus struct {
	RunID    string    `json:"run_id"`
	Finished time.Time `json:"finished_at"`
	Success  int       `json:"success"`
	Failure  int       `json:"failure"`
	NoData   bool      `json:"no_data"`
	Aborted  bool      `json:"aborted"`
}

// HealthStatus tracks the last batch per timeframe and dependency probes.
// It is a screener.Observer.
type HealthStatus struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastRuns  map[model.Timeframe]runStatus
	checks    map[string]CheckFunc
	timeout   time.Duration
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		startedAt: time.Now(),
		lastRuns:  map[model.Timeframe]runStatus{},
		checks:    map[string]CheckFunc{},
		timeout:   3 * time.Second,
	}
}

// AddCheck registers a dependency probe run on every /healthz request.
func (h *HealthStatus) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	h.checks[name] = fn
	h.mu.Unlock()
}

func (h *HealthStatus) OnSymbolProcessed(screener.Progress) {}

func (h *HealthStatus) OnBatchFinished(r *model.BatchReport) {
	h.mu.Lock()
	h.lastRuns[r.Timeframe] = runStatus{
		RunID:    r.RunID,
		Finished: r.FinishedAt,
		Success:  r.SuccessCount,
		Failure:  r.FailureCount,
		NoData:   r.NoData(),
		Aborted:  r.Aborted,
	}
	h.mu.Unlock()
}

type healthResponse struct {
	Status   string               `json:"status"`
	Uptime   string               `json:"uptime"`
	Checks   map[string]string    `json:"checks,omitempty"`
	LastRuns map[string]runStatus `json:"last_runs,omitempty"`
}

// ServeHTTP handles /healthz. A failing probe makes the service unhealthy;
// a last batch without data only degrades it.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	resp := healthResponse{
		Status:   "healthy",
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		LastRuns: make(map[string]runStatus, len(h.lastRuns)),
	}
	for tf, run := range h.lastRuns {
		resp.LastRuns[tf.String()] = run
		if run.NoData {
			resp.Status = "degraded"
		}
	}
	timeout := h.timeout
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if len(checks) > 0 {
		resp.Checks = make(map[string]string, len(checks))
	}
	for name, fn := range checks {
		if err := fn(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
