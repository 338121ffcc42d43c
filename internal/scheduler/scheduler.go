package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"BBWPScreener/internal/model"
	"BBWPScreener/internal/notifier"
	"BBWPScreener/internal/screener"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrBusy is returned when a scan for the same timeframe is already running.
var ErrBusy = errors.New("scan already running")

// DefaultSchedules run shortly after each candle close (UTC, with seconds).
var DefaultSchedules = map[model.Timeframe]string{
	model.Timeframe4h: "0 5 0/4 * * *",
	model.Timeframe1d: "0 10 0 * * *",
	model.Timeframe1w: "0 15 0 * * 1",
}

// Runner executes one batch. *screener.Aggregator satisfies it.
type Runner interface {
	Run(ctx context.Context, symbols []string, tf model.Timeframe) (*model.BatchReport, error)
}

// Sender delivers a formatted report. *notifier.TelegramNotifier satisfies it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the periodic scans and chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier Sender
	Symbols  []string
	Default  model.Timeframe
	Format   notifier.FormatOptions
	Ctx      context.Context

	logger *zap.Logger
	tasks  sync.WaitGroup
	mu     sync.Mutex
	locks  map[model.Timeframe]*sync.Mutex
	last   map[model.Timeframe]*model.BatchReport
}

// NewScheduler creates a new Scheduler. sender may be nil to skip notifications.
func NewScheduler(ctx context.Context, runner Runner, sender Sender, symbols []string, def model.Timeframe, format notifier.FormatOptions, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		Runner:   runner,
		Notifier: sender,
		Symbols:  symbols,
		Default:  def,
		Format:   format,
		Ctx:      ctx,
		logger:   logger,
		locks:    map[model.Timeframe]*sync.Mutex{},
		last:     map[model.Timeframe]*model.BatchReport{},
	}
}

// RegisterAll adds one scan job per configured timeframe.
func (s *Scheduler) RegisterAll(schedules map[model.Timeframe]string) error {
	tfs := make([]model.Timeframe, 0, len(schedules))
	for tf := range schedules {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i].Duration() < tfs[j].Duration() })

	for _, tf := range tfs {
		if !tf.Valid() {
			return fmt.Errorf("register %q scan: %w", tf, model.ErrInvalidTimeframe)
		}
		spec := schedules[tf]
		if spec == "" {
			continue
		}
		if _, err := s.Cron.AddFunc(spec, func() { s.Scan(tf) }); err != nil {
			return fmt.Errorf("register %s scan: %w", tf, err)
		}
		s.logger.Info("scan scheduled", zap.String("timeframe", tf.String()), zap.String("cron", spec))
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Go runs fn in a goroutine that Stop waits for. Call it before Stop.
func (s *Scheduler) Go(fn func()) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn()
	}()
}

// Stop stops the cron scheduler and waits for running jobs and tasks started with Go.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.tasks.Wait()
	s.logger.Info("scheduler stopped")
}

// Scan runs RunNow and logs a failure instead of returning it.
func (s *Scheduler) Scan(tf model.Timeframe) {
	if _, err := s.RunNow(tf); err != nil && !errors.Is(err, screener.ErrGlobalEmptyResult) {
		s.logger.Error("scheduled scan failed", zap.String("timeframe", tf.String()), zap.Error(err))
	}
}

func (s *Scheduler) lockFor(tf model.Timeframe) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tf]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tf] = l
	}
	return l
}

// RunNow executes one scan immediately (manual trigger / RUN_ON_START) and sends the report.
func (s *Scheduler) RunNow(tf model.Timeframe) (*model.BatchReport, error) {
	l := s.lockFor(tf)
	if !l.TryLock() {
		return nil, fmt.Errorf("%s: %w", tf, ErrBusy)
	}
	defer l.Unlock()

	s.logger.Info("running scan", zap.String("timeframe", tf.String()))
	report, err := s.Runner.Run(s.Ctx, s.Symbols, tf)
	if report == nil {
		s.trySend(fmt.Sprintf("❌ %s scan failed: %v", tf, err))
		return nil, err
	}

	s.mu.Lock()
	s.last[tf] = report
	s.mu.Unlock()

	s.trySend(notifier.FormatBatchReport(report, s.Format))
	return report, err
}

// Last returns the most recent report for tf.
func (s *Scheduler) Last(tf model.Timeframe) (*model.BatchReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[tf]
	return r, ok
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, text string) string {
	cmd, args := notifier.ParseCommand(text)
	switch cmd {
	case "/scan":
		tf := s.Default
		if len(args) > 0 {
			parsed, err := model.ParseTimeframe(args[0])
			if err != nil {
				return fmt.Sprintf("Unknown timeframe %q, use 4h, 1d or 1w.", args[0])
			}
			tf = parsed
		}
		if _, err := s.RunNow(tf); errors.Is(err, ErrBusy) {
			return fmt.Sprintf("A %s scan is already running.", tf)
		}
		// the report itself has been sent
		return ""
	case "/status":
		return s.formatStatus()
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) formatStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("📋 <b>Last scans</b>\n\n")
	if len(s.last) == 0 {
		b.WriteString("No scan has run yet.\n")
		return b.String()
	}
	for _, tf := range model.Timeframes {
		r, ok := s.last[tf]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %d ok, %d failed at %s\n",
			tf, r.SuccessCount, r.FailureCount, r.FinishedAt.UTC().Format("2006-01-02 15:04")))
	}
	return b.String()
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
