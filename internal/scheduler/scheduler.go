// Package scheduler re-ingests the configured dataset on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/ingest"
)

// ErrNoSource is returned when a schedule is configured without a dataset.
var ErrNoSource = errors.New("scheduler: ingest source is required")

// Loader loads one dataset file.
type Loader interface {
	Load(ctx context.Context, path string) (ingest.Result, error)
}

// Config selects what to load and when.
type Config struct {
	Source   string
	Schedule string
	// RunOnStart loads the source once before the first scheduled run.
	RunOnStart bool
	// Timeout bounds a single run; zero means no bound.
	Timeout time.Duration
}

// Scheduler runs the loader on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	loader Loader
	logger *slog.Logger

	mu   sync.Mutex
	last Run
}

// Run describes the most recent load.
type Run struct {
	At     time.Time     `json:"at"`
	Result ingest.Result `json:"result"`
	Err    string        `json:"error,omitempty"`
}

// New validates cfg and prepares a scheduler. Schedules use the standard
// five-field syntax or descriptors such as @daily and @every 1h.
func New(cfg Config, loader Loader, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Source == "" {
		return nil, ErrNoSource
	}
	logger = infrastructure.WithComponent(logger, "scheduler")

	cronLogger := slogAdapter{logger: logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{cron: c, cfg: cfg, loader: loader, logger: logger}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid ingest schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running load to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.RunOnStart {
		s.RunNow(ctx)
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.RunNow(ctx) }); err != nil {
		return fmt.Errorf("register ingest job: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started",
		slog.String("schedule", s.cfg.Schedule),
		slog.String("source", s.cfg.Source),
		slog.Time("next_run", s.Next()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunNow loads the source immediately.
func (s *Scheduler) RunNow(ctx context.Context) (ingest.Result, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res, err := s.loader.Load(ctx, s.cfg.Source)

	run := Run{At: time.Now().UTC(), Result: res}
	if err != nil {
		run.Err = err.Error()
		s.logger.ErrorContext(ctx, "scheduled ingest failed",
			slog.String("source", s.cfg.Source),
			slog.String("error", err.Error()))
	} else {
		s.logger.InfoContext(ctx, "scheduled ingest finished",
			slog.Int("rows", res.Rows),
			slog.Int("dropped", res.Dropped))
	}

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()
	return res, err
}

// Last returns the most recent run; the zero Run when none has happened.
func (s *Scheduler) Last() Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Next returns the time of the next scheduled run, or the zero time before
// the schedule is started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// slogAdapter satisfies cron.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
