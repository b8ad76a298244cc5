// Package scheduler triggers periodic rebuilds on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work run on every tick.
type Job func(ctx context.Context)

// Scheduler runs a Job on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New parses spec (standard five fields or a descriptor such as "@every 6h")
// in timezone. An empty timezone means UTC.
func New(spec, timezone string, job Job) (*Scheduler, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	logger := slog.Default().With("component", "scheduler")
	cl := cronLogger{logger: logger}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		spec:   spec,
		job:    job,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.logger.Info("scheduled rebuild starting", "spec", s.spec)
	s.job(s.ctx)
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec, "next", s.Next())
}

// Next returns the next activation time, or zero if not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts further ticks, cancels the running job's context and waits for
// it to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
