// Package scheduler triggers the pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
)

// Job is the work the scheduler runs.
type Job func(ctx context.Context) error

// Scheduler runs a job on its own goroutine at cron times.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	spec    string
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses the schedule and registers job. Overlapping triggers are
// skipped while a previous run is still going.
func New(cfg config.SchedulerConfig, job Job, logger *slog.Logger) (*Scheduler, error) {
	loc := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		spec:   cfg.Spec,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)

	var err error
	s.entry, err = s.cron.AddFunc(cfg.Spec, func() {
		start := time.Now()
		logger.Info("scheduled pipeline run starting", "spec", cfg.Spec)
		if err := job(s.ctx); err != nil {
			logger.Error("scheduled pipeline run failed", "error", err, "duration", time.Since(start))
			return
		}
		logger.Info("scheduled pipeline run finished", "duration", time.Since(start))
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec, "next", s.Next())
}

// Stop stops triggering new runs, cancels a running job and waits for it
// to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next trigger time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// NextAfter returns the trigger following t under spec in loc.
func NextAfter(spec string, loc *time.Location, t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t.In(loc)), nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
