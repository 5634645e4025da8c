package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
)

// Scheduler runs an initial refresh and then refreshes on a cron schedule.
// A run that is still in progress when the next tick fires causes that tick
// to be skipped.
type Scheduler struct {
	refresher *Refresher
	schedule  string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewScheduler creates a Scheduler. An empty schedule performs only the
// initial refresh; later refreshes are manual.
func NewScheduler(refresher *Refresher, schedule string, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		schedule:  schedule,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run blocks until ctx is cancelled, then waits for an in-flight refresh to
// finish.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if s.schedule != "" {
		if _, err := c.AddFunc(s.schedule, func() { s.refresh(ctx) }); err != nil {
			return fmt.Errorf("add refresh schedule %q: %w", s.schedule, err)
		}
	}

	s.logger.Info("scheduler started", "mode", s.refresher.Mode(), "schedule", s.schedule)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	s.refresh(ctx)
	c.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
