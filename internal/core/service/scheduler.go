package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yndnr/tokpool/internal/core/domain"
)

// DefaultInterval is the pause between scheduled cycles.
const DefaultInterval = 4 * time.Hour

// Scheduler repeatedly fetches a fresh credential list and runs it.
type Scheduler struct {
	Source      LineSource
	Runner      *BatchRunner
	Exchanger   Exchanger
	Sink        Sink
	Concurrency int
	Delay       time.Duration

	// Interval is the pause after each cycle. Zero means DefaultInterval.
	Interval time.Duration

	Logger *slog.Logger

	// Sleep overrides the pause between cycles. Nil means SleepContext.
	Sleep Sleeper
}

// RunOnce runs a single cycle. A source failure is logged and the cycle
// is treated as empty.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.RunSummary, error) {
	log := s.logger()

	lines, err := s.Source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("failed to fetch credential list", "error", err)
		lines = nil
	}

	runner := s.Runner
	if runner == nil {
		runner = NewBatchRunner(WithLogger(log))
	}
	return runner.RunLines(ctx, lines, s.Exchanger, s.Sink, s.Concurrency, s.Delay)
}

// Run loops RunOnce until ctx is cancelled. Invalid arguments stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Source == nil {
		return domain.ErrMissingArgument.WithDetails("source is required")
	}

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	log := s.logger()

	for cycle := 1; ; cycle++ {
		summary, err := s.RunOnce(ctx)
		switch {
		case err == nil:
			log.Info("cycle completed", "cycle", cycle, "summary", summary)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Info("scheduler stopped", "cycle", cycle)
			return nil
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrMissingArgument):
			return err
		default:
			log.Error("cycle failed", "cycle", cycle, "error", err)
		}

		log.Info("next cycle scheduled", "in", interval, "at", time.Now().Add(interval).Format(time.RFC3339))
		if err := sleep(ctx, interval); err != nil {
			log.Info("scheduler stopped", "cycle", cycle)
			return nil
		}
	}
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
