package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

// Defaults for batch runs.
const (
	DefaultConcurrency = 75
	DefaultBatchDelay  = 5 * time.Second
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) BatchOption {
	return func(r *BatchRunner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables run metrics.
func WithMetrics(m *metric.Registry) BatchOption {
	return func(r *BatchRunner) {
		r.metrics = m
	}
}

// WithSleeper replaces the inter-window pause, mainly for tests.
func WithSleeper(s Sleeper) BatchOption {
	return func(r *BatchRunner) {
		if s != nil {
			r.sleep = s
		}
	}
}

// BatchRunner drives windowed, bounded-parallel exchanges.
// A BatchRunner holds no per-run state and may be shared.
type BatchRunner struct {
	logger  *slog.Logger
	metrics *metric.Registry
	sleep   Sleeper
}

// NewBatchRunner creates a BatchRunner.
func NewBatchRunner(opts ...BatchOption) *BatchRunner {
	r := &BatchRunner{
		logger: slog.Default(),
		sleep:  SleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// entry is one input position: a tuple or the reason it is malformed.
type entry struct {
	index int
	tuple domain.CredentialTuple
	err   error
}

// PlanWindows splits items into consecutive windows of at most size
// elements, preserving order. It returns nil for empty input or size <= 0.
func PlanWindows[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	windows := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		windows = append(windows, items[start:end:end])
	}
	return windows
}

// RunAll exchanges every valid tuple and forwards the tokens to sink.
//
// Windows run strictly in order; within a window all exchanges run
// concurrently and must settle before the next window starts. delay is
// applied between windows, never after the last one.
//
// Per-entry failures are counted in the summary and never abort the run.
// An error is returned only for invalid arguments or when ctx is cancelled,
// in which case the summary covers the windows that completed.
func (r *BatchRunner) RunAll(ctx context.Context, tuples []domain.CredentialTuple, ex Exchanger, sink Sink, concurrency int, delay time.Duration) (*domain.RunSummary, error) {
	entries := make([]entry, len(tuples))
	for i, t := range tuples {
		entries[i] = entry{index: i, tuple: t, err: t.Validate()}
	}
	return r.run(ctx, entries, ex, sink, concurrency, delay)
}

// RunLines parses raw "identifier:secret:region" lines and runs them like
// RunAll. Blank lines are dropped; malformed lines count as Malformed in the
// window they fall into.
func (r *BatchRunner) RunLines(ctx context.Context, lines []string, ex Exchanger, sink Sink, concurrency int, delay time.Duration) (*domain.RunSummary, error) {
	entries := make([]entry, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		t, err := domain.ParseCredentialLine(line)
		entries = append(entries, entry{index: i, tuple: t, err: err})
	}
	return r.run(ctx, entries, ex, sink, concurrency, delay)
}

func (r *BatchRunner) run(ctx context.Context, entries []entry, ex Exchanger, sink Sink, concurrency int, delay time.Duration) (*domain.RunSummary, error) {
	if ex == nil || sink == nil {
		return nil, domain.ErrMissingArgument.WithDetails("exchanger and sink are required")
	}
	if concurrency <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("concurrency must be positive, got %d", concurrency))
	}
	if delay < 0 {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("delay must not be negative, got %s", delay))
	}

	summary := &domain.RunSummary{RunID: ulid.Make().String()}
	ctx = logger.WithRunID(ctx, summary.RunID)
	log := r.logger.With("run_id", summary.RunID)

	if len(entries) == 0 {
		log.Info("no tuples to process")
		return summary, nil
	}

	start := time.Now()
	defer func() {
		summary.Duration = time.Since(start)
		r.metrics.ObserveRun(summary.Duration.Seconds())
	}()

	windows := PlanWindows(entries, concurrency)
	log.Info("run started",
		"entries", len(entries),
		"windows", len(windows),
		"concurrency", concurrency,
		"delay", delay)

	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", "completed_windows", i, "error", err)
			return summary, err
		}

		r.runWindow(ctx, log, window, ex, sink, summary)
		summary.Windows++
		r.metrics.ObserveWindow()

		log.Info("window completed",
			"window", i+1,
			"of", len(windows),
			"attempted", summary.Attempted,
			"succeeded", summary.Succeeded)

		if i < len(windows)-1 && delay > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				log.Warn("run cancelled during pause", "completed_windows", i+1, "error", err)
				return summary, err
			}
		}
	}

	log.Info("run completed", "summary", summary)
	return summary, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeExchangeFailed
	outcomeSinkFailed
)

func (r *BatchRunner) runWindow(ctx context.Context, log *slog.Logger, window []entry, ex Exchanger, sink Sink, summary *domain.RunSummary) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	for _, e := range window {
		if e.err != nil {
			summary.Malformed++
			r.metrics.ObserveTuple("malformed")
			log.Warn("skipping malformed credential", "entry", e.index, "error", e.err)
			continue
		}

		summary.Attempted++
		// Goroutines never return an error so one failure cannot
		// cancel or short-circuit its siblings.
		g.Go(func() error {
			res := r.process(ctx, log, e, ex, sink)

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeSucceeded:
				summary.Succeeded++
				r.metrics.ObserveTuple("succeeded")
			case outcomeExchangeFailed:
				summary.ExchangeFailed++
				r.metrics.ObserveTuple("exchange_failed")
			case outcomeSinkFailed:
				summary.SinkFailed++
				r.metrics.ObserveTuple("sink_failed")
				r.metrics.ObserveSinkFailure()
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (r *BatchRunner) process(ctx context.Context, log *slog.Logger, e entry, ex Exchanger, sink Sink) (res outcome) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("exchange panicked", "entry", e.index, "tuple", e.tuple, "panic", p)
			res = outcomeExchangeFailed
		}
	}()

	token, err := ex.Exchange(ctx, e.tuple)
	if err == nil && token == "" {
		err = domain.ErrExchangeFailed.WithDetails("empty token")
	}
	if err != nil {
		log.Warn("exchange failed", "entry", e.index, "tuple", e.tuple, "error", err)
		return outcomeExchangeFailed
	}

	if err := sink.Accept(ctx, token); err != nil {
		log.Warn("sink rejected token", "entry", e.index, "tuple", e.tuple, "token", token, "error", err)
		return outcomeSinkFailed
	}

	log.Debug("token forwarded", "entry", e.index, "tuple", e.tuple, "token", token)
	return outcomeSucceeded
}
