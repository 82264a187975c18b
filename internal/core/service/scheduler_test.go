package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
)

type staticSource struct {
	lines []string
	err   error
	calls atomic.Int32
}

func (s *staticSource) Fetch(context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.lines, s.err
}

func TestScheduler_RunOnce(t *testing.T) {
	sink := &recordingSink{}
	s := &Scheduler{
		Source:      &staticSource{lines: []string{"alice:pw:US", "broken"}},
		Runner:      newTestRunner(nil),
		Exchanger:   echoExchanger,
		Sink:        sink,
		Concurrency: 2,
		Logger:      logger.Discard(),
	}

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Malformed)
}

func TestScheduler_RunOnce_SourceFailure(t *testing.T) {
	s := &Scheduler{
		Source:      &staticSource{err: errors.New("unreachable")},
		Runner:      newTestRunner(nil),
		Exchanger:   echoExchanger,
		Sink:        &recordingSink{},
		Concurrency: 2,
		Logger:      logger.Discard(),
	}

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Empty())
}

func TestScheduler_Run(t *testing.T) {
	src := &staticSource{lines: []string{"alice:pw:US"}}
	var pauses []time.Duration
	s := &Scheduler{
		Source:      src,
		Runner:      newTestRunner(nil),
		Exchanger:   echoExchanger,
		Sink:        &recordingSink{},
		Concurrency: 1,
		Logger:      logger.Discard(),
		Sleep: func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			if len(pauses) == 3 {
				return context.Canceled
			}
			return nil
		},
	}

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval, DefaultInterval}, pauses)
}

func TestScheduler_RunInvalidConfig(t *testing.T) {
	s := &Scheduler{
		Source:      &staticSource{lines: []string{"alice:pw:US"}},
		Runner:      newTestRunner(nil),
		Exchanger:   echoExchanger,
		Sink:        &recordingSink{},
		Concurrency: 0,
		Logger:      logger.Discard(),
	}
	err := s.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = (&Scheduler{}).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrMissingArgument)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Scheduler{
		Source:      &staticSource{lines: []string{"alice:pw:US"}},
		Runner:      newTestRunner(nil),
		Exchanger:   echoExchanger,
		Sink:        &recordingSink{},
		Concurrency: 1,
		Logger:      logger.Discard(),
	}
	assert.NoError(t, s.Run(ctx))
}
