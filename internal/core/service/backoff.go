package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

// BackoffPolicy controls retries of rate-limited exchanges.
type BackoffPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Multiplier grows the delay per retry. Values below 1 mean constant.
	Multiplier float64

	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultBackoffPolicy waits 5s and retries once.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxRetries: 1,
		BaseDelay:  5 * time.Second,
		Multiplier: 1,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay)
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			d *= p.Multiplier
			if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
				break
			}
		}
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// BackoffExchanger retries the wrapped Exchanger when it reports
// domain.ErrRateLimited. Any other error is returned immediately.
type BackoffExchanger struct {
	next    Exchanger
	policy  BackoffPolicy
	sleep   Sleeper
	logger  *slog.Logger
	metrics *metric.Registry
}

// WithBackoff wraps next with policy.
func WithBackoff(next Exchanger, policy BackoffPolicy) *BackoffExchanger {
	return &BackoffExchanger{
		next:   next,
		policy: policy,
		sleep:  SleepContext,
		logger: slog.Default(),
	}
}

// Instrument sets the logger and metrics registry and returns b.
func (b *BackoffExchanger) Instrument(l *slog.Logger, m *metric.Registry) *BackoffExchanger {
	if l != nil {
		b.logger = l
	}
	b.metrics = m
	return b
}

// Exchange implements Exchanger.
func (b *BackoffExchanger) Exchange(ctx context.Context, tuple domain.CredentialTuple) (domain.Token, error) {
	token, err := b.next.Exchange(ctx, tuple)
	for attempt := 1; attempt <= b.policy.MaxRetries && errors.Is(err, domain.ErrRateLimited); attempt++ {
		delay := b.policy.Delay(attempt)
		b.logger.Info("rate limited; retrying",
			"tuple", tuple,
			"attempt", attempt,
			"delay", delay)
		b.metrics.ObserveRetry()

		if serr := b.sleep(ctx, delay); serr != nil {
			return "", serr
		}
		token, err = b.next.Exchange(ctx, tuple)
	}
	return token, err
}

// RateLimitedExchanger waits on a token bucket before each exchange.
type RateLimitedExchanger struct {
	next    Exchanger
	limiter *rate.Limiter
}

// WithRateLimit wraps next so calls never exceed limiter's rate.
// A nil limiter disables limiting.
func WithRateLimit(next Exchanger, limiter *rate.Limiter) *RateLimitedExchanger {
	return &RateLimitedExchanger{next: next, limiter: limiter}
}

// Exchange implements Exchanger.
func (r *RateLimitedExchanger) Exchange(ctx context.Context, tuple domain.CredentialTuple) (domain.Token, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return r.next.Exchange(ctx, tuple)
}
