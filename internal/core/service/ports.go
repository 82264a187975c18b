package service

import (
	"context"

	"github.com/yndnr/tokpool/internal/core/domain"
)

// Exchanger turns one credential tuple into a bearer token.
//
// Implementations bound their own latency; the runner imposes no deadline.
// A rate-limited upstream should be reported as domain.ErrRateLimited so
// WithBackoff can retry it.
type Exchanger interface {
	Exchange(ctx context.Context, tuple domain.CredentialTuple) (domain.Token, error)
}

// Sink accepts a token for storage.
type Sink interface {
	Accept(ctx context.Context, token domain.Token) error
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(ctx context.Context, tuple domain.CredentialTuple) (domain.Token, error)

// Exchange implements Exchanger.
func (f ExchangerFunc) Exchange(ctx context.Context, tuple domain.CredentialTuple) (domain.Token, error) {
	return f(ctx, tuple)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, token domain.Token) error

// Accept implements Sink.
func (f SinkFunc) Accept(ctx context.Context, token domain.Token) error {
	return f(ctx, token)
}

// LineSource yields raw credential lines for one cycle.
type LineSource interface {
	Fetch(ctx context.Context) ([]string, error)
}
