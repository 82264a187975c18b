package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/yndnr/tokpool/internal/core/domain"
)

// SaveTokenPath is the ingestion route of tokpool-server.
const SaveTokenPath = "/save-token"

// Inserter is the part of tokenstore.Store a StoreSink needs.
type Inserter interface {
	Insert(ctx context.Context, token domain.Token) (domain.InsertOutcome, error)
}

// StoreSink inserts tokens into a local store.
type StoreSink struct {
	store  Inserter
	logger *slog.Logger
}

// NewStoreSink wraps store. logger may be nil.
func NewStoreSink(store Inserter, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{store: store, logger: logger.With("component", "sink.store")}
}

// Accept implements service.Sink.
func (s *StoreSink) Accept(ctx context.Context, token domain.Token) error {
	outcome, err := s.store.Insert(ctx, token)
	if err != nil {
		return domain.ErrSinkFailed.WithCause(err)
	}
	s.logger.Debug("token accepted", "token", token, "outcome", outcome.String())
	return nil
}

// Poster issues a JSON POST for path relative to a base URL.
// *connection.HTTPClient satisfies it.
type Poster interface {
	Post(ctx context.Context, path string, body any) (*http.Response, error)
}

type saveTokenRequest struct {
	JWT string `json:"jwt"`
}

// HTTPSink posts tokens to a remote /save-token route.
type HTTPSink struct {
	client Poster
	path   string
}

// NewHTTPSink returns a sink posting through client.
func NewHTTPSink(client Poster) *HTTPSink {
	return &HTTPSink{client: client, path: SaveTokenPath}
}

// Accept implements service.Sink. Any 2xx answer, including
// "Token already exists", counts as delivered.
func (s *HTTPSink) Accept(ctx context.Context, token domain.Token) error {
	resp, err := s.client.Post(ctx, s.path, saveTokenRequest{JWT: token.String()})
	if err != nil {
		return domain.ErrSinkFailed.WithCause(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ErrSinkFailed.WithDetails(fmt.Sprintf("status %d", resp.StatusCode))
	}
	return nil
}
