package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/core/service"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
)

// TokenCounts defines the store sizes for benchmarking.
var TokenCounts = []int{100, 1000, 5000, 10000}

// SmallTokenCounts for quick benchmarks.
var SmallTokenCounts = []int{100, 1000}

// newToken returns a unique JWT-shaped token.
func newToken() domain.Token {
	return domain.Token("eyJhbGciOiJIUzI1NiJ9." + strings.ToLower(ulid.Make().String()) + ".c2lnbmF0dXJl")
}

// credentialLines returns n well-formed credential lines.
func credentialLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("user-%d:secret-%d:region-%d", i, i, i%4)
	}
	return lines
}

// newStore opens a store on a memory backend, closed at cleanup.
func newStore(b *testing.B) *tokenstore.Store {
	b.Helper()
	store, err := tokenstore.New(tokenstore.NewMemoryBackend(),
		tokenstore.WithLogger(logger.Discard()),
		tokenstore.WithSweepInterval(time.Hour),
	)
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

// prefillStore inserts count tokens and returns them.
func prefillStore(ctx context.Context, b *testing.B, store *tokenstore.Store, count int) []domain.Token {
	b.Helper()
	tokens := make([]domain.Token, count)
	for i := range tokens {
		tokens[i] = newToken()
		if _, err := store.Insert(ctx, tokens[i]); err != nil {
			b.Fatalf("prefill: %v", err)
		}
	}
	return tokens
}

// instantExchanger returns a token derived from the identifier.
var instantExchanger = service.ExchangerFunc(func(_ context.Context, t domain.CredentialTuple) (domain.Token, error) {
	return domain.Token("tok-" + t.Identifier), nil
})

// discardSink accepts every token.
var discardSink = service.SinkFunc(func(context.Context, domain.Token) error {
	return nil
})

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithTokenCounts runs a benchmark function with various store sizes.
func runWithTokenCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("tokens_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
