package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokpool/internal/cli/connection"
	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/core/service"
	"github.com/yndnr/tokpool/internal/exchange"
	"github.com/yndnr/tokpool/internal/server/httpserver"
	"github.com/yndnr/tokpool/internal/server/httpserver/handler"
	"github.com/yndnr/tokpool/internal/sink"
	"github.com/yndnr/tokpool/internal/source"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

// fakeClock is a settable store clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// tokenServer starts a tokpool HTTP server on a file-backed store.
func tokenServer(t *testing.T, clock *fakeClock) (*httptest.Server, *metric.Registry) {
	t.Helper()

	backend, err := tokenstore.NewFileBackend(t.TempDir() + "/tokens.json")
	require.NoError(t, err)

	reg := metric.NewRegistry()
	store, err := tokenstore.New(backend,
		tokenstore.WithTTL(time.Hour),
		tokenstore.WithClock(clock.Now),
		tokenstore.WithSweepInterval(time.Hour),
		tokenstore.WithLogger(logger.Discard()),
		tokenstore.WithMetrics(reg),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := httpserver.DefaultRouterConfig()
	cfg.Handler = handler.New(store, logger.Discard())
	cfg.Metrics = reg
	cfg.Logger = logger.Discard()
	cfg.AdminToken = "admin-secret"

	srv := httptest.NewServer(httpserver.NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv, reg
}

// oauthServer issues one token per username; "locked" users are refused.
func oauthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		user := r.PostForm.Get("username")
		w.Header().Set("Content-Type", "application/json")
		if user == "locked" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "eyJhbGciOiJIUzI1NiJ9." + user + "." + r.PostForm.Get("region"),
			"token_type":   "bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func listTokens(t *testing.T, client *connection.HTTPClient) *domain.TokenStoreSnapshot {
	t.Helper()
	resp, err := client.Get(context.Background(), "/tokens")
	require.NoError(t, err)
	var snap domain.TokenStoreSnapshot
	require.NoError(t, connection.ParseResponse(resp, &snap))
	return &snap
}

func TestPipeline_RunnerToServer(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokSrv, reg := tokenServer(t, clock)
	authSrv := oauthServer(t)

	lists := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("alice:pw:eu\nbob:pw:us\nlocked:pw:eu\nbroken-line\nalice:pw:eu\n"))
	}))
	t.Cleanup(lists.Close)

	ex, err := exchange.NewPasswordExchanger(exchange.Config{
		TokenURL:    authSrv.URL,
		ClientID:    "tokpool",
		RegionParam: "region",
	})
	require.NoError(t, err)

	client := connection.NewHTTPClient(tokSrv.URL, "admin-secret")
	sched := &service.Scheduler{
		Source:      source.NewHTTPSource(connection.NewHTTPClient(lists.URL, ""), ""),
		Runner:      service.NewBatchRunner(service.WithLogger(logger.Discard()), service.WithMetrics(reg)),
		Exchanger:   ex,
		Sink:        sink.NewHTTPSink(client),
		Concurrency: 2,
		Logger:      logger.Discard(),
	}

	summary, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Attempted)
	assert.Equal(t, 3, summary.Succeeded, "alice twice and bob")
	assert.Equal(t, 1, summary.ExchangeFailed)
	assert.Equal(t, 1, summary.Malformed)
	assert.Equal(t, 3, summary.Windows)

	snap := listTokens(t, client)
	require.Equal(t, 2, snap.Count, "duplicate alice token stored once")
	assert.True(t, snap.Contains("eyJhbGciOiJIUzI1NiJ9.alice.eu"))
	assert.True(t, snap.Contains("eyJhbGciOiJIUzI1NiJ9.bob.us"))

	// A second cycle re-delivers the same tokens without growing the store.
	_, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, listTokens(t, client).Count)

	// Past the TTL the admin sweep removes everything.
	clock.Advance(2 * time.Hour)
	resp, err := client.Post(ctx, "/admin/v1/gc/trigger", nil)
	require.NoError(t, err)
	var gc handler.GCTriggerResponse
	require.NoError(t, connection.ParseEnvelope(resp, &gc))
	assert.Equal(t, 2, gc.CleanedCount)
	assert.Zero(t, listTokens(t, client).Count)
}

func TestPipeline_StoreSinkMatchesHTTPSink(t *testing.T) {
	ctx := context.Background()
	authSrv := oauthServer(t)

	store, err := tokenstore.New(tokenstore.NewMemoryBackend(), tokenstore.WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer store.Close()

	ex, err := exchange.NewPasswordExchanger(exchange.Config{TokenURL: authSrv.URL})
	require.NoError(t, err)

	runner := service.NewBatchRunner(service.WithLogger(logger.Discard()))
	lines := []string{"alice:pw:eu", "bob:pw:us", "alice:pw:eu"}
	summary, err := runner.RunLines(ctx, lines, ex, sink.NewStoreSink(store, logger.Discard()), 75, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count)
}
