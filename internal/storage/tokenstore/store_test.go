package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, backend Backend, opts ...Option) *Store {
	t.Helper()
	base := []Option{WithSweepInterval(0), WithLogger(logger.Discard())}
	s, err := New(backend, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InsertThenDuplicate(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)

	outcome, err := s.Insert(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome)
	savesAfterFirst := backend.Saves()

	outcome, err = s.Insert(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyPresent, outcome)
	assert.Equal(t, savesAfterFirst, backend.Saves(), "duplicate must not rewrite the document")

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Count)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, domain.Token("tok-a"), snap.Records[0].Token)
}

func TestStore_RecordLifetime(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, NewMemoryBackend(), WithClock(clock.Now))

	_, err := s.Insert(ctx, "tok")
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	rec := snap.Records[0]
	assert.True(t, rec.CreatedAt.Equal(clock.Now()))
	assert.Equal(t, DefaultTTL, rec.ExpiresAt.Sub(rec.CreatedAt))
	assert.Equal(t, 3*time.Hour+30*time.Minute, s.TTL())
}

func TestStore_ExpiryWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, NewMemoryBackend(), WithClock(clock.Now), WithTTL(time.Hour))

	_, err := s.Insert(ctx, "T")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Contains("T"))

	clock.Advance(2 * time.Minute)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Contains("T"))
	assert.Equal(t, 0, snap.Count)
}

func TestStore_ExpiresExactlyAtDeadline(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, NewMemoryBackend(), WithClock(clock.Now), WithTTL(time.Minute))

	_, err := s.Insert(ctx, "T")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Count)
}

func TestStore_ReinsertAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, NewMemoryBackend(), WithClock(clock.Now), WithTTL(time.Minute))

	_, err := s.Insert(ctx, "T")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	outcome, err := s.Insert(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.True(t, snap.Records[0].CreatedAt.Equal(clock.Now()))
}

func TestStore_ConcurrentDistinctInserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := s.Insert(ctx, domain.Token(fmt.Sprintf("tok-%03d", i)))
			if err == nil && outcome != domain.Inserted {
				err = fmt.Errorf("tok-%03d: outcome %s", i, outcome)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, snap.Count)
	for i := 0; i < n; i++ {
		assert.True(t, snap.Contains(domain.Token(fmt.Sprintf("tok-%03d", i))))
	}
}

func TestStore_ConcurrentSameToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.Insert(ctx, "same")
			assert.NoError(t, err)
			if outcome == domain.Inserted {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Count)
}

func TestStore_SnapshotPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	for _, tok := range []domain.Token{"c", "a", "b"} {
		_, err := s.Insert(ctx, tok)
		require.NoError(t, err)
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	got := make([]domain.Token, 0, len(snap.Records))
	for _, r := range snap.Records {
		got = append(got, r.Token)
	}
	assert.Equal(t, []domain.Token{"c", "a", "b"}, got)
}

func TestStore_RecoversTruncatedDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	truncated := []byte(`{"count":1,"tokens":[{"token":"old","createdAt":"2025-03-01T12:00:00.000Z","expiresAt":"2025-03-01T15:30:00.000Z"}`)
	backend.Set(truncated)
	s := newTestStore(t, backend, WithClock(newFakeClock().Now))

	outcome, err := s.Insert(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome)

	backups := backend.Backups()
	require.Len(t, backups, 1)
	for name, raw := range backups {
		assert.True(t, strings.HasPrefix(name, "tokens_backup_"))
		assert.Equal(t, truncated, raw)
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Contains("new"))

	var persisted domain.TokenStoreSnapshot
	require.NoError(t, json.Unmarshal(backend.Data(), &persisted))
	assert.Equal(t, snap.Count, persisted.Count)
}

func TestStore_RecoversWrappedDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Set([]byte(`garbage{"count":7,"tokens":[{"token":"kept","createdAt":"2025-03-01T12:00:00.000Z","expiresAt":"2025-03-01T15:30:00.000Z"}]}trailing`))
	s := newTestStore(t, backend, WithClock(newFakeClock().Now))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Count, "count is recomputed from records")
	assert.True(t, snap.Contains("kept"))
	assert.Len(t, backend.Backups(), 1)

	var persisted domain.TokenStoreSnapshot
	require.NoError(t, json.Unmarshal(backend.Data(), &persisted), "cleaned document is persisted")
	assert.Equal(t, 1, persisted.Count)
}

func TestStore_GarbageDocumentResets(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Set([]byte("not json at all"))
	s := newTestStore(t, backend)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Count)
	assert.Len(t, backend.Backups(), 1, "unrecoverable content is still backed up")
}

func TestStore_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Set([]byte("  \n"))
	s := newTestStore(t, backend)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Count)
	assert.Empty(t, backend.Backups())
}

func TestStore_DropsDuplicateRecordsOnLoad(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Set([]byte(`{"count":2,"tokens":[
		{"token":"x","createdAt":"2025-03-01T12:00:00.000Z","expiresAt":"2025-03-01T15:30:00.000Z"},
		{"token":"x","createdAt":"2025-03-01T12:01:00.000Z","expiresAt":"2025-03-01T15:31:00.000Z"}]}`))
	s := newTestStore(t, backend, WithClock(newFakeClock().Now))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, 0, snap.Records[0].CreatedAt.Minute())
}

func TestStore_BackendUnavailable(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)

	backend.FailWith(errors.New("disk gone"), nil)
	_, err := s.Insert(ctx, "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	backend.FailWith(nil, errors.New("read-only"))
	_, err = s.Insert(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	backend.FailWith(nil, nil)
	outcome, err := s.Insert(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome, "failed insert left no state behind")
}

func TestStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend()
	s := newTestStore(t, backend, WithClock(clock.Now), WithTTL(time.Hour))

	_, err := s.Insert(ctx, "early")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = s.Insert(ctx, "late")
	require.NoError(t, err)

	saves := backend.Saves()
	removed, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, saves, backend.Saves(), "no-op sweep must not write")

	clock.Advance(45 * time.Minute)
	removed, err = s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, saves+1, backend.Saves())

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Count)
	assert.True(t, snap.Contains("late"))
}

func TestStore_BackgroundSweeper(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend()
	s, err := New(backend,
		WithClock(clock.Now),
		WithTTL(time.Minute),
		WithSweepInterval(10*time.Millisecond),
		WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(ctx, "T")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool {
		var doc domain.TokenStoreSnapshot
		if err := json.Unmarshal(backend.Data(), &doc); err != nil {
			return false
		}
		return doc.Count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStore_Closed(t *testing.T) {
	s, err := New(NewMemoryBackend(), WithSweepInterval(0), WithLogger(logger.Discard()))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Insert(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	_, err = s.Snapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}

func TestStore_InvalidArguments(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, domain.ErrMissingArgument)

	s := newTestStore(t, NewMemoryBackend())
	_, err = s.Insert(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStore_CancelledBeforeAccept(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())

	// Hold the worker so the next submit cannot be accepted.
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.submit(context.Background(), func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Insert(ctx, "tok")
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
