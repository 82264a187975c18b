package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

const (
	// DefaultTTL is how long an inserted token stays live.
	DefaultTTL = 3*time.Hour + 30*time.Minute

	// DefaultSweepInterval is the period of the background expiry sweep.
	DefaultSweepInterval = 15 * time.Minute
)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the record lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables store metrics.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithSweepInterval sets the background sweep period; zero disables the sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.sweepInterval = d
		}
	}
}

// request is one queued operation.
type request struct {
	fn   func()
	done chan struct{}
}

// Store is the deduplicating, expiring token store.
//
// All operations are executed one at a time, in the order they were
// accepted, by a single worker goroutine started by New.
type Store struct {
	backend       Backend
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metric.Registry

	requests  chan request
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a Store over backend and starts its worker and sweeper.
func New(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, domain.ErrMissingArgument.WithDetails("backend is required")
	}

	s := &Store{
		backend:       backend,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        slog.Default(),
		requests:      make(chan request),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tokenstore")

	s.wg.Add(1)
	go s.run()

	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}

	return s, nil
}

// TTL returns the configured record lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Insert adds token unless a live record for it already exists.
func (s *Store) Insert(ctx context.Context, token domain.Token) (domain.InsertOutcome, error) {
	if token == "" {
		return 0, domain.ErrInvalidArgument.WithDetails("token is empty")
	}

	var (
		outcome domain.InsertOutcome
		err     error
	)
	if qerr := s.submit(ctx, func() {
		outcome, err = s.insert(context.WithoutCancel(ctx), token)
	}); qerr != nil {
		return 0, qerr
	}
	return outcome, err
}

// Snapshot returns the live records in insertion order.
// Expired records are removed from persisted state as a side effect.
func (s *Store) Snapshot(ctx context.Context) (*domain.TokenStoreSnapshot, error) {
	var (
		snap *domain.TokenStoreSnapshot
		err  error
	)
	if qerr := s.submit(ctx, func() {
		snap, err = s.snapshot(context.WithoutCancel(ctx))
	}); qerr != nil {
		return nil, qerr
	}
	return snap, err
}

// SweepExpired removes expired records and persists only if something changed.
// It returns how many records were removed.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	var (
		removed int
		err     error
	)
	if qerr := s.submit(ctx, func() {
		removed, err = s.sweep(context.WithoutCancel(ctx))
	}); qerr != nil {
		return 0, qerr
	}
	return removed, err
}

// Close stops the sweeper and worker, waits for an in-flight operation
// to finish and closes the backend. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.closeErr = s.backend.Close()
	})
	return s.closeErr
}

// submit hands fn to the worker and waits for it to complete.
// Once accepted, fn always runs to completion even if ctx is cancelled.
func (s *Store) submit(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case <-s.stopCh:
		return domain.ErrStoreClosed
	default:
	}
	select {
	case s.requests <- req:
	case <-s.stopCh:
		return domain.ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

func (s *Store) run() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.requests:
			req.fn()
			close(req.done)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := s.SweepExpired(context.Background())
			if err != nil {
				if !errors.Is(err, domain.ErrStoreClosed) {
					s.logger.Error("expiry sweep failed", "error", err)
				}
				continue
			}
			if removed > 0 {
				s.logger.Info("expiry sweep removed tokens", "removed", removed)
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) insert(ctx context.Context, token domain.Token) (domain.InsertOutcome, error) {
	now := s.now()

	snap, _, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if removed := snap.FilterExpired(now); removed > 0 {
		s.metrics.ObserveExpired(removed)
	}

	if snap.Contains(token) {
		s.metrics.ObserveInsert(domain.AlreadyPresent.String())
		s.metrics.SetStoreSize(snap.Count)
		return domain.AlreadyPresent, nil
	}

	snap.Append(domain.NewTokenRecord(token, now, s.ttl))
	if err := s.persist(ctx, snap); err != nil {
		return 0, err
	}

	s.metrics.ObserveInsert(domain.Inserted.String())
	s.metrics.SetStoreSize(snap.Count)
	s.logger.Debug("token inserted", "token", token, "count", snap.Count)
	return domain.Inserted, nil
}

func (s *Store) snapshot(ctx context.Context) (*domain.TokenStoreSnapshot, error) {
	now := s.now()

	snap, recovered, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	removed := snap.FilterExpired(now)
	if removed > 0 {
		s.metrics.ObserveExpired(removed)
	}
	if removed > 0 || recovered {
		if err := s.persist(ctx, snap); err != nil {
			s.logger.Warn("failed to persist cleaned token store", "error", err)
		}
	}

	s.metrics.SetStoreSize(snap.Count)
	return snap.Clone(), nil
}

func (s *Store) sweep(ctx context.Context) (int, error) {
	now := s.now()

	snap, recovered, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	removed := snap.FilterExpired(now)
	if removed > 0 || recovered {
		if err := s.persist(ctx, snap); err != nil {
			return 0, err
		}
	}
	if removed > 0 {
		s.metrics.ObserveExpired(removed)
	}
	s.metrics.SetStoreSize(snap.Count)
	return removed, nil
}

// load reads and decodes the document. recovered reports whether the
// document was corrupt and had to be rebuilt.
func (s *Store) load(ctx context.Context) (snap *domain.TokenStoreSnapshot, recovered bool, err error) {
	raw, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return domain.NewTokenStoreSnapshot(), false, nil
	}
	if err != nil {
		s.metrics.ObserveStoreError()
		return nil, false, domain.ErrStoreUnavailable.WithCause(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.NewTokenStoreSnapshot(), false, nil
	}

	snap, decodeErr := decodeDocument(raw)
	if decodeErr == nil {
		return snap, false, nil
	}

	s.logger.Warn("token store document corrupt; attempting recovery", "error", decodeErr, "size", len(raw))

	backup, err := s.backend.Backup(ctx, raw, s.now())
	if err != nil {
		s.metrics.ObserveStoreError()
		return nil, false, domain.ErrStoreUnavailable.
			WithDetails("backup of corrupt document failed").
			WithCause(err)
	}

	snap, recoverErr := recoverDocument(raw)
	if recoverErr != nil {
		s.metrics.ObserveRecovery("reset")
		s.logger.Error("token store recovery failed; starting from empty state",
			"error", domain.ErrStoreCorrupt.WithCause(recoverErr),
			"backup", backup,
		)
		return domain.NewTokenStoreSnapshot(), true, nil
	}

	s.metrics.ObserveRecovery("recovered")
	s.logger.Warn("token store document recovered", "backup", backup, "count", snap.Count)
	return snap, true, nil
}

func (s *Store) persist(ctx context.Context, snap *domain.TokenStoreSnapshot) error {
	data, err := encodeDocument(snap)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}
	if err := s.backend.Save(ctx, data); err != nil {
		s.metrics.ObserveStoreError()
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}
