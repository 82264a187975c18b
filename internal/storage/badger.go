package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokpool/internal/storage/tokenstore"
)

// Key layout.
const (
	documentKey  = "tokens/document"
	backupPrefix = "tokens/backup/"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("badger backend closed")

// BadgerBackend implements tokenstore.Backend on Badger v3.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	closed    atomic.Bool
	lastGC    atomic.Int64 // Unix milliseconds
	gcRuns    atomic.Uint64
	closeOnce sync.Once
	closeErr  error

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ tokenstore.Backend = (*BadgerBackend)(nil)

// OpenBadgerBackend opens (or creates) a Badger database in dir.
func OpenBadgerBackend(dir string, cfg BadgerConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.BlockCacheSize = cfg.CacheSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumMemtables = cfg.NumMemtables
	opts.NumLevelZeroTables = cfg.NumLevelZeroTables
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if cfg.GCInterval > 0 {
		b.wg.Add(1)
		go b.gcLoop()
	}

	logger.Info("badger backend opened",
		"dir", dir,
		"gc_interval", cfg.GCInterval,
		"sync_writes", cfg.SyncWrites)

	return b, nil
}

// Load implements tokenstore.Backend.
func (b *BadgerBackend) Load(_ context.Context) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(documentKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return tokenstore.ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Save implements tokenstore.Backend. A Badger transaction commit is atomic.
func (b *BadgerBackend) Save(_ context.Context, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(documentKey), data)
	})
}

// Backup implements tokenstore.Backend. The returned location is the key.
func (b *BadgerBackend) Backup(_ context.Context, raw []byte, at time.Time) (string, error) {
	if b.closed.Load() {
		return "", ErrClosed
	}

	base := backupPrefix + strconv.FormatInt(at.UnixMilli(), 10)
	var key string
	err := b.db.Update(func(txn *badger.Txn) error {
		key = base
		for i := 1; ; i++ {
			_, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				break
			}
			if err != nil {
				return err
			}
			key = base + "_" + strconv.Itoa(i)
		}
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return "", fmt.Errorf("badger: backup: %w", err)
	}
	return key, nil
}

// Backups lists backup keys in ascending order.
func (b *BadgerBackend) Backups(_ context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(backupPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// GC runs value log GC until nothing more can be rewritten.
// It returns how many rewrite rounds succeeded.
func (b *BadgerBackend) GC(_ context.Context) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}

	start := time.Now()
	rounds := 0
	for {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rounds, fmt.Errorf("gc: %w", err)
		}
		rounds++
	}

	b.lastGC.Store(time.Now().UnixMilli())
	b.gcRuns.Add(1)
	if b.metricsLastGCTime != nil {
		b.metricsLastGCTime.Set(float64(time.Now().Unix()))
		b.metricsGCRuns.Inc()
	}

	b.logger.Debug("gc completed", "rounds", rounds, "elapsed", time.Since(start))
	return rounds, nil
}

// Size returns the LSM and value log sizes in bytes.
func (b *BadgerBackend) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Close stops background loops and closes the database.
func (b *BadgerBackend) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		b.wg.Wait()
		if err := b.db.Close(); err != nil {
			b.closeErr = fmt.Errorf("close db: %w", err)
			return
		}
		b.logger.Info("badger backend closed")
	})
	return b.closeErr
}

// RegisterMetrics registers on-disk size gauges with registry and starts
// a loop that refreshes them. Call at most once.
func (b *BadgerBackend) RegisterMetrics(registry *prometheus.Registry) *BadgerBackend {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokpool",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokpool",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	b.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokpool",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last value log GC",
	})
	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokpool",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Completed value log GC passes",
	})

	registry.MustRegister(
		b.metricsLSMSize,
		b.metricsValueLogSize,
		b.metricsLastGCTime,
		b.metricsGCRuns,
	)

	b.updateSizeMetrics()
	b.wg.Add(1)
	go b.metricsUpdateLoop()

	return b
}

func (b *BadgerBackend) updateSizeMetrics() {
	lsm, vlog := b.db.Size()
	b.metricsLSMSize.Set(float64(lsm))
	b.metricsValueLogSize.Set(float64(vlog))
}

func (b *BadgerBackend) metricsUpdateLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.updateSizeMetrics()
		case <-b.stopCh:
			return
		}
	}
}

func (b *BadgerBackend) gcLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
