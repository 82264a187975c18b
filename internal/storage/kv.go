package storage

import "time"

// BadgerConfig tunes the embedded Badger database.
type BadgerConfig struct {
	// GCInterval is the period of value log garbage collection.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64 `koanf:"gc_threshold"`

	CacheSize          int64 `koanf:"cache_size"`
	ValueLogFileSize   int64 `koanf:"value_log_file_size"`
	NumMemtables       int   `koanf:"num_memtables"`
	NumLevelZeroTables int   `koanf:"num_level_zero_tables"`

	// SyncWrites fsyncs every write. The store rewrites one small
	// document per mutation, so this defaults to true.
	SyncWrites bool `koanf:"sync_writes"`
}

// DefaultBadgerConfig returns defaults sized for a single small document.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:         10 * time.Minute,
		GCThreshold:        0.5,
		CacheSize:          8 << 20,  // 8MB
		ValueLogFileSize:   64 << 20, // 64MB
		NumMemtables:       2,
		NumLevelZeroTables: 5,
		SyncWrites:         true,
	}
}
