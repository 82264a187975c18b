package config

import (
	"time"

	"github.com/yndnr/tokpool/internal/storage"
)

// ServerConfig is the root configuration for tokpool-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// AdminToken protects /admin routes. Empty disables the token check;
	// the allow list still applies.
	AdminToken          string   `koanf:"admin_token"`
	AdminAllowList      []string `koanf:"admin_allow_list"`
	MetricsAuthRequired bool     `koanf:"metrics_auth_required"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit    int   `koanf:"rate_limit"`
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	EnableAudit  bool  `koanf:"enable_audit"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Storage backend names.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// StorageSection configures the token store and its backend.
type StorageSection struct {
	Backend string `koanf:"backend"`

	// Path is the JSON document used by the file backend.
	Path string `koanf:"path"`

	// DataDir is the badger directory.
	DataDir string `koanf:"data_dir"`

	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`

	Badger storage.BadgerConfig `koanf:"badger"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
