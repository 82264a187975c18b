package config

import (
	"time"

	"github.com/yndnr/tokpool/internal/storage"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:3000"
	DefaultRateLimit       = 1000
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 15 * time.Second

	DefaultBackend = BackendFile
	DefaultPath    = "tokens.json"
	DefaultDataDir = "data"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultAdminAllowList limits admin routes to loopback.
var DefaultAdminAllowList = []string{"127.0.0.1", "::1"}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				AdminAllowList:  append([]string(nil), DefaultAdminAllowList...),
				RateLimit:       DefaultRateLimit,
				MaxBodyBytes:    DefaultMaxBodyBytes,
				EnableAudit:     true,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
		},
		Storage: StorageSection{
			Backend:       DefaultBackend,
			Path:          DefaultPath,
			DataDir:       DefaultDataDir,
			TTL:           tokenstore.DefaultTTL,
			SweepInterval: tokenstore.DefaultSweepInterval,
			Badger:        storage.DefaultBadgerConfig(),
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
