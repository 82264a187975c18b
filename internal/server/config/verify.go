package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyHTTP(&cfg.Server.HTTP),
		verifyStorage(&cfg.Storage),
		verifyLog(&cfg.Log),
	)
}

func verifyHTTP(cfg *HTTPConfig) error {
	var errs []error

	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.http.addr %q: %w", cfg.Addr, err))
	}

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http.tls_cert_file and tls_key_file must be set together"))
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server.http tls file: %w", err))
		}
	}

	for _, entry := range cfg.AdminAllowList {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				errs = append(errs, fmt.Errorf("server.http.admin_allow_list %q: %w", entry, err))
			}
		} else if net.ParseIP(entry) == nil {
			errs = append(errs, fmt.Errorf("server.http.admin_allow_list %q: not an IP", entry))
		}
	}

	if cfg.MetricsAuthRequired && cfg.AdminToken == "" {
		errs = append(errs, errors.New("server.http.metrics_auth_required needs admin_token"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.http.max_body_bytes must be positive"))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.http.shutdown_timeout must be positive"))
	}

	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error

	switch cfg.Backend {
	case BackendFile:
		if cfg.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the file backend"))
		}
	case BackendBadger:
		if cfg.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the badger backend"))
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			errs = append(errs, errors.New("storage.badger.gc_threshold must be in (0, 1)"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want file, badger or memory", cfg.Backend))
	}

	if cfg.TTL <= 0 {
		errs = append(errs, errors.New("storage.ttl must be positive"))
	}
	if cfg.SweepInterval < 0 {
		errs = append(errs, errors.New("storage.sweep_interval must not be negative"))
	}

	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Level))
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or text", cfg.Format))
	}
	return errors.Join(errs...)
}
