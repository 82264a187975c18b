package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/yndnr/tokpool/internal/core/service"
	"github.com/yndnr/tokpool/internal/exchange"
	"github.com/yndnr/tokpool/internal/infra/confloader"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
)

// StoreSinkPrefix marks an in-process store sink.
const StoreSinkPrefix = "store:"

// Default returns the default runner configuration.
func Default() *RunnerConfig {
	backoff := service.DefaultBackoffPolicy()
	return &RunnerConfig{
		Sink:        "http://127.0.0.1:3000",
		Concurrency: service.DefaultConcurrency,
		Delay:       service.DefaultBatchDelay,
		Interval:    service.DefaultInterval,
		Exchange: ExchangeConfig{
			Timeout: exchange.DefaultTimeout,
		},
		Retry: RetryConfig{
			MaxRetries: backoff.MaxRetries,
			Delay:      backoff.BaseDelay,
			Multiplier: backoff.Multiplier,
			MaxDelay:   backoff.MaxDelay,
		},
		StoreTTL: tokenstore.DefaultTTL,
	}
}

// Load layers the optional file at path, TOKPOOL_ variables and
// overrides (dotted keys, typically from flags) over Default, then verifies.
func Load(path string, overrides map[string]any) (*RunnerConfig, error) {
	cfg := Default()

	l := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := l.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := l.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal overrides: %w", err)
		}
	}

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify validates the configuration and reports every problem found.
func Verify(cfg *RunnerConfig) error {
	var errs []error

	if cfg.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if err := verifySink(cfg.Sink); err != nil {
		errs = append(errs, err)
	}
	if cfg.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if cfg.Delay < 0 {
		errs = append(errs, errors.New("delay must not be negative"))
	}
	if cfg.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if cfg.Exchange.TokenURL == "" {
		errs = append(errs, errors.New("exchange.token_url is required"))
	}
	if cfg.Retry.MaxRetries < 0 || cfg.Retry.Delay < 0 {
		errs = append(errs, errors.New("retry values must not be negative"))
	}
	if cfg.Rate < 0 {
		errs = append(errs, errors.New("rate must not be negative"))
	}
	if cfg.StoreTTL <= 0 {
		errs = append(errs, errors.New("store_ttl must be positive"))
	}

	return errors.Join(errs...)
}

func verifySink(sink string) error {
	if strings.HasPrefix(sink, StoreSinkPrefix) {
		if strings.TrimPrefix(sink, StoreSinkPrefix) == "" {
			return errors.New("sink store: needs a path")
		}
		return nil
	}
	u, err := url.Parse(sink)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("sink %q: want http(s)://host:port or store:<path>", sink)
	}
	return nil
}

// BackoffPolicy converts the retry section.
func (c *RunnerConfig) BackoffPolicy() service.BackoffPolicy {
	return service.BackoffPolicy{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.Delay,
		Multiplier: c.Retry.Multiplier,
		MaxDelay:   c.Retry.MaxDelay,
	}
}

// Sanitize returns a copy with the client secret masked, for logging.
func Sanitize(cfg *RunnerConfig) *RunnerConfig {
	sanitized := *cfg
	if sanitized.Exchange.ClientSecret != "" {
		sanitized.Exchange.ClientSecret = "****"
	}
	return &sanitized
}
