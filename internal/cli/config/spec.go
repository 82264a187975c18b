package config

import "time"

// RunnerConfig drives the run and schedule commands.
type RunnerConfig struct {
	// Source is a file path or an http(s) URL of the credential list.
	Source string `koanf:"source" yaml:"source"`

	// Sink is http(s)://host:port of a tokpool-server, or store:<path>
	// for an in-process file store.
	Sink string `koanf:"sink" yaml:"sink"`

	Concurrency int           `koanf:"concurrency" yaml:"concurrency"`
	Delay       time.Duration `koanf:"delay" yaml:"delay"`
	Interval    time.Duration `koanf:"interval" yaml:"interval"`

	Exchange ExchangeConfig `koanf:"exchange" yaml:"exchange"`
	Retry    RetryConfig    `koanf:"retry" yaml:"retry"`

	// Rate caps exchanges per second across the run; 0 means unlimited.
	Rate float64 `koanf:"rate" yaml:"rate"`

	// CAFile adds trusted roots for the token endpoint, source and sink.
	CAFile string `koanf:"ca_file" yaml:"ca_file"`

	// StoreTTL applies to store: sinks.
	StoreTTL time.Duration `koanf:"store_ttl" yaml:"store_ttl"`
}

// ExchangeConfig configures the OAuth2 password-grant exchanger.
type ExchangeConfig struct {
	TokenURL     string        `koanf:"token_url" yaml:"token_url"`
	ClientID     string        `koanf:"client_id" yaml:"client_id"`
	ClientSecret string        `koanf:"client_secret" yaml:"client_secret"`
	Scopes       []string      `koanf:"scopes" yaml:"scopes"`
	RegionParam  string        `koanf:"region_param" yaml:"region_param"`
	Timeout      time.Duration `koanf:"timeout" yaml:"timeout"`
}

// RetryConfig configures retries of rate-limited exchanges.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" yaml:"max_retries"`
	Delay      time.Duration `koanf:"delay" yaml:"delay"`
	Multiplier float64       `koanf:"multiplier" yaml:"multiplier"`
	MaxDelay   time.Duration `koanf:"max_delay" yaml:"max_delay"`
}
