package config

import (
	"github.com/yndnr/tokpool/internal/infra/confloader"
)

// Load builds a ServerConfig from defaults, the optional file at path and
// TOKPOOL_ environment variables, then verifies it.
func Load(path string) (*ServerConfig, error) {
	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
