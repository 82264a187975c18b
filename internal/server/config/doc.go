// Package config defines the tokpool-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking for logs
//   - load.go: defaults < file < env through confloader
package config
