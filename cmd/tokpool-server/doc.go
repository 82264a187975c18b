// Package main provides the entry point for tokpool-server.
//
// The server keeps a pool of bearer tokens with a fixed lifetime and
// exposes it over HTTP:
//
//   - POST /save-token adds a token (duplicates are accepted, not stored twice)
//   - GET /tokens lists live tokens
//   - /admin/v1 routes for status and on-demand expiry sweeps
//   - /health, /ready and /metrics for operations
//
// Usage:
//
//	tokpool-server [flags]
//	tokpool-server --config /path/to/config.yaml
//
// The server loads configuration, opens the configured storage backend,
// and serves until SIGINT or SIGTERM.
package main
