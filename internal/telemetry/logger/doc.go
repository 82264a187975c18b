// Package logger provides structured logging for tokpool.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, handler construction and dynamic levels
//   - context.go: context-aware logging with request and run IDs
//   - redact.go: masking of secrets and bearer tokens
//
// Components that only need a *slog.Logger take one directly; Slog converts
// a Logger built here into one that keeps the redacting handler.
package logger
