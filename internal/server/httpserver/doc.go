// Package httpserver provides the HTTP server for the token service.
//
// It uses net/http with Go 1.22 method patterns. NewRouter wires the
// handler package behind a middleware chain of Recover, RequestID, Metrics,
// CORS, RateLimit and Audit; admin routes additionally pass NetworkACL and
// AdminAuth.
package httpserver
