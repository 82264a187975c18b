// Package tlsroots loads TLS material for tokpool.
//
//   - roots.go: trusted CA pool for outbound clients (token endpoint, sinks)
//   - reloader.go: server certificate that follows changes on disk
package tlsroots
