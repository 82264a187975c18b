// Package metric provides Prometheus metrics for tokpool.
//
//   - prometheus.go: the registry, metric definitions and the /metrics handler
//   - collector.go: a collector exporting build information
//
// Metrics cover batch runs (windows, exchange outcomes, sink failures),
// the token store (inserts, size, sweeps, corrupt document recoveries)
// and HTTP requests. All recording helpers are safe on a nil *Registry.
package metric
