// Package service provides the batch exchange pipeline.
//
// A BatchRunner partitions a credential list into windows of at most
// `concurrency` entries, exchanges every well-formed tuple of a window in
// parallel through an Exchanger, forwards each resulting token to a Sink,
// and pauses between windows. Failures are local to one entry and are
// aggregated into a domain.RunSummary; the runner itself never retries.
//
// Retry and pacing policies are Exchanger decorators (WithBackoff,
// WithRateLimit). Scheduler repeats runs on a fixed interval.
package service
