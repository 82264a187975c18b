// Package shutdown coordinates graceful process termination.
//
// Components register hooks as they start; Wait blocks until SIGINT,
// SIGTERM, a Trigger call or the parent context ends, then runs the hooks
// in reverse registration order under one timeout.
package shutdown
