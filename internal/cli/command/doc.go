// Package command provides the tokpool-cli command definitions.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags, client and output helpers
//   - run.go: run and schedule, wiring source, exchanger and sink
//   - tokens.go: tokens list and tokens gc against a tokpool-server
//   - system.go: system status and system health
//   - version.go: build information
//
// Commands follow a consistent pattern of parsing flags,
// calling the server or the runner, and formatting output.
package command
