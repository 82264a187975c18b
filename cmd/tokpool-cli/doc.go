// Package main provides the entry point for tokpool-cli.
//
// tokpool-cli runs credential lists through the token exchanger, either
// once (run) or on an interval (schedule), and manages a running
// tokpool-server (tokens, system).
package main
