// Package config defines the tokpool-cli runner configuration.
//
// The run and schedule commands read an optional YAML file and TOKPOOL_
// environment variables through confloader; flags given on the command
// line are layered on top with LoadMap.
package config
