// Package confloader loads layered configuration with koanf.
//
// Priority, lowest to highest:
//
//  1. Values already present in the target struct (the caller's defaults)
//  2. Maps passed to LoadMap (tests, flag overrides)
//  3. The YAML configuration file
//  4. Environment variables
//
// Watcher follows one configuration file and notifies callbacks when it
// is rewritten; tokpool-server uses it to apply a new log level.
package confloader
