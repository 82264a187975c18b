// Package output renders tokpool-cli results as a table, JSON or YAML.
//
// View types implement Tabular to control their table layout; anything
// else falls back to indented JSON in table mode.
package output
