// Package storage provides durable backends for the token store.
//
// tokenstore ships the file and in-memory backends. This package adds a
// Badger-based backend that keeps the store document and its corrupt-content
// backups as keys in an embedded LSM database, with periodic value log GC and
// optional Prometheus gauges for on-disk size.
package storage
