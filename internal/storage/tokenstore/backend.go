package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned by Backend.Load when no document has been stored yet.
var ErrNotFound = errors.New("tokenstore: document not found")

// Backend persists the raw store document.
//
// Implementations must make Save atomic: a concurrent or subsequent Load
// observes either the previous or the new document, never a mix.
type Backend interface {
	// Load returns the stored document, or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)

	// Save atomically replaces the stored document.
	Save(ctx context.Context, data []byte) error

	// Backup preserves raw (typically a corrupt document) under a name
	// derived from at, and returns where it was written.
	Backup(ctx context.Context, raw []byte, at time.Time) (string, error)

	// Close releases backend resources.
	Close() error
}

// MemoryBackend keeps the document in memory.
// It is used by tests and by the "memory" backend setting.
type MemoryBackend struct {
	mu      sync.Mutex
	data    []byte
	backups map[string][]byte
	saves   int

	loadErr error
	saveErr error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{backups: make(map[string][]byte)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Backup implements Backend.
func (m *MemoryBackend) Backup(_ context.Context, raw []byte, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := fmt.Sprintf("tokens_backup_%d.json", at.UnixMilli())
	for i := 1; ; i++ {
		if _, exists := m.backups[name]; !exists {
			break
		}
		name = fmt.Sprintf("tokens_backup_%d_%d.json", at.UnixMilli(), i)
	}
	m.backups[name] = append([]byte(nil), raw...)
	return name, nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Set replaces the stored document without going through a Store.
func (m *MemoryBackend) Set(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// Data returns a copy of the stored document (nil if none).
func (m *MemoryBackend) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	return append([]byte(nil), m.data...)
}

// Backups returns a copy of all backups by name.
func (m *MemoryBackend) Backups() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.backups))
	for k, v := range m.backups {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Saves returns how many times Save succeeded.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailWith makes subsequent Load and Save calls return the given errors (nil clears).
func (m *MemoryBackend) FailWith(loadErr, saveErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = loadErr
	m.saveErr = saveErr
}
