package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// FileBackend stores the document as a single JSON file.
// Backups are written beside it as <stem>_backup_<unix-ms><ext>.
type FileBackend struct {
	path string
	dir  string
}

// NewFileBackend creates a backend for path, creating the parent directory.
func NewFileBackend(path string) (*FileBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("tokenstore: file path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("tokenstore: create dir: %w", err)
	}
	return &FileBackend{path: path, dir: dir}, nil
}

// Path returns the document path.
func (b *FileBackend) Path() string {
	return b.path
}

// Load implements Backend.
func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read %s: %w", b.path, err)
	}
	return data, nil
}

// Save implements Backend.
func (b *FileBackend) Save(_ context.Context, data []byte) error {
	return writeFileAtomic(b.path, data)
}

// Backup implements Backend.
func (b *FileBackend) Backup(_ context.Context, raw []byte, at time.Time) (string, error) {
	base := filepath.Base(b.path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".json"
	}

	ms := at.UnixMilli()
	target := filepath.Join(b.dir, fmt.Sprintf("%s_backup_%d%s", stem, ms, ext))
	for i := 1; ; i++ {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		target = filepath.Join(b.dir, fmt.Sprintf("%s_backup_%d_%d%s", stem, ms, i, ext))
	}

	if err := writeFileAtomic(target, raw); err != nil {
		return "", err
	}
	return target, nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory,
// fsyncs it and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: create temp: %w", err)
	}
	tempPath := file.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := file.Chmod(filePerm); err != nil {
		file.Close()
		return fmt.Errorf("tokenstore: chmod: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("tokenstore: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("tokenstore: close: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	committed = true
	return nil
}
