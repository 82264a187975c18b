package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// DefaultMaxBytes caps a downloaded or read list.
const DefaultMaxBytes = 16 << 20

// Source yields the credential lines of one cycle.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// SplitLines splits data on newlines, trims each line and drops empty ones.
func SplitLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// FileSource reads lines from a local file, re-reading it on every Fetch.
type FileSource struct {
	path     string
	maxBytes int64
}

// NewFileSource returns a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, maxBytes: DefaultMaxBytes}
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", s.path, err)
	}
	defer f.Close()

	data, err := readLimited(f, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", s.path, err)
	}
	return SplitLines(data), nil
}

// String returns the file path.
func (s *FileSource) String() string {
	return s.path
}

// Getter issues a GET for path relative to a base URL.
// *connection.HTTPClient satisfies it.
type Getter interface {
	Get(ctx context.Context, path string) (*http.Response, error)
}

// HTTPSource downloads the list on every Fetch.
type HTTPSource struct {
	client   Getter
	path     string
	maxBytes int64
}

// NewHTTPSource returns a source that GETs path through client.
func NewHTTPSource(client Getter, path string) *HTTPSource {
	return &HTTPSource{client: client, path: path, maxBytes: DefaultMaxBytes}
}

// Fetch implements Source. Non-2xx responses are errors.
func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	resp, err := s.client.Get(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("source: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("source: fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("source: read body: %w", err)
	}
	return SplitLines(data), nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("list exceeds %d bytes", max)
	}
	return data, nil
}
