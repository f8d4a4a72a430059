package crawl

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists collected values. Append must be durable before it returns.
type Store interface {
	Load() (map[string]struct{}, error)
	Append(value string) error
	Close() error
}

// ErrInvalidValue rejects values that cannot be stored as a single line
var ErrInvalidValue = errors.New("invalid store value")

// FileStore is an append-only text file holding one value per line
type FileStore struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewFileStore returns a store backed by path. The file is created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads every non-blank line. A missing file is an empty store.
func (s *FileStore) Load() (map[string]struct{}, error) {
	seen := make(map[string]struct{})

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return seen, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if v := strings.TrimSpace(scanner.Text()); v != "" {
			seen[v] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	return seen, nil
}

// Append writes value and a newline, then syncs the file
func (s *FileStore) Append(value string) error {
	if value == "" || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w %q", ErrInvalidValue, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create store dir: %w", err)
			}
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open store for append: %w", err)
		}
		s.f = f
	}

	if _, err := s.f.WriteString(value + "\n"); err != nil {
		return fmt.Errorf("append to store: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}
	return nil
}

// Close releases the file handle
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
