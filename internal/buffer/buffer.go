// Package buffer provides the local fallback store for snapshots that could
// not be transmitted. Only the most recent unsent snapshot is kept: each
// Store replaces the previous one. Writes are atomic, so a reader never
// observes a half-written file, and data persists across crashes and reboots.
package buffer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store is a single-file store holding the latest unsent snapshot.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a store writing to path. The parent directory is created if
// it does not exist.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("fallback path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create fallback directory: %w", err)
		}
	}
	return &Store{path: path, logger: logger}, nil
}

// Store atomically replaces the stored snapshot with data: it writes a
// temporary file in the same directory, syncs it, then renames it over
// the target.
func (s *Store) Store(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// Removes the temp file on any failure below; a no-op after the rename.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0640); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace fallback file: %w", err)
	}

	s.logger.Debug("Stored fallback snapshot", zap.String("file", s.path), zap.Int("bytes", len(data)))
	return nil
}

// Load returns the stored snapshot. ok is false when nothing is stored.
func (s *Store) Load() (data []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err = os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read fallback file: %w", err)
	}
	return data, true, nil
}

// Clear removes the stored snapshot. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to remove fallback file", zap.String("file", s.path), zap.Error(err))
		return err
	}
	return nil
}
