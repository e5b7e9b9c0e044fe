// Package manifest persists the job manifest and guards a job directory
// against concurrent runs.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autoedit/models"
)

// FileName is the manifest's name inside the autoedit directory.
const FileName = ".job.json"

const tempPattern = FileName + ".tmp-*"

var (
	// ErrNotFound is returned by Load when no manifest has been written yet.
	ErrNotFound = errors.New("manifest not found")
	// ErrCorrupt is returned by Load when the manifest cannot be decoded.
	ErrCorrupt = errors.New("manifest corrupt")
)

// Store reads and writes the manifest of one job directory.
//
// All mutations of a manifest that may be shared between goroutines must go
// through Apply or Commit so that serialization never observes a half-applied
// change.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewStore returns a Store for the given autoedit directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Dir returns the job directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads the last fully written manifest. Leftover temporary files from
// an interrupted write are removed; they never replace the manifest.
func (s *Store) Load() (*models.Manifest, error) {
	s.removeStaleTemps()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read manifest %s: %w", s.Path(), err)
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, s.Path(), err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path(), err)
	}
	return &m, nil
}

// Save validates and atomically writes the manifest.
func (s *Store) Save(m *models.Manifest) error {
	return s.Commit(m, nil)
}

// Commit applies mutate under the store lock and writes the result.
func (s *Store) Commit(m *models.Manifest, mutate func(*models.Manifest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mutate != nil {
		mutate(m)
	}
	return s.write(m)
}

// Apply runs mutate under the store lock without writing.
func (s *Store) Apply(m *models.Manifest, mutate func(*models.Manifest)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(m)
}

func (s *Store) write(m *models.Manifest) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid manifest: %w", err)
	}

	m.Updated = s.now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	return WriteAtomic(s.Path(), data)
}

func (s *Store) removeStaleTemps() {
	matches, err := filepath.Glob(filepath.Join(s.dir, tempPattern))
	if err != nil {
		return
	}
	for _, p := range matches {
		_ = os.Remove(p)
	}
}

// WriteAtomic writes data to a temporary file in the target's directory,
// syncs it and renames it over path. A crash at any point leaves either the
// old or the new content at path, never a partial file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports syncing a directory handle, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
