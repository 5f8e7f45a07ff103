package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore loads tables persisted by an earlier run and persists new ones.
// It performs no merging: each artifact folds its prior table into its new
// observations before saving.
type FileStore struct {
	incremental bool
	sourceDir   string
}

// NewFileStore returns a store. When incremental is false Load always
// reports absent.
func NewFileStore(incremental bool, sourceDir string) *FileStore {
	return &FileStore{incremental: incremental, sourceDir: sourceDir}
}

// Incremental reports whether prior tables are loaded.
func (s *FileStore) Incremental() bool {
	return s.incremental
}

// Load reads file (relative to the source directory) and decodes each
// non-empty line with dec. It returns ok=false when incremental mode is off
// or the file does not exist.
func (s *FileStore) Load(file string, dec Decoder) (Table, bool, error) {
	if !s.incremental {
		return nil, false, nil
	}
	path := filepath.Join(s.sourceDir, file)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load %s: %w", path, err)
	}
	t, err := Decode(string(data), dec)
	if err != nil {
		return nil, false, fmt.Errorf("store: load %s: %w", path, err)
	}
	return t, true, nil
}

// Save writes t to path, overwriting it, and returns t unchanged.
func (s *FileStore) Save(path string, t Table) (Table, error) {
	if err := WriteFile(path, []byte(Encode(t))); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}
