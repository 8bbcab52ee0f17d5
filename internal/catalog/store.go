package catalog

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store reads and writes JSON item documents (the catalog and the reels
// subset) on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore returns a store on fs. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs}
}

// Fs exposes the underlying filesystem (tests and sibling documents).
func (s *Store) Fs() afero.Fs { return s.fs }

// Save writes items to path as a JSON array using a temp-file-then-rename
// strategy so readers never see a partially-written document.
func (s *Store) Save(path string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("catalog save: marshal: %w", err)
	}
	return WriteFileAtomic(s.fs, path, data)
}

// Load reads the JSON array at path.
func (s *Store) Load(path string) ([]Item, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("catalog load: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("catalog load: decode %s: %w", path, err)
	}
	return items, nil
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(filepath.Clean(path))
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog save: mkdir: %w", err)
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("catalog save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		fs.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("catalog save: write: %w", writeErr)
		}
		return fmt.Errorf("catalog save: close: %w", closeErr)
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("catalog save: chmod: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("catalog save: rename: %w", err)
	}
	return nil
}
