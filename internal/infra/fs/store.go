package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists JSON documents under a single data directory.
// Writes go through a temp file + rename so a crash mid-write never
// leaves a half-written document behind.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dir, 0755)
}

// SaveJSON writes v as indented JSON to filename inside the data dir.
func (s *Store) SaveJSON(filename string, v interface{}) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filename, err)
	}

	fullPath := filepath.Join(s.dir, filename)
	tmpPath := fullPath + ".tmp"

	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}

	return nil
}

// LoadJSON reads filename from the data dir into v. A missing file is
// reported as os.ErrNotExist so callers can start empty.
func (s *Store) LoadJSON(filename string, v interface{}) error {
	fullPath := filepath.Join(s.dir, filename)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	return nil
}
