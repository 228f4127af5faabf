// Package preferences persists the few UI settings that survive restarts.
package preferences

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists the dark-mode flag.
type Store interface {
	DarkMode() (bool, error)
	SetDarkMode(enabled bool) error
}

// FileStore keeps the flag in a single file holding "true", or no file at all.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed preference store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DarkMode reports whether dark mode was enabled. A missing file means off.
func (s *FileStore) DarkMode() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read preferences: %w", err)
	}
	return strings.TrimSpace(string(data)) == "true", nil
}

// SetDarkMode writes "true" when enabled and removes the file otherwise.
func (s *FileStore) SetDarkMode(enabled bool) error {
	if !enabled {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear preferences: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte("true"), 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// Memory is a Store that forgets everything on exit.
type Memory struct {
	dark bool
}

func (m *Memory) DarkMode() (bool, error) { return m.dark, nil }

func (m *Memory) SetDarkMode(enabled bool) error {
	m.dark = enabled
	return nil
}
