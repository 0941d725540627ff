package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore reads report archives from a directory tree. Keys are paths
// relative to the base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a LocalStore rooted at basePath, creating the
// directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("attachment: create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// resolve maps a key to a path under the base directory, rejecting keys
// that escape it.
func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("attachment: empty key")
	}
	p := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("attachment: key %q escapes base directory", key)
	}
	return p, nil
}

// Put writes archive data using a temp file and rename so readers never
// observe a partial archive.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	finalPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("attachment: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("attachment: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("attachment: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("attachment: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("attachment: rename temp file: %w", err)
	}
	return nil
}

// Get reads an archive. Returns ErrNotFound if it does not exist.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("attachment: read file: %w", err)
	}
	return data, nil
}
