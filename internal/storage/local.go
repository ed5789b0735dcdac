package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements Store on the local filesystem, rooted at basePath.
// Paths that escape the root are rejected.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a LocalStore rooted at basePath
func NewLocalStore(basePath string) (*LocalStore, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{basePath: abs}, nil
}

// Resolve returns the bytes of the artifact at the given path
func (s *LocalStore) Resolve(ctx context.Context, path string) ([]byte, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrAssetMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Save writes an artifact under the storage root and returns its relative path
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	full, err := s.fullPath(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	rel, err := filepath.Rel(s.basePath, full)
	if err != nil {
		return "", fmt.Errorf("failed to relativize artifact path: %w", err)
	}
	return rel, nil
}

// fullPath joins path onto the root and rejects traversal outside it
func (s *LocalStore) fullPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrAssetMissing)
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.basePath, path)
	}
	full = filepath.Clean(full)

	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes storage root: %q", path)
	}
	return full, nil
}
