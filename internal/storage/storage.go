package storage

import (
	"context"
	"errors"
)

// ErrAssetMissing is returned when a referenced artifact cannot be resolved.
// Deliveries hitting this fail permanently; retrying cannot produce the file.
var ErrAssetMissing = errors.New("asset not found in storage")

// Store is the interface for resolving and saving avatar artifacts
type Store interface {
	// Resolve returns the bytes of the artifact at the given path
	Resolve(ctx context.Context, path string) ([]byte, error)
	// Save writes an artifact and returns the path it can later be resolved by
	Save(ctx context.Context, name string, data []byte) (string, error)
}
