package storage_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/herogram/herogram/internal/storage"
)

func TestLocalStore_SaveAndResolve(t *testing.T) {
	t.Parallel()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	data := []byte("png bytes")

	rel, err := store.Save(ctx, filepath.Join("avatars", "a1.png"), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Resolve(ctx, rel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestLocalStore_MissingFileIsAssetMissing(t *testing.T) {
	t.Parallel()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.Resolve(context.Background(), "avatars/nope.png")
	if !errors.Is(err, storage.ErrAssetMissing) {
		t.Fatalf("expected ErrAssetMissing, got %v", err)
	}

	_, err = store.Resolve(context.Background(), "")
	if !errors.Is(err, storage.ErrAssetMissing) {
		t.Fatalf("expected ErrAssetMissing for empty path, got %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, path := range []string{
		"../outside.png",
		"avatars/../../outside.png",
		"/etc/passwd",
	} {
		if _, err := store.Resolve(context.Background(), path); err == nil {
			t.Fatalf("expected rejection for %q", path)
		}
		if _, err := store.Save(context.Background(), path, []byte("x")); err == nil {
			t.Fatalf("expected save rejection for %q", path)
		}
	}
}
