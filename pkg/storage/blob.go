package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BlobStore is the byte store for produced image artifacts, rooted at a
// configured directory. Every artifact's path is derived from its owning
// task identifier and a per-task index, so concurrent writers across
// tasks never target the same path and relative paths stay stable across
// restarts — safe to hand a client for direct local loading.
type BlobStore struct {
	root string
}

// NewBlobStore creates a BlobStore rooted at root, creating it if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	dir := filepath.Join(root, "local")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", dir, err)
	}
	return &BlobStore{root: root}, nil
}

// Root returns the blob store's root directory.
func (b *BlobStore) Root() string { return b.root }

// Put writes the original bytes for image index of taskID and returns a
// forward-slash relative path stable across restarts.
func (b *BlobStore) Put(taskID string, index int, data []byte, ext string) (string, error) {
	rel := filepath.ToSlash(filepath.Join("local", fmt.Sprintf("%s_%d.%s", taskID, index, ext)))
	if err := b.writeFile(rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

// PutThumbnail writes a thumbnail for the same (taskID, index) pair.
func (b *BlobStore) PutThumbnail(taskID string, index int, data []byte, ext string) (string, error) {
	rel := filepath.ToSlash(filepath.Join("local", fmt.Sprintf("thumb_%s_%d.%s", taskID, index, ext)))
	if err := b.writeFile(rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

func (b *BlobStore) writeFile(rel string, data []byte) error {
	abs := filepath.Join(b.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", rel, err)
	}
	return nil
}

// Open opens a relative path for reading.
func (b *BlobStore) Open(rel string) (io.ReadCloser, error) {
	abs := filepath.Join(b.root, filepath.FromSlash(rel))
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", rel, err)
	}
	return f, nil
}

// Stat returns the size in bytes of the blob at rel.
func (b *BlobStore) Stat(rel string) (int64, error) {
	abs := filepath.Join(b.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("failed to stat blob %s: %w", rel, err)
	}
	return info.Size(), nil
}

// Remove deletes a relative path. Missing entries are not an error.
func (b *BlobStore) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	abs := filepath.Join(b.root, filepath.FromSlash(rel))
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob %s: %w", rel, err)
	}
	return nil
}

// AbsPath resolves a relative path to an absolute filesystem path, for
// the static file service in pkg/api.
func (b *BlobStore) AbsPath(rel string) string {
	return filepath.Join(b.root, filepath.FromSlash(rel))
}
