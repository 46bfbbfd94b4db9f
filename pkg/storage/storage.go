package storage

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/pixelforge/pkg/types"
)

// Storage composes the metadata Store and the byte BlobStore into the
// single handle the rest of PixelForge depends on.
type Storage struct {
	Store
	Blobs *BlobStore
}

// Open creates the metadata store and blob store rooted at dataDir,
// creating the directory tree as needed.
func Open(dataDir string) (*Storage, error) {
	store, err := NewBoltStore(dataDir)
	if err != nil {
		return nil, err
	}

	blobRoot := filepath.Join(dataDir, "storage")
	blobs, err := NewBlobStore(blobRoot)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Storage{Store: store, Blobs: blobs}, nil
}

// DeleteTaskCascade removes a task's metadata row, all of its image rows,
// and the byte files those images reference. Byte removal happens before
// the metadata transaction commits; a failure there is returned as-is and
// the metadata rows are left intact so a retry can still find the paths
// to clean up.
func (s *Storage) DeleteTaskCascade(taskID string) error {
	images, err := s.Store.ListImagesByTask(taskID)
	if err != nil {
		return fmt.Errorf("failed to list images for task %s: %w", taskID, err)
	}

	for _, img := range images {
		if err := s.Blobs.Remove(img.Path); err != nil {
			return fmt.Errorf("failed to remove image bytes for %s: %w", img.ID, err)
		}
		if err := s.Blobs.Remove(img.ThumbPath); err != nil {
			return fmt.Errorf("failed to remove thumbnail bytes for %s: %w", img.ID, err)
		}
	}

	return s.Store.DeleteTaskCascade(taskID)
}

// LandImage writes an image's full-size bytes (and optional thumbnail)
// to the blob store and upserts its metadata row in one call, so
// callers never hold a half-written image.
func (s *Storage) LandImage(img *types.Image, data []byte, ext string, thumb []byte, thumbExt string) error {
	path, err := s.Blobs.Put(img.TaskID, img.Index, data, ext)
	if err != nil {
		return err
	}
	img.Path = path
	img.ByteSize = int64(len(data))

	if thumb != nil {
		thumbPath, err := s.Blobs.PutThumbnail(img.TaskID, img.Index, thumb, thumbExt)
		if err != nil {
			return err
		}
		img.ThumbPath = thumbPath
	}

	return s.Store.UpsertImage(img)
}
