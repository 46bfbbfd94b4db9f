package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/pixelforge/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTasks     = []byte("tasks")
	bucketImages    = []byte("images")
	bucketProviders = []byte("providers")
)

// BoltStore implements Store using an embedded BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB-backed store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "pixelforge.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTasks, bucketImages, bucketProviders} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Task operations

func (s *BoltStore) CreateTask(task *types.Task) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(task.ID), data)
	})
}

func (s *BoltStore) UpdateTask(task *types.Task) error {
	return s.CreateTask(task)
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task not found: %s", id)
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks(filter TaskFilter, page Page) ([]*types.Task, int, error) {
	var all []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if filter.Keyword != "" && !strings.Contains(strings.ToLower(task.Prompt), strings.ToLower(filter.Keyword)) {
				return nil
			}
			all = append(all, &task)
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	size := page.Size
	if size <= 0 {
		size = 20
	}
	number := page.Number
	if number <= 0 {
		number = 1
	}
	start := (number - 1) * size
	if start >= total {
		return []*types.Task{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *BoltStore) ListNonTerminalTasks() ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if !task.Status.Terminal() {
				tasks = append(tasks, &task)
			}
			return nil
		})
	})
	return tasks, err
}

// DeleteTaskCascade removes the task row and every image row that belongs
// to it. Byte files are the caller's responsibility (see Storage's
// DeleteTaskCascade, which wraps this and the BlobStore). Re-runnable:
// missing rows are not an error.
func (s *BoltStore) DeleteTaskCascade(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		images := tx.Bucket(bucketImages)
		var toDelete [][]byte
		err := images.ForEach(func(k, v []byte) error {
			var img types.Image
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}
			if img.TaskID == id {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := images.Delete(k); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketTasks).Delete([]byte(id))
	})
}

// Image operations

func (s *BoltStore) UpsertImage(image *types.Image) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketImages)
		data, err := json.Marshal(image)
		if err != nil {
			return err
		}
		return b.Put([]byte(image.ID), data)
	})
}

func (s *BoltStore) FindImage(id string) (*types.Image, error) {
	var img types.Image
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketImages)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("image not found: %s", id)
		}
		return json.Unmarshal(data, &img)
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *BoltStore) ListImagesByTask(taskID string) ([]*types.Image, error) {
	var images []*types.Image
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketImages)
		return b.ForEach(func(k, v []byte) error {
			var img types.Image
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}
			if img.TaskID == taskID {
				images = append(images, &img)
			}
			return nil
		})
	})
	sort.Slice(images, func(i, j int) bool { return images[i].Index < images[j].Index })
	return images, err
}

func (s *BoltStore) DeleteImage(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(id))
	})
}

// Provider configuration operations

func (s *BoltStore) UpsertProviderConfig(cfg *types.ProviderConfig) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		data, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return b.Put([]byte(cfg.Name), data)
	})
}

func (s *BoltStore) GetProviderConfig(name string) (*types.ProviderConfig, error) {
	var cfg types.ProviderConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("provider config not found: %s", name)
		}
		return json.Unmarshal(data, &cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *BoltStore) ListProviderConfigs() ([]*types.ProviderConfig, error) {
	var cfgs []*types.ProviderConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		return b.ForEach(func(k, v []byte) error {
			var cfg types.ProviderConfig
			if err := json.Unmarshal(v, &cfg); err != nil {
				return err
			}
			cfgs = append(cfgs, &cfg)
			return nil
		})
	})
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].Name < cfgs[j].Name })
	return cfgs, err
}

func (s *BoltStore) DeleteProviderConfig(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProviders).Delete([]byte(name))
	})
}
