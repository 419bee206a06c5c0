package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// PutDownloadTask creates or overwrites a DownloadTask by key (the
// artifact URL), bumping its generation and timestamps. Downloads are
// re-entrant (resume logic re-derives state from the partial .part file),
// so unlike upgrade history this is an upsert rather than a strict
// create/update split.
func (s *Store) PutDownloadTask(task *DownloadTask) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDownloadTasks)
		key := []byte(task.Metadata.Key)

		now := time.Now()
		if existing := b.Get(key); existing != nil {
			var old DownloadTask
			if err := decode(existing, &old); err != nil {
				return fmt.Errorf("store: decode existing download task %q: %w", task.Metadata.Key, err)
			}
			task.Metadata.Generation = old.Metadata.Generation + 1
			task.Metadata.CreatedAt = old.Metadata.CreatedAt
		} else {
			task.Metadata.Generation = 1
			task.Metadata.CreatedAt = now
		}
		task.Metadata.UpdatedAt = now

		data, err := encode(task)
		if err != nil {
			return fmt.Errorf("store: encode download task %q: %w", task.Metadata.Key, err)
		}
		return b.Put(key, data)
	})
}

// GetDownloadTask retrieves a DownloadTask by its key (artifact URL).
func (s *Store) GetDownloadTask(key string) (*DownloadTask, error) {
	var task DownloadTask
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDownloadTasks)
		data := b.Get([]byte(key))
		if data == nil {
			return &NotFoundError{Resource: "download_task", Key: key}
		}
		return decode(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteDownloadTask removes a DownloadTask once its artifact has been
// consumed and is no longer resumable.
func (s *Store) DeleteDownloadTask(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDownloadTasks)
		k := []byte(key)
		if b.Get(k) == nil {
			return &NotFoundError{Resource: "download_task", Key: key}
		}
		return b.Delete(k)
	})
}
