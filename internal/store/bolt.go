// Package store provides the embedded BoltDB persistence layer for the
// upgrade core: resumable download tasks, backup records, upgrade history,
// and the single runtime app_config row.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDownloadTasks = []byte("download_tasks")
	bucketBackups       = []byte("backups")
	bucketUpgradeHist   = []byte("upgrade_history")
	bucketAppConfig     = []byte("app_config")
)

// Store is a BoltDB-backed handle for all resources the upgrade core
// persists across restarts.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the BoltDB file at path, creating all buckets the
// store uses if they don't already exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDownloadTasks, bucketBackups, bucketUpgradeHist, bucketAppConfig} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
