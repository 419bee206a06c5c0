package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// CreateBackup inserts a new BackupRecord, rejecting a duplicate key.
func (s *Store) CreateBackup(rec *BackupRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBackups)
		key := []byte(rec.Metadata.Key)
		if b.Get(key) != nil {
			return &AlreadyExistsError{Resource: "backup", Key: rec.Metadata.Key}
		}

		now := time.Now()
		rec.Metadata.Generation = 1
		rec.Metadata.CreatedAt = now
		rec.Metadata.UpdatedAt = now

		data, err := encode(rec)
		if err != nil {
			return fmt.Errorf("store: encode backup %q: %w", rec.Metadata.Key, err)
		}
		return b.Put(key, data)
	})
}

// GetBackup retrieves a BackupRecord by key.
func (s *Store) GetBackup(key string) (*BackupRecord, error) {
	var rec BackupRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBackups)
		data := b.Get([]byte(key))
		if data == nil {
			return &NotFoundError{Resource: "backup", Key: key}
		}
		return decode(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkBackupRestored flips a BackupRecord's Restored flag, used by the
// orchestrator's rollback phase to record that a backup was consumed.
func (s *Store) MarkBackupRestored(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBackups)
		k := []byte(key)
		existing := b.Get(k)
		if existing == nil {
			return &NotFoundError{Resource: "backup", Key: key}
		}
		var rec BackupRecord
		if err := decode(existing, &rec); err != nil {
			return fmt.Errorf("store: decode backup %q: %w", key, err)
		}
		rec.Restored = true
		rec.Metadata.Generation++
		rec.Metadata.UpdatedAt = time.Now()

		data, err := encode(&rec)
		if err != nil {
			return fmt.Errorf("store: encode backup %q: %w", key, err)
		}
		return b.Put(k, data)
	})
}

// ListBackups returns every BackupRecord for the given upgrade ID, or all
// records if upgradeID is empty.
func (s *Store) ListBackups(upgradeID string) ([]*BackupRecord, error) {
	var out []*BackupRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBackups)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec BackupRecord
			if err := decode(v, &rec); err != nil {
				return fmt.Errorf("store: decode backup %s: %w", string(k), err)
			}
			if upgradeID == "" || rec.UpgradeID == upgradeID {
				out = append(out, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
