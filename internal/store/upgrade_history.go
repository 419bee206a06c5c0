package store

import (
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// CreateUpgradeRecord inserts a new upgrade_history row at the start of a
// run, before the orchestrator begins phase execution.
func (s *Store) CreateUpgradeRecord(rec *UpgradeRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUpgradeHist)
		key := []byte(rec.Metadata.Key)
		if b.Get(key) != nil {
			return &AlreadyExistsError{Resource: "upgrade_history", Key: rec.Metadata.Key}
		}

		now := time.Now()
		rec.Metadata.Generation = 1
		rec.Metadata.CreatedAt = now
		rec.Metadata.UpdatedAt = now

		data, err := encode(rec)
		if err != nil {
			return fmt.Errorf("store: encode upgrade record %q: %w", rec.Metadata.Key, err)
		}
		return b.Put(key, data)
	})
}

// UpdateUpgradeRecord updates an existing upgrade_history row, enforcing
// optimistic concurrency on Metadata.Generation.
func (s *Store) UpdateUpgradeRecord(rec *UpgradeRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUpgradeHist)
		key := []byte(rec.Metadata.Key)

		existing := b.Get(key)
		if existing == nil {
			return &NotFoundError{Resource: "upgrade_history", Key: rec.Metadata.Key}
		}
		var old UpgradeRecord
		if err := decode(existing, &old); err != nil {
			return fmt.Errorf("store: decode existing upgrade record %q: %w", rec.Metadata.Key, err)
		}
		if old.Metadata.Generation != rec.Metadata.Generation {
			return &ConflictError{
				Resource: "upgrade_history",
				Key:      rec.Metadata.Key,
				Message:  fmt.Sprintf("generation mismatch: expected %d, got %d", old.Metadata.Generation, rec.Metadata.Generation),
			}
		}

		rec.Metadata.Generation++
		rec.Metadata.UpdatedAt = time.Now()
		rec.Metadata.CreatedAt = old.Metadata.CreatedAt

		data, err := encode(rec)
		if err != nil {
			return fmt.Errorf("store: encode upgrade record %q: %w", rec.Metadata.Key, err)
		}
		return b.Put(key, data)
	})
}

// GetUpgradeRecord retrieves a single upgrade_history row by key.
func (s *Store) GetUpgradeRecord(key string) (*UpgradeRecord, error) {
	var rec UpgradeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUpgradeHist)
		data := b.Get([]byte(key))
		if data == nil {
			return &NotFoundError{Resource: "upgrade_history", Key: key}
		}
		return decode(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListUpgradeRecords returns every upgrade_history row, oldest first.
// Keys are opaque UUIDs, so cursor order carries no meaning; rows are
// sorted by StartedAt before returning.
func (s *Store) ListUpgradeRecords() ([]*UpgradeRecord, error) {
	var out []*UpgradeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUpgradeHist)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec UpgradeRecord
			if err := decode(v, &rec); err != nil {
				return fmt.Errorf("store: decode upgrade record %s: %w", string(k), err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}
