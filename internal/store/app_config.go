package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// GetAppConfig returns the singleton app_config row, or a zero-value
// AppConfig with Metadata.Key set if it has never been written.
func (s *Store) GetAppConfig() (*AppConfig, error) {
	var cfg AppConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppConfig)
		data := b.Get([]byte(appConfigKey))
		if data == nil {
			cfg = AppConfig{Metadata: Metadata{Key: appConfigKey}}
			return nil
		}
		return decode(data, &cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PutAppConfig upserts the singleton app_config row.
func (s *Store) PutAppConfig(cfg *AppConfig) error {
	cfg.Metadata.Key = appConfigKey
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppConfig)
		now := time.Now()
		if existing := b.Get([]byte(appConfigKey)); existing != nil {
			var old AppConfig
			if err := decode(existing, &old); err != nil {
				return fmt.Errorf("store: decode existing app config: %w", err)
			}
			cfg.Metadata.Generation = old.Metadata.Generation + 1
			cfg.Metadata.CreatedAt = old.Metadata.CreatedAt
		} else {
			cfg.Metadata.Generation = 1
			cfg.Metadata.CreatedAt = now
		}
		cfg.Metadata.UpdatedAt = now

		data, err := encode(cfg)
		if err != nil {
			return fmt.Errorf("store: encode app config: %w", err)
		}
		return b.Put([]byte(appConfigKey), data)
	})
}
