package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benvon/schedule-builder/internal/migrate"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

const (
	// LocalKey is the fixed key the bundle is stored under on the device
	LocalKey = "schedule-builder-data"
	// LegacyLocalKey is where 1.x clients stored their data
	LegacyLocalKey = "schedule-builder-v1"
)

// LocalStore keeps the bundle on the device. Load never fails with anything
// but ErrNoData; read problems are logged and treated as absence.
type LocalStore struct {
	kv       KV
	migrator *migrate.Migrator
	logger   *zap.Logger
}

// NewLocalStore creates a LocalStore over kv
func NewLocalStore(kv KV, migrator *migrate.Migrator, logger *zap.Logger) *LocalStore {
	if migrator == nil {
		migrator = migrate.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{kv: kv, migrator: migrator, logger: logger}
}

// Load reads and migrates the stored bundle
func (s *LocalStore) Load(ctx context.Context) (*models.Bundle, error) {
	raw, err := s.kv.Get(ctx, LocalKey)
	if errors.Is(err, ErrKeyNotFound) {
		return s.loadLegacy(ctx)
	}
	if err != nil {
		s.logger.Warn("local_storage_read_failed", zap.Error(err))
		return nil, ErrNoData
	}
	return s.migrator.Migrate(raw), nil
}

// loadLegacy upgrades data stored under the 1.x key and moves it to LocalKey
func (s *LocalStore) loadLegacy(ctx context.Context) (*models.Bundle, error) {
	raw, err := s.kv.Get(ctx, LegacyLocalKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		s.logger.Warn("local_storage_read_failed", zap.String("key", LegacyLocalKey), zap.Error(err))
		return nil, ErrNoData
	}

	bundle := s.migrator.Migrate(raw)
	if err := s.Save(ctx, bundle); err != nil {
		s.logger.Warn("legacy_local_data_rewrite_failed", zap.Error(err))
		return bundle, nil
	}
	if err := s.kv.Delete(ctx, LegacyLocalKey); err != nil {
		s.logger.Warn("legacy_local_data_delete_failed", zap.Error(err))
	}
	s.logger.Info("legacy_local_data_migrated")
	return bundle, nil
}

// Save writes the bundle, stamped with the legacy version field
func (s *LocalStore) Save(ctx context.Context, bundle *models.Bundle) error {
	raw, err := EncodeLocal(bundle)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, LocalKey, raw); err != nil {
		return fmt.Errorf("failed to save local schedule: %w", err)
	}
	return nil
}

// Clear removes the stored bundle, including any left under the legacy key
func (s *LocalStore) Clear(ctx context.Context) error {
	for _, key := range []string{LocalKey, LegacyLocalKey} {
		if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, ErrKeyNotFound) {
			return fmt.Errorf("failed to clear local schedule: %w", err)
		}
	}
	return nil
}

// EncodeLocal encodes a bundle in the on-device format: the bundle plus a
// version field older readers look for
func EncodeLocal(bundle *models.Bundle) ([]byte, error) {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule: %w", err)
	}
	version := bundle.AppVersion
	if version == "" {
		version = models.AppVersion
	}
	raw, err = sjson.SetBytes(raw, "version", version)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp schedule version: %w", err)
	}
	return raw, nil
}
