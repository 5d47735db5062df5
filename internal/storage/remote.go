package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benvon/schedule-builder/internal/migrate"
	"github.com/benvon/schedule-builder/internal/models"
	"go.uber.org/zap"
)

// RemoteStore keeps one user's bundle in a RecordStore
type RemoteStore struct {
	userID   string
	records  RecordStore
	migrator *migrate.Migrator
	logger   *zap.Logger
}

// NewRemoteStore creates a RemoteStore for userID
func NewRemoteStore(userID string, records RecordStore, migrator *migrate.Migrator, logger *zap.Logger) *RemoteStore {
	if migrator == nil {
		migrator = migrate.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteStore{
		userID:   userID,
		records:  records,
		migrator: migrator,
		logger:   logger.With(zap.String("user_id", userID)),
	}
}

// UserID returns the owner of this store
func (s *RemoteStore) UserID() string {
	return s.userID
}

// Load fetches and migrates the user's record. Absence is ErrNoData; every
// other failure is returned wrapped so callers can fall back.
func (s *RemoteStore) Load(ctx context.Context) (*models.Bundle, error) {
	payload, err := s.records.Get(ctx, s.userID)
	if errors.Is(err, ErrNoData) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load remote schedule: %w", err)
	}
	result := s.migrator.Run(payload)
	if result.Repaired() {
		s.logger.Info("remote_schedule_repaired", zap.Int("repair_count", len(result.Repairs)))
	}
	return result.Bundle, nil
}

// Save upserts the user's record
func (s *RemoteStore) Save(ctx context.Context, bundle *models.Bundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	if err := s.records.Upsert(ctx, s.userID, payload); err != nil {
		return fmt.Errorf("failed to save remote schedule: %w", err)
	}
	return nil
}

// MemoryRecordStore is an in-process RecordStore
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	writes  int
}

// NewMemoryRecordStore creates an empty MemoryRecordStore
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string][]byte)}
}

// Get returns a copy of the user's payload
func (m *MemoryRecordStore) Get(_ context.Context, userID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.records[userID]
	if !ok {
		return nil, ErrNoData
	}
	return append([]byte(nil), p...), nil
}

// Upsert replaces the user's payload
func (m *MemoryRecordStore) Upsert(_ context.Context, userID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = append([]byte(nil), payload...)
	m.writes++
	return nil
}

// Writes returns how many upserts have been applied
func (m *MemoryRecordStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
