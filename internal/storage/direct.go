package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// DirectRecordStore reads and writes schedule rows without going through the
// API, for trusted tooling that holds database credentials
type DirectRecordStore struct {
	repo database.ScheduleRepositoryInterface
}

// NewDirectRecordStore creates a DirectRecordStore over repo
func NewDirectRecordStore(repo database.ScheduleRepositoryInterface) *DirectRecordStore {
	return &DirectRecordStore{repo: repo}
}

// Get returns the stored payload for userID
func (s *DirectRecordStore) Get(ctx context.Context, userID string) ([]byte, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	rec, err := s.repo.GetByUserID(ctx, id)
	if errors.Is(err, database.ErrScheduleNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// Upsert stores payload for userID
func (s *DirectRecordStore) Upsert(ctx context.Context, userID string, payload []byte) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	version := gjson.GetBytes(payload, "appVersion").String()
	if version == "" {
		version = models.AppVersion
	}
	_, err = s.repo.Upsert(ctx, id, payload, version)
	return err
}
