package database

import (
	"context"
	"encoding/json"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
)

// ScheduleRepositoryInterface defines the schedule record operations.
// Implemented by ScheduleRepository and the Redis read-through cache.
type ScheduleRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ScheduleRecord, error)
	Upsert(ctx context.Context, userID uuid.UUID, data json.RawMessage, appVersion string) (*models.ScheduleRecord, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// RevisionRepositoryInterface defines the revision archive operations
type RevisionRepositoryInterface interface {
	Create(ctx context.Context, rec *models.ScheduleRecord) (*models.ScheduleRevision, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ScheduleRevision, error)
	Prune(ctx context.Context, userID uuid.UUID, keep int) (int, error)
}

// UserRepositoryInterface defines the user lookups the auth middleware needs
type UserRepositoryInterface interface {
	EnsureFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// Ensure concrete types implement the interfaces
var (
	_ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)
	_ RevisionRepositoryInterface = (*RevisionRepository)(nil)
	_ UserRepositoryInterface     = (*UserRepository)(nil)
)
