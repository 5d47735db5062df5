package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
)

// ErrScheduleNotFound is returned when a user has no stored schedule
var ErrScheduleNotFound = errors.New("schedule not found")

// ScheduleRepository stores one schedule record per user
type ScheduleRepository struct {
	db *DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetByUserID retrieves the user's schedule record
func (r *ScheduleRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ScheduleRecord, error) {
	rec := &models.ScheduleRecord{}
	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, data, app_version, created_at, updated_at
		FROM schedules
		WHERE user_id = $1
	`, userID).Scan(
		&rec.ID,
		&rec.UserID,
		&data,
		&rec.AppVersion,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	rec.Data = json.RawMessage(data)
	return rec, nil
}

// Upsert creates or replaces the user's schedule record. Last write wins.
func (r *ScheduleRepository) Upsert(ctx context.Context, userID uuid.UUID, data json.RawMessage, appVersion string) (*models.ScheduleRecord, error) {
	now := time.Now()
	rec := &models.ScheduleRecord{UserID: userID, Data: data, AppVersion: appVersion}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO schedules (id, user_id, data, app_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			app_version = EXCLUDED.app_version,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, uuid.New(), userID, []byte(data), appVersion, now).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert schedule: %w", err)
	}
	return rec, nil
}

// DeleteByUserID removes the user's schedule record
func (r *ScheduleRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}
