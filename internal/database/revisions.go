package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
)

// RevisionRepository stores archived copies of schedule records
type RevisionRepository struct {
	db *DB
}

// NewRevisionRepository creates a new revision repository
func NewRevisionRepository(db *DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

// Create archives a copy of rec
func (r *RevisionRepository) Create(ctx context.Context, rec *models.ScheduleRecord) (*models.ScheduleRevision, error) {
	rev := &models.ScheduleRevision{
		ID:         uuid.New(),
		UserID:     rec.UserID,
		Data:       rec.Data,
		AppVersion: rec.AppVersion,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO schedule_revisions (id, user_id, data, app_version, archived_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING archived_at
	`, rev.ID, rev.UserID, []byte(rev.Data), rev.AppVersion, time.Now()).Scan(&rev.ArchivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule revision: %w", err)
	}
	return rev, nil
}

// ListByUserID returns up to limit revisions, newest first
func (r *RevisionRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ScheduleRevision, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, data, app_version, archived_at
		FROM schedule_revisions
		WHERE user_id = $1
		ORDER BY archived_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []*models.ScheduleRevision
	for rows.Next() {
		rev := &models.ScheduleRevision{}
		var data []byte
		if err := rows.Scan(&rev.ID, &rev.UserID, &data, &rev.AppVersion, &rev.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule revision: %w", err)
		}
		rev.Data = data
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule revisions: %w", err)
	}
	return revisions, nil
}

// Prune deletes all but the newest keep revisions for the user
func (r *RevisionRepository) Prune(ctx context.Context, userID uuid.UUID, keep int) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM schedule_revisions
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM schedule_revisions
			WHERE user_id = $1
			ORDER BY archived_at DESC
			LIMIT $2
		)
	`, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune schedule revisions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteOlderThan deletes revisions archived more than age ago, across all users
func (r *RevisionRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM schedule_revisions WHERE archived_at < $1`,
		time.Now().Add(-age),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old schedule revisions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
