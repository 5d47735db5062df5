package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScheduleRecord is the server-side row holding one user's bundle
type ScheduleRecord struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Data       json.RawMessage `json:"data"`
	AppVersion string          `json:"app_version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ScheduleRevision is an archived copy of a schedule record
type ScheduleRevision struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Data       json.RawMessage `json:"data"`
	AppVersion string          `json:"app_version"`
	ArchivedAt time.Time       `json:"archived_at"`
}
