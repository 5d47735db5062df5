// Package storage persists schedule bundles either on the device (LocalStore)
// or in the signed-in user's account (RemoteStore). Both run every load
// through the schema migrator, so callers only ever see current bundles.
package storage

import (
	"context"
	"errors"

	"github.com/benvon/schedule-builder/internal/models"
)

var (
	// ErrNoData is returned by Load when nothing has been stored yet
	ErrNoData = errors.New("no stored schedule")
	// ErrUnauthorized is returned when the remote store rejects the session
	ErrUnauthorized = errors.New("remote session is not authorized")
	// ErrKeyNotFound is returned by a KV for a missing key
	ErrKeyNotFound = errors.New("key not found")
)

// Backend loads and saves the single bundle for one owner
type Backend interface {
	Load(ctx context.Context) (*models.Bundle, error)
	Save(ctx context.Context, bundle *models.Bundle) error
}

// KV is a string-keyed byte store on the device
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// RecordStore holds one opaque payload per user
type RecordStore interface {
	// Get returns ErrNoData when the user has no record
	Get(ctx context.Context, userID string) ([]byte, error)
	Upsert(ctx context.Context, userID string, payload []byte) error
}
