package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/benvon/schedule-builder/internal/models"
)

type stubRecords struct {
	getFunc    func(ctx context.Context, userID string) ([]byte, error)
	upsertFunc func(ctx context.Context, userID string, payload []byte) error
}

func (s *stubRecords) Get(ctx context.Context, userID string) ([]byte, error) {
	return s.getFunc(ctx, userID)
}

func (s *stubRecords) Upsert(ctx context.Context, userID string, payload []byte) error {
	return s.upsertFunc(ctx, userID, payload)
}

func TestRemoteStore_LoadSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	records := NewMemoryRecordStore()
	s := NewRemoteStore("user-1", records, nil, nil)

	if _, err := s.Load(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("Expected ErrNoData, got %v", err)
	}
	if err := s.Save(ctx, sampleBundle()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if records.Writes() != 1 {
		t.Errorf("Expected 1 write, got %d", records.Writes())
	}
	b, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.Projects) != len(models.DefaultProjects()) {
		t.Errorf("Unexpected projects %d", len(b.Projects))
	}

	other := NewRemoteStore("user-2", records, nil, nil)
	if _, err := other.Load(ctx); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected records to be isolated per user, got %v", err)
	}
}

func TestRemoteStore_TransportErrorIsNotAbsence(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	s := NewRemoteStore("u", &stubRecords{
		getFunc:    func(context.Context, string) ([]byte, error) { return nil, boom },
		upsertFunc: func(context.Context, string, []byte) error { return boom },
	}, nil, nil)

	_, err := s.Load(context.Background())
	if errors.Is(err, ErrNoData) || !errors.Is(err, boom) {
		t.Errorf("Expected wrapped transport error, got %v", err)
	}
	if err := s.Save(context.Background(), sampleBundle()); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped save error, got %v", err)
	}
}
