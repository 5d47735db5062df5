package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/tidwall/gjson"
)

type failingKV struct {
	getErr error
	putErr error
}

func (f *failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }
func (f *failingKV) Put(context.Context, string, []byte) error { return f.putErr }
func (f *failingKV) Delete(context.Context, string) error { return nil }

func sampleBundle() *models.Bundle {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := models.DefaultBundle(now)
	b.Schedule["slot-morning-09"] = []models.ScheduledTask{{
		ID:                      "task-1",
		ProjectID:               b.Projects[0].ID,
		ProjectName:             b.Projects[0].Name,
		ProjectColor:            b.Projects[0].Color,
		OriginalProjectSubTasks: append([]models.SubTask(nil), b.Projects[0].SubTasks...),
	}}
	return b
}

func TestLocalStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewLocalStore(kv, nil, nil)

	if _, err := s.Load(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("Expected ErrNoData on empty store, got %v", err)
	}

	want := sampleBundle()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := kv.Get(ctx, LocalKey)
	if err != nil {
		t.Fatalf("Expected data under %s: %v", LocalKey, err)
	}
	if v := gjson.GetBytes(raw, "version").String(); v != models.AppVersion {
		t.Errorf("Expected legacy version field %s, got %q", models.AppVersion, v)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Projects) != len(want.Projects) {
		t.Errorf("Expected %d projects, got %d", len(want.Projects), len(got.Projects))
	}
	if len(got.Schedule["slot-morning-09"]) != 1 {
		t.Error("Expected scheduled task to survive round trip")
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(*want.CreatedAt) {
		t.Errorf("Expected createdAt %v, got %v", want.CreatedAt, got.CreatedAt)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData after Clear, got %v", err)
	}
}

func TestLocalStore_ReadErrorIsAbsence(t *testing.T) {
	t.Parallel()

	s := NewLocalStore(&failingKV{getErr: errors.New("disk on fire")}, nil, nil)
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}

func TestLocalStore_SaveErrorReturned(t *testing.T) {
	t.Parallel()

	putErr := errors.New("quota exceeded")
	s := NewLocalStore(&failingKV{putErr: putErr}, nil, nil)
	if err := s.Save(context.Background(), sampleBundle()); !errors.Is(err, putErr) {
		t.Errorf("Expected wrapped %v, got %v", putErr, err)
	}
}

func TestLocalStore_CorruptDataMigrates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := NewMemoryKV()
	if err := kv.Put(ctx, LocalKey, []byte(`{"projects":"nope","schedule":[1,2]`)); err != nil {
		t.Fatal(err)
	}
	b, err := NewLocalStore(kv, nil, nil).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.Schedule) != len(models.TimeSlots()) {
		t.Errorf("Expected full empty schedule, got %d slots", len(b.Schedule))
	}
}

func TestLocalStore_LegacyKeyMigrated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := NewMemoryKV()
	legacy := `{"version":"1.0.0","colorIndex":3,"projects":[{"id":"p1","name":"Old","subTasks":[]}],"schedule":{"slot-evening-20":[{"id":"t1","projectId":"p1"}]}}`
	if err := kv.Put(ctx, LegacyLocalKey, []byte(legacy)); err != nil {
		t.Fatal(err)
	}

	b, err := NewLocalStore(kv, nil, nil).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.NextColorIndex != 3 {
		t.Errorf("Expected nextColorIndex 3, got %d", b.NextColorIndex)
	}
	if b.Projects[0].Color != models.Palette[0] {
		t.Errorf("Expected palette color assigned, got %q", b.Projects[0].Color)
	}
	if len(b.Schedule["slot-evening-20"]) != 1 {
		t.Error("Expected legacy task kept")
	}

	if _, err := kv.Get(ctx, LegacyLocalKey); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected legacy key deleted, got %v", err)
	}
	if _, err := kv.Get(ctx, LocalKey); err != nil {
		t.Errorf("Expected data rewritten under %s: %v", LocalKey, err)
	}
}

func TestLocalStore_ClearRemovesBothKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewLocalStore(kv, nil, nil)
	if err := s.Save(ctx, sampleBundle()); err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(ctx, LegacyLocalKey, []byte(`{"version":"1.0.0","projects":[]}`)); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, key := range []string{LocalKey, LegacyLocalKey} {
		if _, err := kv.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Expected %s deleted, got %v", key, err)
		}
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData after Clear, got %v", err)
	}

	// Clearing an empty store is not an error
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSQLiteKV(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "local.db")
	kv, err := OpenSQLiteKV(path)
	if err != nil {
		t.Fatalf("OpenSQLiteKV: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if err := kv.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := kv.Get(ctx, "k")
	if err != nil || string(got) != "v2" {
		t.Errorf("Get = %q, %v; want v2", got, err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}

	// LocalStore over SQLite behaves like over memory
	s := NewLocalStore(kv, nil, nil)
	if err := s.Save(ctx, sampleBundle()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(ctx); err != nil {
		t.Errorf("Load: %v", err)
	}
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := NewMemoryKV()
	v := []byte("abc")
	_ = kv.Put(ctx, "k", v)
	v[0] = 'x'
	got, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Expected stored copy, got %q", got)
	}
}
