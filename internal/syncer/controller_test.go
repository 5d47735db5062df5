package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/schedule"
	"github.com/benvon/schedule-builder/internal/storage"
)

var fixedNow = time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// mockBackend records saves and lets tests inject failures
type mockBackend struct {
	mu       sync.Mutex
	loadFunc func(ctx context.Context) (*models.Bundle, error)
	saveErr  error
	saves    []*models.Bundle
}

func (m *mockBackend) Load(ctx context.Context) (*models.Bundle, error) {
	if m.loadFunc == nil {
		return nil, storage.ErrNoData
	}
	return m.loadFunc(ctx)
}

func (m *mockBackend) Save(_ context.Context, b *models.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, b.Clone())
	return nil
}

func (m *mockBackend) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *mockBackend) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *mockBackend) lastSave() *models.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return nil
	}
	return m.saves[len(m.saves)-1]
}

func newLocal() (*storage.LocalStore, *storage.MemoryKV) {
	kv := storage.NewMemoryKV()
	return storage.NewLocalStore(kv, nil, nil), kv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func bundleWithProjects(names ...string) *models.Bundle {
	b := &models.Bundle{Projects: []models.Project{}, Schedule: models.EmptySchedule()}
	for _, n := range names {
		if _, err := schedule.AddProject(b, n, nil); err != nil {
			panic(err)
		}
	}
	return b
}

func TestController_NotReadyBeforeStart(t *testing.T) {
	t.Parallel()

	local, _ := newLocal()
	c := New(local, nil)
	if _, err := c.AddProject(context.Background(), "x"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	if c.Status().Phase != PhaseUninitialized {
		t.Errorf("Expected uninitialized, got %s", c.Status().Phase)
	}
	if c.Snapshot() != nil {
		t.Error("Expected nil snapshot before start")
	}
}

func TestController_LocalDefaultsAndSynchronousSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	c := New(local, nil, WithClock(fixedClock))

	if err := c.Start(ctx, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(ctx, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}

	snap := c.Snapshot()
	defaults := models.DefaultProjects()
	if len(snap.Projects) != len(defaults) {
		t.Fatalf("Expected %d starter projects, got %d", len(defaults), len(snap.Projects))
	}
	if snap.NextColorIndex != len(defaults)%len(models.Palette) {
		t.Errorf("Unexpected nextColorIndex %d", snap.NextColorIndex)
	}
	if snap.CreatedAt == nil || !snap.CreatedAt.Equal(fixedNow) {
		t.Errorf("Expected createdAt %v, got %v", fixedNow, snap.CreatedAt)
	}

	p, err := c.AddProject(ctx, "Writing")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	stored, err := local.Load(ctx)
	if err != nil {
		t.Fatalf("Expected synchronous local save: %v", err)
	}
	if stored.FindProject(p.ID) < 0 {
		t.Error("Expected new project persisted locally")
	}
	if stored.UpdatedAt == nil || !stored.UpdatedAt.Equal(fixedNow) {
		t.Errorf("Expected updatedAt stamped, got %v", stored.UpdatedAt)
	}
	if st := c.Status(); st.Backend != "local" || st.Phase != PhaseReady || st.SyncError != nil {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestController_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	local, _ := newLocal()
	c := New(local, nil)
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	snap.Projects[0].Name = "mutated"
	if c.Snapshot().Projects[0].Name == "mutated" {
		t.Error("Expected Snapshot to return a deep copy")
	}
}

func TestController_DebounceCollapse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	remote := &mockBackend{}
	c := New(local, func(Identity) storage.Backend { return remote },
		WithDebounce(50*time.Millisecond))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u1"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := c.AddProject(ctx, fmt.Sprintf("P%d", i)); err != nil {
			t.Fatalf("AddProject %d: %v", i, err)
		}
	}
	if !c.Status().Saving {
		t.Error("Expected saving indicator while write is pending")
	}

	waitFor(t, func() bool { return remote.saveCount() >= 1 })
	time.Sleep(150 * time.Millisecond)

	if got := remote.saveCount(); got != 1 {
		t.Fatalf("Expected exactly 1 remote write, got %d", got)
	}
	last := remote.lastSave()
	want := c.Snapshot()
	if len(last.Projects) != len(want.Projects) {
		t.Errorf("Expected last state with %d projects, got %d", len(want.Projects), len(last.Projects))
	}
	if last.Projects[len(last.Projects)-1].Name != fmt.Sprintf("P%d", n-1) {
		t.Error("Expected the final mutation in the written bundle")
	}
	waitFor(t, func() bool { return !c.Status().Saving })
}

func TestController_FlushWritesImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	remote := &mockBackend{}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddProject(ctx, "Now"); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if remote.saveCount() != 1 {
		t.Errorf("Expected 1 write after flush, got %d", remote.saveCount())
	}
	// Nothing pending: a second flush writes nothing
	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if remote.saveCount() != 1 {
		t.Errorf("Expected no extra write, got %d", remote.saveCount())
	}
}

func TestController_MigratesLocalToRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	if err := local.Save(ctx, bundleWithProjects("Alpha", "Beta")); err != nil {
		t.Fatal(err)
	}

	records := storage.NewMemoryRecordStore()
	remoteFor := func(id Identity) storage.Backend {
		return storage.NewRemoteStore(id.UserID, records, nil, nil)
	}
	c := New(local, remoteFor, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.SetIdentity(ctx, &Identity{UserID: "user-1", Email: "a@example.com"}); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}

	remoteBundle, err := storage.NewRemoteStore("user-1", records, nil, nil).Load(ctx)
	if err != nil {
		t.Fatalf("Expected remote record after migration: %v", err)
	}
	if len(remoteBundle.Projects) != 2 || remoteBundle.Projects[0].Name != "Alpha" {
		t.Errorf("Unexpected remote projects %+v", remoteBundle.Projects)
	}
	if _, err := local.Load(ctx); !errors.Is(err, storage.ErrNoData) {
		t.Errorf("Expected local cleared after migration, got %v", err)
	}
	if got := len(c.Snapshot().Projects); got != 2 {
		t.Errorf("Expected live bundle with 2 projects, got %d", got)
	}
	if st := c.Status(); st.Backend != "remote" || st.Identity == nil || st.Identity.UserID != "user-1" {
		t.Errorf("Unexpected status %+v", st)
	}

	// Signing in again in the same session must not re-migrate
	if err := local.Save(ctx, bundleWithProjects("Gamma")); err != nil {
		t.Fatal(err)
	}
	if err := c.SetIdentity(ctx, &Identity{UserID: "user-1"}); err != nil {
		t.Fatal(err)
	}
	if records.Writes() != 1 {
		t.Errorf("Expected migration once, got %d writes", records.Writes())
	}
}

func TestController_RemoteDataWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	if err := local.Save(ctx, bundleWithProjects("Local")); err != nil {
		t.Fatal(err)
	}
	remote := &mockBackend{
		loadFunc: func(context.Context) (*models.Bundle, error) {
			return bundleWithProjects("Remote1", "Remote2", "Remote3"), nil
		},
	}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().Projects[0].Name; got != "Remote1" {
		t.Errorf("Expected remote bundle, got first project %q", got)
	}
	if remote.saveCount() != 0 {
		t.Error("Expected no migration write when remote has data")
	}
	if _, err := local.Load(ctx); err != nil {
		t.Errorf("Expected local data left alone, got %v", err)
	}
}

func TestController_EmptyLocalNotMigrated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	if err := local.Save(ctx, &models.Bundle{Projects: []models.Project{}, Schedule: models.EmptySchedule()}); err != nil {
		t.Fatal(err)
	}
	remote := &mockBackend{}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour), WithClock(fixedClock))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	if remote.saveCount() != 0 {
		t.Error("Expected empty local bundle not to be migrated")
	}
	if got := len(c.Snapshot().Projects); got != len(models.DefaultProjects()) {
		t.Errorf("Expected default bundle, got %d projects", got)
	}
}

func TestController_RemoteLoadFailureFallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	if err := local.Save(ctx, bundleWithProjects("Offline")); err != nil {
		t.Fatal(err)
	}
	loadErr := errors.New("network unreachable")
	remote := &mockBackend{
		loadFunc: func(context.Context) (*models.Bundle, error) { return nil, loadErr },
	}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if len(snap.Projects) != 1 || snap.Projects[0].Name != "Offline" {
		t.Errorf("Expected local fallback, got %+v", snap.Projects)
	}
	if st := c.Status(); !errors.Is(st.SyncError, loadErr) || st.Phase != PhaseReady {
		t.Errorf("Expected ready with sync error, got %+v", st)
	}
}

func TestController_FallbackIsReadOnlyUntilReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	if err := local.Save(ctx, bundleWithProjects("Device")); err != nil {
		t.Fatal(err)
	}
	loadErr := errors.New("timeout")
	var mu sync.Mutex
	failing := true
	remote := &mockBackend{}
	remote.loadFunc = func(context.Context) (*models.Bundle, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return nil, loadErr
		}
		return bundleWithProjects("Account A", "Account B"), nil
	}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Millisecond))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	if !c.Status().ReadOnly {
		t.Fatal("Expected read-only status after failed account load")
	}

	if _, err := c.AddProject(ctx, "Edited offline"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Expected ErrReadOnly, got %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := remote.saveCount(); got != 0 {
		t.Fatalf("Expected account record untouched, got %d writes", got)
	}
	stored, err := local.Load(ctx)
	if err != nil || len(stored.Projects) != 1 {
		t.Fatalf("Expected device copy untouched, got %+v, %v", stored, err)
	}

	mu.Lock()
	failing = false
	mu.Unlock()
	if err := c.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if st := c.Status(); st.ReadOnly || st.SyncError != nil {
		t.Fatalf("Expected writable status after reload, got %+v", st)
	}
	if _, err := c.AddProject(ctx, "Edited online"); err != nil {
		t.Fatalf("AddProject after reload: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	last := remote.lastSave()
	if last == nil || len(last.Projects) != 3 || last.Projects[0].Name != "Account A" {
		t.Fatalf("Expected account projects kept plus the new one, got %+v", last)
	}
}

func TestController_SaveFailureSetsIndicator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	saveErr := fmt.Errorf("upsert: %w", storage.ErrUnauthorized)
	remote := &mockBackend{saveErr: saveErr}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	p, err := c.AddProject(ctx, "Kept")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(ctx); !errors.Is(err, storage.ErrUnauthorized) {
		t.Errorf("Expected flush to report save error, got %v", err)
	}

	st := c.Status()
	if !errors.Is(st.SyncError, storage.ErrUnauthorized) {
		t.Errorf("Expected sync error indicator, got %v", st.SyncError)
	}
	if c.Snapshot().FindProject(p.ID) < 0 {
		t.Error("Expected bundle not rolled back after failed save")
	}

	remote.setSaveErr(nil)
	if err := c.RenameProject(ctx, p.ID, "Kept again"); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if st := c.Status(); st.SyncError != nil {
		t.Errorf("Expected indicator cleared after successful save, got %v", st.SyncError)
	}
}

func TestController_LocalSaveFailureSetsIndicator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	putErr := errors.New("quota exceeded")
	local := &failingLocal{mockBackend: mockBackend{saveErr: putErr}}
	c := New(local, nil)

	if err := c.Start(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddProject(ctx, "x"); err != nil {
		t.Fatalf("Expected mutation to succeed despite save failure: %v", err)
	}
	if st := c.Status(); !errors.Is(st.SyncError, putErr) {
		t.Errorf("Expected sync error %v, got %v", putErr, st.SyncError)
	}
}

type failingLocal struct {
	mockBackend
}

func (f *failingLocal) Clear(context.Context) error { return nil }

func TestController_RejectedMutationLeavesStateAndSkipsSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	remote := &mockBackend{}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	pid := c.Snapshot().Projects[0].ID
	for i := 0; i < models.MaxTasksPerSlot; i++ {
		if _, err := c.ScheduleProject(ctx, pid, "slot-morning-09"); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	before := c.Snapshot()

	if _, err := c.ScheduleProject(ctx, pid, "slot-morning-09"); !errors.Is(err, schedule.ErrSlotFull) {
		t.Fatalf("Expected ErrSlotFull, got %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if remote.saveCount() != 1 {
		t.Errorf("Expected rejected mutation not to be saved, got %d writes", remote.saveCount())
	}
	after := c.Snapshot()
	if len(after.Schedule["slot-morning-09"]) != models.MaxTasksPerSlot || !after.UpdatedAt.Equal(*before.UpdatedAt) {
		t.Error("Expected bundle unchanged after rejection")
	}
}

func TestController_IdentitySwitchDropsPendingWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	backends := map[string]*mockBackend{"a": {}, "b": {}}
	c := New(local, func(id Identity) storage.Backend { return backends[id.UserID] }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddProject(ctx, "for a"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetIdentity(ctx, &Identity{UserID: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if backends["a"].saveCount() != 0 {
		t.Error("Expected pending write for previous identity dropped")
	}
	if backends["b"].saveCount() != 0 {
		t.Error("Expected nothing written for new identity without a mutation")
	}
}

func TestController_SignOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, kv := newLocal()
	if err := local.Save(ctx, bundleWithProjects("Leftover")); err != nil {
		t.Fatal(err)
	}
	remote := &mockBackend{
		loadFunc: func(context.Context) (*models.Bundle, error) { return bundleWithProjects("Mine"), nil },
	}
	c := New(local, func(Identity) storage.Backend { return remote }, WithDebounce(time.Hour))
	t.Cleanup(c.Close)

	if err := c.Start(ctx, &Identity{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	st := c.Status()
	if st.Identity != nil || st.Backend != "local" || st.Phase != PhaseReady {
		t.Errorf("Unexpected status after sign-out %+v", st)
	}
	if got := len(c.Snapshot().Projects); got != len(models.DefaultProjects()) {
		t.Errorf("Expected default bundle, got %d projects", got)
	}
	if _, err := kv.Get(ctx, storage.LocalKey); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("Expected local data cleared, got %v", err)
	}
}

func TestController_MalformedImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, _ := newLocal()
	c := New(local, nil, WithClock(fixedClock))
	if err := c.Start(ctx, nil); err != nil {
		t.Fatal(err)
	}

	inputs := [][]byte{
		[]byte(`not json at all`),
		[]byte(`[1,2,3]`),
		[]byte(`{"projects":[{"name":42}],"schedule":{"slot-bogus":[{}]},"nextColorIndex":"x"}`),
		[]byte(`{"projects":[{"name":"Far"}],"createdAt":253402300800000,"updatedAt":1e30}`),
	}
	for _, in := range inputs {
		if err := c.Import(ctx, in); err != nil {
			t.Fatalf("Import(%q): %v", in, err)
		}
		snap := c.Snapshot()
		if len(snap.Schedule) != len(models.TimeSlots()) {
			t.Errorf("Import(%q): expected %d slots, got %d", in, len(models.TimeSlots()), len(snap.Schedule))
		}
		if snap.NextColorIndex < 0 {
			t.Errorf("Import(%q): negative nextColorIndex", in)
		}
		for _, p := range snap.Projects {
			if p.ID == "" || p.Name == "" || p.Color == "" {
				t.Errorf("Import(%q): malformed project %+v", in, p)
			}
		}
		if _, err := c.Export(); err != nil {
			t.Errorf("Import(%q): Export: %v", in, err)
		}
	}

	out, err := c.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := c.Import(ctx, out); err != nil {
		t.Fatalf("re-Import: %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	t.Parallel()
	tests := map[Phase]string{
		PhaseUninitialized: "uninitialized",
		PhaseLoading:       "loading",
		PhaseReady:         "ready",
		Phase(9):           "phase(9)",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(p), got, want)
		}
	}
}
