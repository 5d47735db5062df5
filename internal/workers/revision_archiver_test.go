package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/queue"
	"github.com/google/uuid"
)

type mockScheduleRepo struct {
	rec *models.ScheduleRecord
	err error
}

func (m *mockScheduleRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ScheduleRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.rec == nil {
		return nil, database.ErrScheduleNotFound
	}
	return m.rec, nil
}

func (m *mockScheduleRepo) Upsert(ctx context.Context, userID uuid.UUID, data json.RawMessage, appVersion string) (*models.ScheduleRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *mockScheduleRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return errors.New("not implemented")
}

type mockRevisionRepo struct {
	mu        sync.Mutex
	latest    []*models.ScheduleRevision
	created   []*models.ScheduleRecord
	pruneKeep int
	createErr error
	pruneErr  error
}

func (m *mockRevisionRepo) Create(ctx context.Context, rec *models.ScheduleRecord) (*models.ScheduleRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, rec)
	return &models.ScheduleRevision{ID: uuid.New(), UserID: rec.UserID, Data: rec.Data}, nil
}

func (m *mockRevisionRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ScheduleRevision, error) {
	return m.latest, nil
}

func (m *mockRevisionRepo) Prune(ctx context.Context, userID uuid.UUID, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneKeep = keep
	return 2, m.pruneErr
}

type mockJobQueue struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	enqueueErr error
	deliveries chan queue.Delivery
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan queue.Delivery, <-chan error, error) {
	if m.deliveries == nil {
		return nil, nil, errors.New("not connected")
	}
	return m.deliveries, make(chan error), nil
}

func (m *mockJobQueue) Close() error                          { return nil }
func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

type mockDelivery struct {
	j       *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockDelivery) Ack() error { m.acked = true; return nil }
func (m *mockDelivery) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}
func (m *mockDelivery) Job() *queue.Job { return m.j }

func TestRevisionArchiver_ProcessJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	data := json.RawMessage(`{"projects":[],"schedule":{}}`)
	rec := &models.ScheduleRecord{ID: uuid.New(), UserID: userID, Data: data}

	tests := []struct {
		name        string
		job         func() *queue.Job
		schedules   *mockScheduleRepo
		revisions   *mockRevisionRepo
		enqueueErr  error
		wantErr     bool
		wantAck     bool
		wantNack    bool
		wantCreated int
		wantRetries int
	}{
		{
			name:        "archives and prunes",
			job:         func() *queue.Job { return queue.NewJob(queue.JobTypeArchiveRevision, userID) },
			schedules:   &mockScheduleRepo{rec: rec},
			revisions:   &mockRevisionRepo{},
			wantAck:     true,
			wantCreated: 1,
		},
		{
			name:      "unchanged record is skipped",
			job:       func() *queue.Job { return queue.NewJob(queue.JobTypeArchiveRevision, userID) },
			schedules: &mockScheduleRepo{rec: rec},
			revisions: &mockRevisionRepo{latest: []*models.ScheduleRevision{{Data: data}}},
			wantAck:   true,
		},
		{
			name:      "deleted schedule is a no-op",
			job:       func() *queue.Job { return queue.NewJob(queue.JobTypeArchiveRevision, userID) },
			schedules: &mockScheduleRepo{},
			revisions: &mockRevisionRepo{},
			wantAck:   true,
		},
		{
			name:      "unknown job type goes to DLQ",
			job:       func() *queue.Job { return queue.NewJob(queue.JobType("bogus"), userID) },
			schedules: &mockScheduleRepo{rec: rec},
			revisions: &mockRevisionRepo{},
			wantErr:   true,
			wantNack:  true,
		},
		{
			name:        "failure is retried with delay",
			job:         func() *queue.Job { return queue.NewJob(queue.JobTypeArchiveRevision, userID) },
			schedules:   &mockScheduleRepo{err: errors.New("db down")},
			revisions:   &mockRevisionRepo{},
			wantAck:     true,
			wantRetries: 1,
		},
		{
			name: "exhausted retries go to DLQ",
			job: func() *queue.Job {
				j := queue.NewJob(queue.JobTypeArchiveRevision, userID)
				j.RetryCount = j.MaxRetries
				return j
			},
			schedules: &mockScheduleRepo{err: errors.New("db down")},
			revisions: &mockRevisionRepo{},
			wantErr:   true,
			wantNack:  true,
		},
		{
			name:       "re-enqueue failure goes to DLQ",
			job:        func() *queue.Job { return queue.NewJob(queue.JobTypeArchiveRevision, userID) },
			schedules:  &mockScheduleRepo{rec: rec},
			revisions:  &mockRevisionRepo{createErr: errors.New("insert failed")},
			enqueueErr: errors.New("broker gone"),
			wantErr:    true,
			wantNack:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &mockJobQueue{enqueueErr: tt.enqueueErr}
			a := NewRevisionArchiver(tt.schedules, tt.revisions, q, 5, nil)
			fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			a.now = func() time.Time { return fixed }

			msg := &mockDelivery{j: tt.job()}
			err := a.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", msg.acked, tt.wantAck)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("nacked = %v, want %v", msg.nacked, tt.wantNack)
			}
			if msg.nacked && msg.requeue {
				t.Error("failed jobs must not be requeued in place")
			}
			if len(tt.revisions.created) != tt.wantCreated {
				t.Errorf("created %d revisions, want %d", len(tt.revisions.created), tt.wantCreated)
			}
			if tt.wantCreated > 0 && tt.revisions.pruneKeep != 5 {
				t.Errorf("Prune keep = %d, want 5", tt.revisions.pruneKeep)
			}
			if len(q.jobs) != tt.wantRetries {
				t.Fatalf("re-enqueued %d jobs, want %d", len(q.jobs), tt.wantRetries)
			}
			if tt.wantRetries > 0 {
				retry := q.jobs[0]
				if retry.RetryCount != 1 {
					t.Errorf("RetryCount = %d, want 1", retry.RetryCount)
				}
				if retry.ID != msg.j.ID {
					t.Error("retry should keep the job ID")
				}
				if retry.NotBefore == nil || !retry.NotBefore.Equal(fixed.Add(baseRetryDelay)) {
					t.Errorf("NotBefore = %v, want %v", retry.NotBefore, fixed.Add(baseRetryDelay))
				}
				if msg.j.RetryCount != 0 {
					t.Error("original job should not be mutated")
				}
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{-1, 10 * time.Second},
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{6, 640 * time.Second},
		{50, 640 * time.Second},
	}
	for _, tt := range tests {
		if got := RetryDelay(tt.retries); got != tt.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tt.retries, got, tt.want)
		}
	}
}

func TestNewRevisionArchiver_DefaultKeep(t *testing.T) {
	t.Parallel()

	a := NewRevisionArchiver(&mockScheduleRepo{}, &mockRevisionRepo{}, &mockJobQueue{}, 0, nil)
	if a.keep != DefaultRevisionKeep {
		t.Errorf("keep = %d, want %d", a.keep, DefaultRevisionKeep)
	}
}

func TestRevisionArchiver_Run(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	revisions := &mockRevisionRepo{}
	q := &mockJobQueue{deliveries: make(chan queue.Delivery, 1)}
	a := NewRevisionArchiver(
		&mockScheduleRepo{rec: &models.ScheduleRecord{UserID: userID, Data: json.RawMessage(`{}`)}},
		revisions, q, 20, nil,
	)

	msg := &mockDelivery{j: queue.NewJob(queue.JobTypeArchiveRevision, userID)}
	q.deliveries <- msg
	close(q.deliveries)

	if err := a.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !msg.acked {
		t.Error("delivered job was not acked")
	}
	if len(revisions.created) != 1 {
		t.Errorf("created %d revisions, want 1", len(revisions.created))
	}
}

func TestRevisionArchiver_RunConsumeError(t *testing.T) {
	t.Parallel()

	a := NewRevisionArchiver(&mockScheduleRepo{}, &mockRevisionRepo{}, &mockJobQueue{}, 20, nil)
	if err := a.Run(context.Background(), 1); err == nil {
		t.Error("Run() should fail when Consume fails")
	}
}
