// Package workers holds the queue consumers run by cmd/worker.
package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/queue"
	"github.com/benvon/schedule-builder/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultRevisionKeep is how many revisions are kept per user
const DefaultRevisionKeep = 20

const baseRetryDelay = 10 * time.Second

// RevisionArchiver copies a user's current schedule record into the revision
// archive and prunes old revisions
type RevisionArchiver struct {
	schedules database.ScheduleRepositoryInterface
	revisions database.RevisionRepositoryInterface
	jobQueue  queue.JobQueue // for delayed retries
	keep      int
	logger    *zap.Logger
	now       func() time.Time
}

// NewRevisionArchiver creates a new revision archiver
func NewRevisionArchiver(
	schedules database.ScheduleRepositoryInterface,
	revisions database.RevisionRepositoryInterface,
	jobQueue queue.JobQueue,
	keep int,
	logger *zap.Logger,
) *RevisionArchiver {
	if keep < 1 {
		keep = DefaultRevisionKeep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionArchiver{
		schedules: schedules,
		revisions: revisions,
		jobQueue:  jobQueue,
		keep:      keep,
		logger:    logger,
		now:       time.Now,
	}
}

// Run consumes jobs until ctx is cancelled or the queue closes the delivery channel
func (a *RevisionArchiver) Run(ctx context.Context, prefetch int) error {
	msgChan, errChan, err := a.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			a.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("message_channel_closed")
				return nil
			}
			if err := a.ProcessJob(ctx, msg); err != nil {
				job := msg.Job()
				a.logger.Error("job_failed",
					zap.Error(err),
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
					zap.Int("retry_count", job.RetryCount),
				)
			}
		}
	}
}

// ProcessJob handles one delivery and settles it. A returned error has
// already been dealt with by retry or dead-lettering and is for logging only.
func (a *RevisionArchiver) ProcessJob(ctx context.Context, msg queue.Delivery) error {
	job := msg.Job()

	if job.Type != queue.JobTypeArchiveRevision {
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	ctx, end := telemetry.StartJobSpan(ctx, string(job.Type), job.ID.String())
	err := a.Archive(ctx, job)
	end(err)
	if err != nil {
		return a.handleJobError(ctx, msg, job, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// Archive stores the user's current record as a revision unless it matches
// the newest one, then prunes to the configured count
func (a *RevisionArchiver) Archive(ctx context.Context, job *queue.Job) error {
	rec, err := a.schedules.GetByUserID(ctx, job.UserID)
	if errors.Is(err, database.ErrScheduleNotFound) {
		a.logger.Debug("archive_skipped_no_schedule", zap.String("user_id", job.UserID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	latest, err := a.revisions.ListByUserID(ctx, job.UserID, 1)
	if err != nil {
		return fmt.Errorf("failed to load latest revision: %w", err)
	}
	if len(latest) > 0 && bytes.Equal(latest[0].Data, rec.Data) {
		a.logger.Debug("archive_skipped_unchanged", zap.String("user_id", job.UserID.String()))
		return nil
	}

	rev, err := a.revisions.Create(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to archive schedule: %w", err)
	}

	pruned, err := a.revisions.Prune(ctx, job.UserID, a.keep)
	if err != nil {
		return fmt.Errorf("failed to prune revisions: %w", err)
	}

	a.logger.Info("schedule_revision_archived",
		zap.String("user_id", job.UserID.String()),
		zap.String("revision_id", rev.ID.String()),
		zap.Int("pruned", pruned),
	)
	return nil
}

// handleJobError re-enqueues job with exponential backoff while it has
// retries left and dead-letters it otherwise
func (a *RevisionArchiver) handleJobError(ctx context.Context, msg queue.Delivery, job *queue.Job, jobErr error) error {
	if !job.CanRetry() {
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("retries exhausted: %w", jobErr)
	}

	retry := *job
	delay := RetryDelay(job.RetryCount)
	notBefore := a.now().Add(delay)
	retry.NotBefore = &notBefore
	retry.IncrementRetry()

	if err := a.jobQueue.Enqueue(ctx, &retry); err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue after %v: %w", jobErr, err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		a.logger.Warn("job_ack_failed", zap.Error(ackErr))
	}

	a.logger.Warn("job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", retry.RetryCount),
		zap.Duration("delay", delay),
		zap.Error(jobErr),
	)
	return nil
}

// RetryDelay doubles from ten seconds per previous attempt
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 6 {
		retryCount = 6
	}
	return baseRetryDelay << retryCount
}
