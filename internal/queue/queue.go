package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/repository"
)

// Handler executes one claimed job. A returned error records a failed
// attempt; the job re-pends until the attempts cap, then goes terminal.
type Handler func(ctx context.Context, job *entity.Job) error

// Queue is the database-backed job queue core. It holds no mutable state
// between polls beyond the store, so ProcessNextJob is safe to call in a
// tight loop, and the claim is a conditional update so concurrent pollers
// cannot double-run a job.
type Queue struct {
	jobs     repository.JobRepository
	handlers map[entity.JobType]Handler
	log      *slog.Logger
}

func New(jobs repository.JobRepository, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		jobs:     jobs,
		handlers: map[entity.JobType]Handler{},
		log:      log,
	}
}

// Register routes a job type to its handler.
func (q *Queue) Register(jobType entity.JobType, h Handler) {
	q.handlers[jobType] = h
}

// Enqueue persists a new pending job and returns its id. Payload shape is
// not validated here; handlers decode and validate at their boundary.
func (q *Queue) Enqueue(ctx context.Context, jobType entity.JobType, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return q.jobs.Enqueue(ctx, jobType, b)
}

// ProcessNextJob claims the oldest eligible pending job, dispatches it, and
// records the outcome. Returns false when there was nothing to do or the
// attempt failed, true when a job completed.
func (q *Queue) ProcessNextJob(ctx context.Context) (bool, error) {
	job, err := q.jobs.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	herr := q.dispatch(ctx, job)
	if herr != nil {
		if _, rerr := q.jobs.RecordFailure(ctx, job.ID, herr.Error()); rerr != nil {
			return false, rerr
		}
		return false, nil
	}

	if err := q.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return false, err
	}
	return true, nil
}

// dispatch routes by type. An unrecognized type is an ordinary failure, not
// a panic that aborts the poll loop; a panicking handler is converted to an
// error so the attempt is still recorded.
func (q *Queue) dispatch(ctx context.Context, job *entity.Job) (err error) {
	handler, ok := q.handlers[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

// JobStatus looks up one job; nil when absent.
func (q *Queue) JobStatus(ctx context.Context, jobID string) (*entity.Job, error) {
	return q.jobs.GetByID(ctx, jobID)
}

// PendingJobs returns pending jobs oldest-first, capped at limit (default 50).
func (q *Queue) PendingJobs(ctx context.Context, limit int) ([]entity.Job, error) {
	return q.jobs.ListPending(ctx, limit)
}

// CleanupOldJobs purges terminal jobs older than daysOld (default 30).
// Pending and processing jobs are never purged regardless of age.
func (q *Queue) CleanupOldJobs(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		daysOld = 30
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)
	return q.jobs.DeleteFinishedBefore(ctx, cutoff)
}

// RequeueStale re-pends jobs stuck in processing longer than olderThan,
// covering handlers that died without recording an outcome.
func (q *Queue) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return q.jobs.RequeueStale(ctx, olderThan)
}
