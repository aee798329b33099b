package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
)

// JobRepository persists queue jobs and their status transitions.
type JobRepository interface {
	Enqueue(ctx context.Context, jobType entity.JobType, payload []byte) (string, error)
	// ClaimNext atomically claims the oldest eligible pending job. Returns
	// nil, nil when no job is available or the claim race was lost.
	ClaimNext(ctx context.Context) (*entity.Job, error)
	MarkCompleted(ctx context.Context, jobID string) error
	// RecordFailure stores the handler error. The job returns to pending
	// while attempts remain under the cap; on the final attempt it is marked
	// failed. Reports whether the job is now terminal.
	RecordFailure(ctx context.Context, jobID, message string) (bool, error)
	GetByID(ctx context.Context, jobID string) (*entity.Job, error)
	ListPending(ctx context.Context, limit int) ([]entity.Job, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// RequeueStale re-pends jobs stuck in processing longer than olderThan.
	// Jobs already at the attempts cap are marked failed instead.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewJobRepository(db *gorm.DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Enqueue(ctx context.Context, jobType entity.JobType, payload []byte) (string, error) {
	job := entity.Job{
		Type:    jobType,
		Payload: payload,
		Status:  entity.JobStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		r.log.Error("queue.job.enqueue_failed", "type", jobType, "err", err)
		return "", err
	}
	r.log.Info("queue.job.enqueued", "job_id", job.ID, "type", jobType)
	return job.ID, nil
}

func (r *jobRepo) ClaimNext(ctx context.Context) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", entity.JobStatusPending, entity.JobMaxAttempts).
		Order("created_at ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Conditional update guarded on status keeps concurrent pollers from
	// claiming the same job; a lost race reads as "nothing to do".
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entity.Job{}).
		Where("id = ? AND status = ?", job.ID, entity.JobStatusPending).
		Updates(map[string]any{
			"status":     entity.JobStatusProcessing,
			"attempts":   gorm.Expr("attempts + 1"),
			"started_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	job.Status = entity.JobStatusProcessing
	job.Attempts++
	job.StartedAt = &now
	r.log.Info("queue.job.claimed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts)
	return &job, nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, jobID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&entity.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":       entity.JobStatusCompleted,
			"completed_at": now,
		}).Error
	if err != nil {
		r.log.Error("queue.job.complete_failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("queue.job.completed", "job_id", jobID)
	return nil
}

func (r *jobRepo) RecordFailure(ctx context.Context, jobID, message string) (bool, error) {
	var job entity.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return false, err
	}

	updates := map[string]any{"error": message}
	terminal := job.Attempts >= entity.JobMaxAttempts
	if terminal {
		updates["status"] = entity.JobStatusFailed
	} else {
		updates["status"] = entity.JobStatusPending
	}
	if err := r.db.WithContext(ctx).Model(&job).Updates(updates).Error; err != nil {
		r.log.Error("queue.job.failure_write_failed", "job_id", jobID, "err", err)
		return false, err
	}
	r.log.Warn("queue.job.failed", "job_id", jobID, "attempt", job.Attempts, "terminal", terminal, "error", message)
	return terminal, nil
}

func (r *jobRepo) GetByID(ctx context.Context, jobID string) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListPending(ctx context.Context, limit int) ([]entity.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []entity.Job
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]entity.JobStatus{entity.JobStatusCompleted, entity.JobStatusFailed}, cutoff).
		Delete(&entity.Job{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Info("queue.cleanup.deleted", "count", res.RowsAffected, "cutoff", cutoff)
	}
	return res.RowsAffected, nil
}

func (r *jobRepo) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	failed := r.db.WithContext(ctx).Model(&entity.Job{}).
		Where("status = ? AND started_at < ? AND attempts >= ?",
			entity.JobStatusProcessing, cutoff, entity.JobMaxAttempts).
		Updates(map[string]any{
			"status": entity.JobStatusFailed,
			"error":  "processing timed out",
		})
	if failed.Error != nil {
		return 0, failed.Error
	}

	repended := r.db.WithContext(ctx).Model(&entity.Job{}).
		Where("status = ? AND started_at < ?", entity.JobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     entity.JobStatusPending,
			"started_at": nil,
		})
	if repended.Error != nil {
		return 0, repended.Error
	}

	total := failed.RowsAffected + repended.RowsAffected
	if total > 0 {
		r.log.Warn("queue.reaper.requeued_stale", "failed", failed.RowsAffected, "repended", repended.RowsAffected)
	}
	return total, nil
}
