package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
)

// ImportBatchRepository persists bulk-import bookkeeping records. Summary
// writes merge keys into the existing JSON object so prior run results are
// never discarded.
type ImportBatchRepository interface {
	GetByID(ctx context.Context, batchID string) (*entity.ImportBatch, error)
	Start(ctx context.Context, batchID string) error
	Complete(ctx context.Context, batchID string, summaryPatch map[string]any) error
	Fail(ctx context.Context, batchID, message string) error
}

type batchRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewImportBatchRepository(db *gorm.DB, log *slog.Logger) ImportBatchRepository {
	if log == nil {
		log = slog.Default()
	}
	return &batchRepo{db: db, log: log}
}

func (r *batchRepo) GetByID(ctx context.Context, batchID string) (*entity.ImportBatch, error) {
	var batch entity.ImportBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) Start(ctx context.Context, batchID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&entity.ImportBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"status":     entity.BatchStatusProcessing,
			"started_at": now,
		}).Error
	if err != nil {
		r.log.Error("batch.start_failed", "batch_id", batchID, "err", err)
		return err
	}
	r.log.Info("batch.started", "batch_id", batchID)
	return nil
}

func (r *batchRepo) Complete(ctx context.Context, batchID string, summaryPatch map[string]any) error {
	summary, err := r.mergedSummary(ctx, batchID, summaryPatch)
	if err != nil {
		return err
	}
	now := time.Now()
	err = r.db.WithContext(ctx).Model(&entity.ImportBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"status":       entity.BatchStatusCompleted,
			"summary":      summary,
			"completed_at": now,
		}).Error
	if err != nil {
		r.log.Error("batch.complete_failed", "batch_id", batchID, "err", err)
		return err
	}
	r.log.Info("batch.completed", "batch_id", batchID)
	return nil
}

func (r *batchRepo) Fail(ctx context.Context, batchID, message string) error {
	summary, err := r.mergedSummary(ctx, batchID, map[string]any{
		"lastError":   message,
		"lastErrorAt": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	now := time.Now()
	err = r.db.WithContext(ctx).Model(&entity.ImportBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"status":       entity.BatchStatusFailed,
			"summary":      summary,
			"completed_at": now,
		}).Error
	if err != nil {
		r.log.Error("batch.fail_write_failed", "batch_id", batchID, "err", err)
		return err
	}
	r.log.Warn("batch.failed", "batch_id", batchID, "error", message)
	return nil
}

// mergedSummary reads the current summary object and merges patch into it.
func (r *batchRepo) mergedSummary(ctx context.Context, batchID string, patch map[string]any) ([]byte, error) {
	batch, err := r.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	merged := map[string]any{}
	if batch != nil && len(batch.Summary) > 0 {
		if err := json.Unmarshal(batch.Summary, &merged); err != nil {
			r.log.Warn("batch.summary_unreadable", "batch_id", batchID, "err", err)
			merged = map[string]any{}
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	return json.Marshal(merged)
}
