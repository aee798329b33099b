package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
)

// ImageScanRepository persists image scans and their extraction results.
type ImageScanRepository interface {
	GetByID(ctx context.Context, scanID string) (*entity.ImageScan, error)
	MarkProcessing(ctx context.Context, scanID string) error
	FinishSuccess(ctx context.Context, scanID string, extractedData []byte) error
	FinishFailure(ctx context.Context, scanID, message string) error
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]entity.ImageScan, error)
}

type scanRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewImageScanRepository(db *gorm.DB, log *slog.Logger) ImageScanRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scanRepo{db: db, log: log}
}

func (r *scanRepo) GetByID(ctx context.Context, scanID string) (*entity.ImageScan, error) {
	var scan entity.ImageScan
	err := r.db.WithContext(ctx).First(&scan, "id = ?", scanID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (r *scanRepo) MarkProcessing(ctx context.Context, scanID string) error {
	return r.db.WithContext(ctx).Model(&entity.ImageScan{}).
		Where("id = ?", scanID).
		Update("status", entity.ScanStatusProcessing).Error
}

func (r *scanRepo) FinishSuccess(ctx context.Context, scanID string, extractedData []byte) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&entity.ImageScan{}).
		Where("id = ?", scanID).
		Updates(map[string]any{
			"status":         entity.ScanStatusCompleted,
			"extracted_data": extractedData,
			"error_message":  "",
			"completed_at":   now,
		}).Error
	if err != nil {
		r.log.Error("scan.finish_success_failed", "scan_id", scanID, "err", err)
		return err
	}
	r.log.Info("scan.completed", "scan_id", scanID)
	return nil
}

func (r *scanRepo) FinishFailure(ctx context.Context, scanID, message string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&entity.ImageScan{}).
		Where("id = ?", scanID).
		Updates(map[string]any{
			"status":        entity.ScanStatusFailed,
			"error_message": message,
			"completed_at":  now,
		}).Error
	if err != nil {
		r.log.Error("scan.finish_failure_failed", "scan_id", scanID, "err", err)
		return err
	}
	r.log.Warn("scan.failed", "scan_id", scanID, "error", message)
	return nil
}

func (r *scanRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]entity.ImageScan, error) {
	if limit <= 0 {
		limit = 50
	}
	var scans []entity.ImageScan
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&scans).Error
	return scans, err
}
