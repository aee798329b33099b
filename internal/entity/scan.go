package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScanType string

const (
	ScanTypeBusinessCard  ScanType = "business_card"
	ScanTypeLiquorLicense ScanType = "liquor_license"
)

type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// ImageScan is a user-submitted image awaiting structured extraction.
// ExtractedData holds the JSON-encoded BusinessCardData or LicenseData once
// the vision handler has run.
type ImageScan struct {
	ID            string     `gorm:"type:uuid;primaryKey"`
	TenantID      string     `gorm:"type:uuid;not null;index"`
	UserID        string     `gorm:"type:uuid;not null"`
	ImageURL      string     `gorm:"not null"`
	ScanType      ScanType   `gorm:"size:32;not null"`
	Status        ScanStatus `gorm:"size:16;not null;default:pending"`
	ExtractedData []byte     `gorm:"type:jsonb"`
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

func (s *ImageScan) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
