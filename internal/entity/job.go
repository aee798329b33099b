package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType identifies which handler a queued job is routed to.
type JobType string

const (
	JobTypeImageExtraction    JobType = "image_extraction"
	JobTypeCustomerEnrichment JobType = "customer_enrichment"
	JobTypeReportGeneration   JobType = "report_generation"
	JobTypeBulkImport         JobType = "bulk_import"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobMaxAttempts caps how often a job may be claimed. A job that has failed
// this many times is terminal and never selected again.
const JobMaxAttempts = 3

// Job is one unit of asynchronous work. Payload is the JSON-encoded,
// type-specific payload; handlers decode it at their boundary.
type Job struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Type        JobType   `gorm:"size:32;not null;index"`
	Payload     []byte    `gorm:"type:jsonb"`
	Status      JobStatus `gorm:"size:16;not null;index:idx_jobs_claim"`
	Attempts    int       `gorm:"not null;default:0"`
	Error       string
	CreatedAt   time.Time `gorm:"index:idx_jobs_claim"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}
