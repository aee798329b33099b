package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

const (
	BatchDataTypeSalesReport = "sales_report"
	BatchDataTypeOrders      = "orders"
)

// ImportBatch is the bookkeeping record for one bulk CSV upload. Summary is a
// JSON object accumulating lastRunAt/lastResult/lastError keys; writers merge
// into it rather than replacing it wholesale.
type ImportBatch struct {
	ID          string      `gorm:"type:uuid;primaryKey"`
	TenantID    string      `gorm:"type:uuid;not null;index"`
	FileKey     string      `gorm:"not null"`
	DataType    string      `gorm:"size:32;not null"`
	Status      BatchStatus `gorm:"size:16;not null;default:pending"`
	Summary     []byte      `gorm:"type:jsonb"`
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (b *ImportBatch) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
