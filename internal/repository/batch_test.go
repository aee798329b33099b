package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestImportBatchSummaryMergesAcrossRuns(t *testing.T) {
	db := newTestDB(t)
	repo := NewImportBatchRepository(db, nil)
	ctx := context.Background()

	batch := entity.ImportBatch{
		TenantID: uuid.NewString(),
		FileKey:  "report.csv",
		DataType: entity.BatchDataTypeSalesReport,
		Status:   entity.BatchStatusPending,
		Summary:  []byte(`{"uploadedBy":"ops","rowEstimate":120}`),
	}
	require.NoError(t, db.Create(&batch).Error)

	require.NoError(t, repo.Start(ctx, batch.ID))
	require.NoError(t, repo.Complete(ctx, batch.ID, map[string]any{
		"lastRunAt":  "2025-08-01T00:00:00Z",
		"lastResult": map[string]any{"orderLines": 3},
	}))

	got, err := repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.BatchStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(got.Summary, &summary))
	assert.Equal(t, "ops", summary["uploadedBy"])
	assert.Equal(t, float64(120), summary["rowEstimate"])
	assert.Equal(t, "2025-08-01T00:00:00Z", summary["lastRunAt"])

	// a later failure merges the error keys without losing the result
	require.NoError(t, repo.Fail(ctx, batch.ID, "download import file \"report.csv\": no such file"))
	got, err = repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(got.Summary, &summary))
	assert.Equal(t, entity.BatchStatusFailed, got.Status)
	assert.Contains(t, summary["lastError"], "report.csv")
	assert.NotEmpty(t, summary["lastErrorAt"])
	assert.Equal(t, "2025-08-01T00:00:00Z", summary["lastRunAt"])
	assert.Equal(t, "ops", summary["uploadedBy"])
}

func TestImportBatchGetByIDMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewImportBatchRepository(db, nil)

	got, err := repo.GetByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}
