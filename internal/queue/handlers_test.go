package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/ingest"
	"github.com/leora-hq/leora-core/internal/repository"
	"github.com/leora-hq/leora-core/internal/storage"
	"github.com/leora-hq/leora-core/internal/vision"
)

type stubExtractor struct {
	card    *vision.BusinessCardData
	license *vision.LicenseData
	err     error
}

func (s *stubExtractor) ExtractBusinessCard(context.Context, string) (*vision.BusinessCardData, error) {
	return s.card, s.err
}

func (s *stubExtractor) ExtractLiquorLicense(context.Context, string) (*vision.LicenseData, error) {
	return s.license, s.err
}

func newTestHandlers(t *testing.T, db *gorm.DB, extractor vision.Extractor, importDir string) (*Queue, *Handlers) {
	t.Helper()
	log := slog.Default()
	scanProc := vision.NewScanProcessor(repository.NewImageScanRepository(db, log), extractor, log)
	h := NewHandlers(
		scanProc,
		repository.NewImportBatchRepository(db, log),
		storage.NewLocalStore(importDir, log),
		ingest.NewService(db, log),
		log,
	)
	q := New(repository.NewJobRepository(db, log), log)
	h.RegisterAll(q)
	return q, h
}

const salesReportWithBadSku = "sep=,\n" +
	"Sales report export\n" +
	"\n" +
	"Invoice number,Invoice date,Posted date,Due date,Status,Customer,Salesperson,Shipping address line 1,Shipping address city,SKU,Item,Qty.,Liters,Unit price,Net price\n" +
	"INV-100,2025-01-01,2025-01-01,2025-01-31,Delivered,Blue Heron Bistro,Dana,12 Harbor Rd,Portland,SKU-1,Pinot Noir,6,4.5,10.00,60.00\n" +
	"INV-100,2025-01-01,2025-01-01,2025-01-31,Delivered,Blue Heron Bistro,Dana,12 Harbor Rd,Portland,SKU-MISSING,Mystery Wine,2,1.5,12.00,24.00\n"

func TestBulkImportJobIngestsAndSummarizes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.csv"), []byte(salesReportWithBadSku), 0o644))

	tenant := entity.Tenant{Name: "Leora Test"}
	require.NoError(t, db.Create(&tenant).Error)
	require.NoError(t, db.Create(&entity.Sku{TenantID: tenant.ID, Code: "SKU-1", Name: "Pinot Noir"}).Error)

	batch := entity.ImportBatch{
		TenantID: tenant.ID,
		FileKey:  "report.csv",
		DataType: entity.BatchDataTypeSalesReport,
		Status:   entity.BatchStatusPending,
	}
	require.NoError(t, db.Create(&batch).Error)

	q, _ := newTestHandlers(t, db, &stubExtractor{}, dir)
	_, err := q.Enqueue(ctx, entity.JobTypeBulkImport, BulkImportPayload{BatchID: batch.ID})
	require.NoError(t, err)

	processed, err := q.ProcessNextJob(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	var orderCount, lineCount int64
	require.NoError(t, db.Model(&entity.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&entity.OrderLine{}).Count(&lineCount).Error)
	assert.Equal(t, int64(1), orderCount)
	assert.Equal(t, int64(1), lineCount)

	var got entity.ImportBatch
	require.NoError(t, db.First(&got, "id = ?", batch.ID).Error)
	assert.Equal(t, entity.BatchStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(got.Summary, &summary))
	assert.NotEmpty(t, summary["lastRunAt"])
	result, ok := summary["lastResult"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), result["orderLines"])
	assert.Contains(t, result["missingSkus"], "SKU-MISSING")
}

func TestBulkImportFailureMergesErrorAndRethrows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tenant := entity.Tenant{Name: "Leora Test"}
	require.NoError(t, db.Create(&tenant).Error)

	batch := entity.ImportBatch{
		TenantID: tenant.ID,
		FileKey:  "does-not-exist.csv",
		DataType: entity.BatchDataTypeSalesReport,
		Status:   entity.BatchStatusPending,
		Summary:  []byte(`{"uploadedBy":"ops"}`),
	}
	require.NoError(t, db.Create(&batch).Error)

	q, _ := newTestHandlers(t, db, &stubExtractor{}, t.TempDir())
	jobID, err := q.Enqueue(ctx, entity.JobTypeBulkImport, BulkImportPayload{BatchID: batch.ID})
	require.NoError(t, err)

	processed, err := q.ProcessNextJob(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	var got entity.ImportBatch
	require.NoError(t, db.First(&got, "id = ?", batch.ID).Error)
	assert.Equal(t, entity.BatchStatusFailed, got.Status)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(got.Summary, &summary))
	// prior summary keys survive the merge
	assert.Equal(t, "ops", summary["uploadedBy"])
	assert.NotEmpty(t, summary["lastError"])
	assert.NotEmpty(t, summary["lastErrorAt"])

	// the queue-level failure path recorded the same error
	var job entity.Job
	require.NoError(t, db.First(&job, "id = ?", jobID).Error)
	assert.NotEmpty(t, job.Error)
}

func TestBulkImportUnsupportedDataType(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte("a,b\n1,2\n"), 0o644))

	tenant := entity.Tenant{Name: "Leora Test"}
	require.NoError(t, db.Create(&tenant).Error)
	batch := entity.ImportBatch{
		TenantID: tenant.ID,
		FileKey:  "data.csv",
		DataType: "mailing_list",
		Status:   entity.BatchStatusPending,
	}
	require.NoError(t, db.Create(&batch).Error)

	q, _ := newTestHandlers(t, db, &stubExtractor{}, dir)
	_, err := q.Enqueue(ctx, entity.JobTypeBulkImport, BulkImportPayload{BatchID: batch.ID})
	require.NoError(t, err)

	processed, err := q.ProcessNextJob(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	var got entity.ImportBatch
	require.NoError(t, db.First(&got, "id = ?", batch.ID).Error)
	assert.Equal(t, entity.BatchStatusFailed, got.Status)
}

func TestImageExtractionJobWritesScanResult(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	scan := entity.ImageScan{
		TenantID: "11111111-1111-1111-1111-111111111111",
		UserID:   "22222222-2222-2222-2222-222222222222",
		ImageURL: "https://cdn.example.com/card.jpg",
		ScanType: entity.ScanTypeBusinessCard,
		Status:   entity.ScanStatusPending,
	}
	require.NoError(t, db.Create(&scan).Error)

	extractor := &stubExtractor{card: &vision.BusinessCardData{Name: "Ana Reyes", Company: "Coastal Wines", Confidence: 0.92}}
	q, _ := newTestHandlers(t, db, extractor, t.TempDir())

	_, err := q.Enqueue(ctx, entity.JobTypeImageExtraction, ImageExtractionPayload{
		ScanID:   scan.ID,
		ImageURL: scan.ImageURL,
		ScanType: scan.ScanType,
	})
	require.NoError(t, err)

	processed, err := q.ProcessNextJob(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	var got entity.ImageScan
	require.NoError(t, db.First(&got, "id = ?", scan.ID).Error)
	assert.Equal(t, entity.ScanStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	var card vision.BusinessCardData
	require.NoError(t, json.Unmarshal(got.ExtractedData, &card))
	assert.Equal(t, "Ana Reyes", card.Name)
	assert.Equal(t, "Coastal Wines", card.Company)
}

func TestImageExtractionJobFailureMarksScanFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	scan := entity.ImageScan{
		TenantID: "11111111-1111-1111-1111-111111111111",
		UserID:   "22222222-2222-2222-2222-222222222222",
		ImageURL: "https://cdn.example.com/card.jpg",
		ScanType: entity.ScanTypeBusinessCard,
		Status:   entity.ScanStatusPending,
	}
	require.NoError(t, db.Create(&scan).Error)

	extractor := &stubExtractor{err: errors.New("vision api status 500: overloaded")}
	q, _ := newTestHandlers(t, db, extractor, t.TempDir())

	_, err := q.Enqueue(ctx, entity.JobTypeImageExtraction, ImageExtractionPayload{ScanID: scan.ID})
	require.NoError(t, err)

	processed, err := q.ProcessNextJob(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	var got entity.ImageScan
	require.NoError(t, db.First(&got, "id = ?", scan.ID).Error)
	assert.Equal(t, entity.ScanStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "overloaded")
	require.NotNil(t, got.CompletedAt)
}

func TestCustomerEnrichmentAndReportGenerationAreNoops(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	q, _ := newTestHandlers(t, db, &stubExtractor{}, t.TempDir())

	_, err := q.Enqueue(ctx, entity.JobTypeCustomerEnrichment, CustomerEnrichmentPayload{CustomerID: "c-1"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, entity.JobTypeReportGeneration, map[string]any{"kind": "weekly"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		processed, err := q.ProcessNextJob(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
	}
}
