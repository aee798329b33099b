package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/ingest"
	"github.com/leora-hq/leora-core/internal/repository"
	"github.com/leora-hq/leora-core/internal/storage"
	"github.com/leora-hq/leora-core/internal/vision"
)

// Typed payloads, decoded at the handler boundary.

type ImageExtractionPayload struct {
	ScanID   string          `json:"scanId"`
	ImageURL string          `json:"imageUrl"`
	ScanType entity.ScanType `json:"scanType"`
}

type CustomerEnrichmentPayload struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId,omitempty"`
}

type BulkImportPayload struct {
	BatchID string `json:"batchId"`
}

// Handlers bundles the collaborators the job handlers need.
type Handlers struct {
	scans   *vision.ScanProcessor
	batches repository.ImportBatchRepository
	store   storage.FileStore
	ingest  *ingest.Service
	log     *slog.Logger
}

func NewHandlers(
	scans *vision.ScanProcessor,
	batches repository.ImportBatchRepository,
	store storage.FileStore,
	ingestSvc *ingest.Service,
	log *slog.Logger,
) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		scans:   scans,
		batches: batches,
		store:   store,
		ingest:  ingestSvc,
		log:     log,
	}
}

// RegisterAll wires every handler into the queue's dispatch table.
func (h *Handlers) RegisterAll(q *Queue) {
	q.Register(entity.JobTypeImageExtraction, h.HandleImageExtraction)
	q.Register(entity.JobTypeCustomerEnrichment, h.HandleCustomerEnrichment)
	q.Register(entity.JobTypeReportGeneration, h.HandleReportGeneration)
	q.Register(entity.JobTypeBulkImport, h.HandleBulkImport)
}

func (h *Handlers) HandleImageExtraction(ctx context.Context, job *entity.Job) error {
	var p ImageExtractionPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode image_extraction payload: %w", err)
	}
	if p.ScanID == "" {
		return fmt.Errorf("image_extraction payload missing scanId")
	}
	return h.scans.ProcessImageScan(ctx, p.ScanID)
}

// HandleCustomerEnrichment is reserved for future AI enrichment. It accepts
// and logs the payload so enqueued jobs complete instead of erroring.
func (h *Handlers) HandleCustomerEnrichment(ctx context.Context, job *entity.Job) error {
	var p CustomerEnrichmentPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode customer_enrichment payload: %w", err)
	}
	h.log.Info("queue.customer_enrichment.noop", "job_id", job.ID, "customer_id", p.CustomerID, "product_id", p.ProductID)
	return nil
}

// HandleReportGeneration is a placeholder; report exports run through the
// export service directly for now.
func (h *Handlers) HandleReportGeneration(_ context.Context, job *entity.Job) error {
	h.log.Info("queue.report_generation.noop", "job_id", job.ID)
	return nil
}

// HandleBulkImport loads the batch, downloads its file, runs the matching
// ingestion engine, and merges a result summary back onto the batch. On any
// ingestion error the batch is marked failed with lastError merged into the
// summary, and the error is returned so the job-level failure path records
// it as well.
func (h *Handlers) HandleBulkImport(ctx context.Context, job *entity.Job) error {
	var p BulkImportPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode bulk_import payload: %w", err)
	}
	if p.BatchID == "" {
		return fmt.Errorf("bulk_import payload missing batchId")
	}

	batch, err := h.batches.GetByID(ctx, p.BatchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("import batch %s not found", p.BatchID)
	}

	if err := h.batches.Start(ctx, batch.ID); err != nil {
		return err
	}

	result, err := h.runImport(ctx, batch)
	if err != nil {
		if ferr := h.batches.Fail(ctx, batch.ID, err.Error()); ferr != nil {
			h.log.Error("queue.bulk_import.fail_write_failed", "batch_id", batch.ID, "err", ferr)
		}
		return err
	}

	return h.batches.Complete(ctx, batch.ID, map[string]any{
		"lastRunAt":  time.Now().Format(time.RFC3339),
		"lastResult": result,
	})
}

func (h *Handlers) runImport(ctx context.Context, batch *entity.ImportBatch) (any, error) {
	file, err := h.store.Download(ctx, batch.FileKey)
	if err != nil {
		return nil, err
	}

	switch batch.DataType {
	case entity.BatchDataTypeSalesReport, entity.BatchDataTypeOrders:
		records, err := ingest.ParseSalesReportCSV(string(file.Buffer))
		if err != nil {
			return nil, fmt.Errorf("parse sales report csv: %w", err)
		}
		stats, err := h.ingest.IngestSalesReportRecords(ctx, batch.TenantID, records)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			return map[string]any{"message": "no ingestible records"}, nil
		}
		return stats, nil
	default:
		return nil, fmt.Errorf("unsupported import data type: %s", batch.DataType)
	}
}
