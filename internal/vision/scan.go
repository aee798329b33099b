package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/repository"
)

// ScanProcessor loads an ImageScan, runs the matching extractor, and writes
// the result back. It is usable both from the job queue and standalone.
type ScanProcessor struct {
	scans     repository.ImageScanRepository
	extractor Extractor
	log       *slog.Logger
}

func NewScanProcessor(scans repository.ImageScanRepository, extractor Extractor, log *slog.Logger) *ScanProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &ScanProcessor{scans: scans, extractor: extractor, log: log}
}

// ProcessImageScan runs extraction for one scan. On any failure after the
// scan was loaded, the scan record is moved to a terminal failed state before
// the error is returned, so the record is always inspectable.
func (p *ScanProcessor) ProcessImageScan(ctx context.Context, scanID string) error {
	scan, err := p.scans.GetByID(ctx, scanID)
	if err != nil {
		return err
	}
	if scan == nil {
		return fmt.Errorf("image scan %s not found", scanID)
	}

	if err := p.scans.MarkProcessing(ctx, scanID); err != nil {
		return err
	}

	extracted, err := p.extract(ctx, scan)
	if err != nil {
		if ferr := p.scans.FinishFailure(ctx, scanID, err.Error()); ferr != nil {
			p.log.Error("scan.failure_state_write_failed", "scan_id", scanID, "err", ferr)
		}
		return err
	}

	if err := p.scans.FinishSuccess(ctx, scanID, extracted); err != nil {
		return err
	}
	return nil
}

func (p *ScanProcessor) extract(ctx context.Context, scan *entity.ImageScan) ([]byte, error) {
	switch scan.ScanType {
	case entity.ScanTypeBusinessCard:
		data, err := p.extractor.ExtractBusinessCard(ctx, scan.ImageURL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(data)
	case entity.ScanTypeLiquorLicense:
		data, err := p.extractor.ExtractLiquorLicense(ctx, scan.ImageURL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(data)
	default:
		return nil, fmt.Errorf("unknown scan type: %s", scan.ScanType)
	}
}
