package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/repository"
)

type fakeExtractor struct {
	card    *BusinessCardData
	license *LicenseData
	err     error
}

func (f *fakeExtractor) ExtractBusinessCard(context.Context, string) (*BusinessCardData, error) {
	return f.card, f.err
}

func (f *fakeExtractor) ExtractLiquorLicense(context.Context, string) (*LicenseData, error) {
	return f.license, f.err
}

func newScanFixture(t *testing.T, extractor Extractor) (*ScanProcessor, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	return NewScanProcessor(repository.NewImageScanRepository(db, nil), extractor, nil), db
}

func createScan(t *testing.T, db *gorm.DB, scanType entity.ScanType) *entity.ImageScan {
	t.Helper()
	scan := &entity.ImageScan{
		TenantID: uuid.NewString(),
		UserID:   uuid.NewString(),
		ImageURL: "https://cdn.example.com/image.jpg",
		ScanType: scanType,
		Status:   entity.ScanStatusPending,
	}
	require.NoError(t, db.Create(scan).Error)
	return scan
}

func TestProcessImageScanBusinessCard(t *testing.T) {
	proc, db := newScanFixture(t, &fakeExtractor{
		card: &BusinessCardData{Name: "Ana Reyes", Email: "ana@coastalwines.test"},
	})
	scan := createScan(t, db, entity.ScanTypeBusinessCard)

	require.NoError(t, proc.ProcessImageScan(context.Background(), scan.ID))

	var got entity.ImageScan
	require.NoError(t, db.First(&got, "id = ?", scan.ID).Error)
	assert.Equal(t, entity.ScanStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	var card BusinessCardData
	require.NoError(t, json.Unmarshal(got.ExtractedData, &card))
	assert.Equal(t, "Ana Reyes", card.Name)
}

func TestProcessImageScanLiquorLicense(t *testing.T) {
	proc, db := newScanFixture(t, &fakeExtractor{
		license: &LicenseData{LicenseNumber: "LL-2291", BusinessName: "Blue Heron Bistro"},
	})
	scan := createScan(t, db, entity.ScanTypeLiquorLicense)

	require.NoError(t, proc.ProcessImageScan(context.Background(), scan.ID))

	var got entity.ImageScan
	require.NoError(t, db.First(&got, "id = ?", scan.ID).Error)
	assert.Equal(t, entity.ScanStatusCompleted, got.Status)

	var lic LicenseData
	require.NoError(t, json.Unmarshal(got.ExtractedData, &lic))
	assert.Equal(t, "LL-2291", lic.LicenseNumber)
}

func TestProcessImageScanFailureLeavesInspectableState(t *testing.T) {
	proc, db := newScanFixture(t, &fakeExtractor{err: errors.New("empty response from vision model")})
	scan := createScan(t, db, entity.ScanTypeBusinessCard)

	err := proc.ProcessImageScan(context.Background(), scan.ID)
	require.Error(t, err)

	var got entity.ImageScan
	require.NoError(t, db.First(&got, "id = ?", scan.ID).Error)
	assert.Equal(t, entity.ScanStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "empty response")
	require.NotNil(t, got.CompletedAt, "failed scans still reach a terminal state")
}

func TestProcessImageScanNotFound(t *testing.T) {
	proc, _ := newScanFixture(t, &fakeExtractor{})

	err := proc.ProcessImageScan(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProcessImageScanUnknownScanType(t *testing.T) {
	proc, db := newScanFixture(t, &fakeExtractor{})
	scan := createScan(t, db, entity.ScanType("passport"))

	err := proc.ProcessImageScan(context.Background(), scan.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scan type")

	var got entity.ImageScan
	require.NoError(t, db.First(&got, "id = ?", scan.ID).Error)
	assert.Equal(t, entity.ScanStatusFailed, got.Status)
}
