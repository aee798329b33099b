package export

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	return db
}

func TestOrdersXLSX(t *testing.T) {
	db := newTestDB(t)

	tenant := entity.Tenant{Name: "Leora Test"}
	require.NoError(t, db.Create(&tenant).Error)
	customer := entity.Customer{TenantID: tenant.ID, Name: "Blue Heron Bistro"}
	require.NoError(t, db.Create(&customer).Error)

	fulfilled := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	order := entity.Order{
		TenantID:     tenant.ID,
		CustomerID:   customer.ID,
		OrderNumber:  "INV-100",
		Status:       entity.OrderStatusFulfilled,
		FulfilledAt:  &fulfilled,
		DeliveryWeek: 1,
		Total:        decimal.RequireFromString("84.00"),
		TotalLiters:  decimal.RequireFromString("6.000"),
	}
	require.NoError(t, db.Create(&order).Error)
	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&entity.OrderLine{
			OrderID:  order.ID,
			SkuID:    uuid.NewString(),
			Quantity: 1,
		}).Error)
	}

	b, err := NewService(db, nil).OrdersXLSX(context.Background(), tenant.ID, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Order Number", rows[0][0])
	assert.Equal(t, "INV-100", rows[1][0])
	assert.Equal(t, "Blue Heron Bistro", rows[1][1])
	assert.Equal(t, "2", rows[1][5])
	assert.Equal(t, "84", rows[1][7])
}

func TestOrdersXLSXWindowFiltersByFulfilledAt(t *testing.T) {
	db := newTestDB(t)

	tenant := entity.Tenant{Name: "Leora Test"}
	require.NoError(t, db.Create(&tenant).Error)
	customer := entity.Customer{TenantID: tenant.ID, Name: "Blue Heron Bistro"}
	require.NoError(t, db.Create(&customer).Error)

	inWindow := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{inWindow, outOfWindow} {
		ts := ts
		require.NoError(t, db.Create(&entity.Order{
			TenantID:    tenant.ID,
			CustomerID:  customer.ID,
			OrderNumber: fmt.Sprintf("INV-%d", i),
			Status:      entity.OrderStatusFulfilled,
			FulfilledAt: &ts,
		}).Error)
	}

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	b, err := NewService(db, nil).OrdersXLSX(context.Background(), tenant.ID, &from, &to)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus the one in-window order")
	assert.Equal(t, "INV-0", rows[1][0])
}
