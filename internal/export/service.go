package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
)

// Service produces XLSX bytes summarizing ingested orders.
type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, log: log}
}

// OrdersXLSX returns a workbook listing a tenant's orders within the
// fulfilled-at window. If only from is provided the window runs to today;
// if neither is provided, all orders are included.
func (s *Service) OrdersXLSX(ctx context.Context, tenantID string, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if fromDate != nil {
		q = q.Where("fulfilled_at >= ?", *fromDate)
	}
	if toDate != nil {
		q = q.Where("fulfilled_at < ?", toDate.AddDate(0, 0, 1))
	}
	var orders []entity.Order
	if err := q.Order("fulfilled_at ASC, order_number ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	lineCounts, err := s.lineCounts(ctx, orders)
	if err != nil {
		return nil, err
	}
	customerNames, err := s.customerNames(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Orders"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Order Number",
		"Customer",
		"Status",
		"Fulfilled",
		"Delivery Week",
		"Lines",
		"Liters",
		"Total",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for rowIdx, order := range orders {
		fulfilled := ""
		if order.FulfilledAt != nil {
			fulfilled = order.FulfilledAt.Format("2006-01-02")
		}
		values := []any{
			order.OrderNumber,
			customerNames[order.CustomerID],
			string(order.Status),
			fulfilled,
			order.DeliveryWeek,
			lineCounts[order.ID],
			order.TotalLiters.String(),
			order.Total.String(),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.log.Info("export.orders.ok",
		"tenant_id", tenantID,
		"orders", len(orders),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) lineCounts(ctx context.Context, orders []entity.Order) (map[string]int64, error) {
	counts := make(map[string]int64, len(orders))
	if len(orders) == 0 {
		return counts, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	type row struct {
		OrderID string
		N       int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&entity.OrderLine{}).
		Select("order_id, COUNT(*) AS n").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count order lines: %w", err)
	}
	for _, r := range rows {
		counts[r.OrderID] = r.N
	}
	return counts, nil
}

func (s *Service) customerNames(ctx context.Context, tenantID string) (map[string]string, error) {
	var customers []entity.Customer
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	names := make(map[string]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	return names, nil
}
