package ingest

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leora-hq/leora-core/internal/entity"
)

// Column names as they appear in the sales-report export header row.
const (
	colInvoiceNumber = "Invoice number"
	colInvoiceDate   = "Invoice date"
	colPostedDate    = "Posted date"
	colDueDate       = "Due date"
	colStatus        = "Status"
	colPONumber      = "Purchase order number"
	colDeliveryStart = "Delivery start time"
	colDeliveryEnd   = "Delivery end time"
	colSpecial       = "Special instructions"
	colSpecialTypo   = "Special instrcutions" // the export ships this typo
	colCustomer      = "Customer"
	colSalesperson   = "Salesperson"
	colShipLine1     = "Shipping address line 1"
	colShipLine2     = "Shipping address line 2"
	colShipCity      = "Shipping address city"
	colShipProvince  = "Shipping address province"
	colShipPostal    = "Shipping address postal code"
	colShipCountry   = "Shipping address country"
	colSKU           = "SKU"
	colQty           = "Qty."
	colCases         = "Cases"
	colLiters        = "Liters"
	colUnitPrice     = "Unit price"
	colNetPrice      = "Net price"
)

// Stats aggregates one ingestion run. MissingCustomers and MissingSkus are
// de-duplicated operator follow-up signals, not hard failures.
type Stats struct {
	OrdersProcessed  int      `json:"ordersProcessed"`
	OrdersCreated    int      `json:"ordersCreated"`
	OrdersUpdated    int      `json:"ordersUpdated"`
	OrderLines       int      `json:"orderLines"`
	InvoicesCreated  int      `json:"invoicesCreated"`
	InvoicesUpdated  int      `json:"invoicesUpdated"`
	SkippedInvoices  int      `json:"skippedInvoices"`
	MissingCustomers []string `json:"missingCustomers"`
	MissingSkus      []string `json:"missingSkus"`
}

// Service ingests parsed sales-report records into orders, order lines and
// invoices. Each invoice group runs in its own transaction so one bad group
// cannot roll back the rest of the batch.
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

// invoiceGroup is all rows sharing one invoice number. Header-level fields
// take the first non-empty value seen across the group's rows.
type invoiceGroup struct {
	invoiceNumber string

	invoiceDate         string
	postedDate          string
	dueDate             string
	status              string
	poNumber            string
	deliveryStart       string
	deliveryEnd         string
	specialInstructions string
	customer            string
	salesperson         string
	shipLine1           string
	shipLine2           string
	shipCity            string
	shipProvince        string
	shipPostal          string
	shipCountry         string

	rows []Record
}

type resolvedLine struct {
	skuID     string
	quantity  int
	cases     decimal.Decimal
	liters    decimal.Decimal
	unitPrice decimal.Decimal
	netPrice  decimal.Decimal
}

// IngestSalesReportRecords writes the grouped records for one tenant.
// Returns nil stats when there is nothing to ingest.
func (s *Service) IngestSalesReportRecords(ctx context.Context, tenantID string, records []Record) (*Stats, error) {
	if len(records) == 0 {
		return nil, nil
	}
	groups := groupByInvoice(records)
	if len(groups) == 0 {
		return nil, nil
	}

	// One snapshot per call. Fine for report-sized batches; a very large
	// tenant catalog would want set-membership queries instead.
	skuByCode, err := s.loadSkus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	customerByName, err := s.loadCustomers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		MissingCustomers: []string{},
		MissingSkus:      []string{},
	}
	seenMissingCustomer := map[string]bool{}
	seenMissingSku := map[string]bool{}

	for _, g := range groups {
		if strings.TrimSpace(g.invoiceNumber) == "" {
			stats.SkippedInvoices++
			continue
		}

		if entity.NormalizeKey(g.customer) == "" {
			if !seenMissingCustomer[g.customer] {
				seenMissingCustomer[g.customer] = true
				stats.MissingCustomers = append(stats.MissingCustomers, g.customer)
			}
			s.log.Warn("ingest.group.skipped", "invoice", g.invoiceNumber, "reason", "unresolvable customer")
			continue
		}

		lines, missing := s.resolveLines(g, skuByCode)
		for _, code := range missing {
			if !seenMissingSku[code] {
				seenMissingSku[code] = true
				stats.MissingSkus = append(stats.MissingSkus, code)
			}
		}
		if len(lines) == 0 {
			s.log.Warn("ingest.group.skipped", "invoice", g.invoiceNumber, "reason", "no resolvable lines")
			stats.SkippedInvoices++
			continue
		}

		var createdCustomer *entity.Customer
		var orderCreated, invoiceCreated bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			customer, created, err := resolveCustomer(tx, tenantID, g, customerByName)
			if err != nil {
				return err
			}
			if created {
				createdCustomer = customer
			}

			orderCreated, err = s.upsertOrder(tx, tenantID, customer.ID, g, lines)
			if err != nil {
				return err
			}

			invoiceCreated, err = s.upsertInvoice(tx, tenantID, g, lines)
			return err
		})
		if err != nil {
			s.log.Error("ingest.group.tx_failed", "invoice", g.invoiceNumber, "err", err)
			return nil, err
		}
		if createdCustomer != nil {
			customerByName[createdCustomer.NormalizedName] = *createdCustomer
		}

		stats.OrdersProcessed++
		if orderCreated {
			stats.OrdersCreated++
		} else {
			stats.OrdersUpdated++
		}
		if invoiceCreated {
			stats.InvoicesCreated++
		} else {
			stats.InvoicesUpdated++
		}
		stats.OrderLines += len(lines)
	}

	s.log.Info("ingest.done",
		"tenant_id", tenantID,
		"orders", stats.OrdersProcessed,
		"lines", stats.OrderLines,
		"skipped", stats.SkippedInvoices,
		"missing_customers", len(stats.MissingCustomers),
		"missing_skus", len(stats.MissingSkus),
	)
	return stats, nil
}

// groupByInvoice buckets rows by invoice number, preserving first-seen
// order. Rows carrying neither an invoice number nor a SKU code (banner
// remnants, subtotal rows) are dropped before grouping.
func groupByInvoice(records []Record) []*invoiceGroup {
	byNumber := map[string]*invoiceGroup{}
	var ordered []*invoiceGroup

	for _, rec := range records {
		inv := strings.TrimSpace(rec[colInvoiceNumber])
		sku := strings.TrimSpace(rec[colSKU])
		if inv == "" && sku == "" {
			continue
		}

		g, ok := byNumber[inv]
		if !ok {
			g = &invoiceGroup{invoiceNumber: inv}
			byNumber[inv] = g
			ordered = append(ordered, g)
		}

		firstNonEmpty(&g.invoiceDate, rec[colInvoiceDate])
		firstNonEmpty(&g.postedDate, rec[colPostedDate])
		firstNonEmpty(&g.dueDate, rec[colDueDate])
		firstNonEmpty(&g.status, rec[colStatus])
		firstNonEmpty(&g.poNumber, rec[colPONumber])
		firstNonEmpty(&g.deliveryStart, rec[colDeliveryStart])
		firstNonEmpty(&g.deliveryEnd, rec[colDeliveryEnd])
		firstNonEmpty(&g.specialInstructions, rec[colSpecial])
		firstNonEmpty(&g.specialInstructions, rec[colSpecialTypo])
		firstNonEmpty(&g.customer, rec[colCustomer])
		firstNonEmpty(&g.salesperson, rec[colSalesperson])
		firstNonEmpty(&g.shipLine1, rec[colShipLine1])
		firstNonEmpty(&g.shipLine2, rec[colShipLine2])
		firstNonEmpty(&g.shipCity, rec[colShipCity])
		firstNonEmpty(&g.shipProvince, rec[colShipProvince])
		firstNonEmpty(&g.shipPostal, rec[colShipPostal])
		firstNonEmpty(&g.shipCountry, rec[colShipCountry])

		g.rows = append(g.rows, rec)
	}
	return ordered
}

func firstNonEmpty(dst *string, val string) {
	if *dst == "" && strings.TrimSpace(val) != "" {
		*dst = strings.TrimSpace(val)
	}
}

// resolveLines maps each row to a SKU from the snapshot. Unresolvable codes
// are reported back; the line is dropped, not the group.
func (s *Service) resolveLines(g *invoiceGroup, skuByCode map[string]entity.Sku) ([]resolvedLine, []string) {
	var lines []resolvedLine
	var missing []string

	for _, row := range g.rows {
		code := strings.TrimSpace(row[colSKU])
		norm := entity.NormalizeKey(code)
		if norm == "" {
			continue
		}
		sku, ok := skuByCode[norm]
		if !ok {
			missing = append(missing, code)
			continue
		}

		qty := parseInt(row[colQty])
		unitPrice := parseDecimal(row[colUnitPrice])
		netPrice := parseDecimal(row[colNetPrice])
		if strings.TrimSpace(row[colNetPrice]) == "" {
			netPrice = unitPrice.Mul(decimal.NewFromInt(int64(qty)))
		}

		lines = append(lines, resolvedLine{
			skuID:     sku.ID,
			quantity:  qty,
			cases:     parseDecimal(row[colCases]),
			liters:    parseDecimal(row[colLiters]),
			unitPrice: unitPrice,
			netPrice:  netPrice,
		})
	}
	return lines, missing
}

func resolveCustomer(tx *gorm.DB, tenantID string, g *invoiceGroup, customerByName map[string]entity.Customer) (*entity.Customer, bool, error) {
	norm := entity.NormalizeKey(g.customer)
	if existing, ok := customerByName[norm]; ok {
		return &existing, false, nil
	}

	customer := entity.Customer{
		TenantID:       tenantID,
		Name:           strings.TrimSpace(g.customer),
		NormalizedName: norm,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, false, err
	}

	if g.shipLine1 != "" && g.shipCity != "" {
		address := entity.CustomerAddress{
			CustomerID: customer.ID,
			Line1:      g.shipLine1,
			Line2:      g.shipLine2,
			City:       g.shipCity,
			Province:   g.shipProvince,
			PostalCode: g.shipPostal,
			Country:    g.shipCountry,
			IsDefault:  true,
		}
		if err := tx.Create(&address).Error; err != nil {
			return nil, false, err
		}
	}
	return &customer, true, nil
}

// upsertOrder writes the order keyed by orderNumber and fully replaces its
// lines. Reports whether the order was created.
func (s *Service) upsertOrder(tx *gorm.DB, tenantID, customerID string, g *invoiceGroup, lines []resolvedLine) (bool, error) {
	status := mapOrderStatus(g.status)
	orderedAt := parseDate(g.invoiceDate)
	fulfilledAt := parseDate(g.postedDate)
	if fulfilledAt == nil {
		fulfilledAt = orderedAt
	}
	week := 0
	if fulfilledAt != nil {
		_, week = fulfilledAt.ISOWeek()
	}

	total := decimal.Zero
	liters := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.netPrice)
		liters = liters.Add(l.liters)
	}

	var order entity.Order
	err := tx.Where("tenant_id = ? AND order_number = ?", tenantID, g.invoiceNumber).First(&order).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return false, err
	}

	if created {
		order = entity.Order{
			TenantID:            tenantID,
			CustomerID:          customerID,
			OrderNumber:         g.invoiceNumber,
			Status:              status,
			PurchaseOrderNumber: g.poNumber,
			Salesperson:         g.salesperson,
			SpecialInstructions: g.specialInstructions,
			DeliveryStart:       g.deliveryStart,
			DeliveryEnd:         g.deliveryEnd,
			OrderedAt:           orderedAt,
			FulfilledAt:         fulfilledAt,
			DeliveryWeek:        week,
			Total:               total,
			TotalLiters:         liters,
		}
		if err := tx.Create(&order).Error; err != nil {
			return false, err
		}
	} else {
		updates := map[string]any{
			"customer_id":           customerID,
			"status":                status,
			"purchase_order_number": g.poNumber,
			"salesperson":           g.salesperson,
			"special_instructions":  g.specialInstructions,
			"delivery_start":        g.deliveryStart,
			"delivery_end":          g.deliveryEnd,
			"ordered_at":            orderedAt,
			"fulfilled_at":          fulfilledAt,
			"delivery_week":         week,
			"total":                 total,
			"total_liters":          liters,
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return false, err
		}
	}

	// Full replace, not diff: delete every existing line and recreate.
	if err := tx.Where("order_id = ?", order.ID).Delete(&entity.OrderLine{}).Error; err != nil {
		return false, err
	}
	for _, l := range lines {
		line := entity.OrderLine{
			OrderID:   order.ID,
			SkuID:     l.skuID,
			Quantity:  l.quantity,
			Cases:     l.cases,
			Liters:    l.liters,
			UnitPrice: l.unitPrice,
			NetPrice:  l.netPrice,
		}
		if err := tx.Create(&line).Error; err != nil {
			return false, err
		}
	}
	return created, nil
}

// upsertInvoice finds the order's invoice by orderID and updates in place,
// or creates one. Reports whether the invoice was created.
func (s *Service) upsertInvoice(tx *gorm.DB, tenantID string, g *invoiceGroup, lines []resolvedLine) (bool, error) {
	var order entity.Order
	if err := tx.Where("tenant_id = ? AND order_number = ?", tenantID, g.invoiceNumber).First(&order).Error; err != nil {
		return false, err
	}

	status := deriveInvoiceStatus(order.Status)
	issuedAt := parseDate(g.invoiceDate)
	dueAt := parseDate(g.dueDate)

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.netPrice)
	}

	var invoice entity.Invoice
	err := tx.Where("order_id = ?", order.ID).First(&invoice).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return false, err
	}

	if created {
		invoice = entity.Invoice{
			TenantID:      tenantID,
			OrderID:       order.ID,
			InvoiceNumber: g.invoiceNumber,
			Status:        status,
			PaymentTerms:  "Net 30",
			IssuedAt:      issuedAt,
			DueAt:         dueAt,
			Total:         total,
		}
		return true, tx.Create(&invoice).Error
	}

	updates := map[string]any{
		"invoice_number": g.invoiceNumber,
		"status":         status,
		"payment_terms":  "Net 30",
		"issued_at":      issuedAt,
		"due_at":         dueAt,
		"total":          total,
	}
	return false, tx.Model(&invoice).Updates(updates).Error
}

func (s *Service) loadSkus(ctx context.Context, tenantID string) (map[string]entity.Sku, error) {
	var skus []entity.Sku
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&skus).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]entity.Sku, len(skus))
	for _, sku := range skus {
		byCode[sku.NormalizedCode] = sku
	}
	return byCode, nil
}

func (s *Service) loadCustomers(ctx context.Context, tenantID string) (map[string]entity.Customer, error) {
	var customers []entity.Customer
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&customers).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]entity.Customer, len(customers))
	for _, c := range customers {
		byName[c.NormalizedName] = c
	}
	return byName, nil
}

// mapOrderStatus maps the report's free-text status column to the order
// status enum, case-insensitively. Anything unrecognized is SUBMITTED.
func mapOrderStatus(raw string) entity.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivered", "completed":
		return entity.OrderStatusFulfilled
	case "cancelled", "canceled":
		return entity.OrderStatusCancelled
	case "partially fulfilled":
		return entity.OrderStatusPartiallyFulfilled
	default:
		return entity.OrderStatusSubmitted
	}
}

func deriveInvoiceStatus(status entity.OrderStatus) entity.InvoiceStatus {
	switch status {
	case entity.OrderStatusFulfilled:
		return entity.InvoiceStatusPaid
	case entity.OrderStatusCancelled:
		return entity.InvoiceStatusVoid
	default:
		return entity.InvoiceStatusSent
	}
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// parseDecimal builds a decimal from a sanitized string, defaulting to zero
// on empty or unparsable input. Currency never goes through floats.
func parseDecimal(raw string) decimal.Decimal {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseInt(raw string) int {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(raw), "")
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
