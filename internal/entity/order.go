package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusSubmitted          OrderStatus = "SUBMITTED"
	OrderStatusFulfilled          OrderStatus = "FULFILLED"
	OrderStatusPartiallyFulfilled OrderStatus = "PARTIALLY_FULFILLED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
)

type InvoiceStatus string

const (
	InvoiceStatusSent InvoiceStatus = "SENT"
	InvoiceStatusPaid InvoiceStatus = "PAID"
	InvoiceStatusVoid InvoiceStatus = "VOID"
)

// Order is keyed by OrderNumber (the invoice number from the sales report)
// within a tenant and upserted on every ingestion pass.
type Order struct {
	ID                  string      `gorm:"type:uuid;primaryKey"`
	TenantID            string      `gorm:"type:uuid;not null;uniqueIndex:idx_orders_tenant_number"`
	CustomerID          string      `gorm:"type:uuid;not null;index"`
	OrderNumber         string      `gorm:"not null;uniqueIndex:idx_orders_tenant_number"`
	Status              OrderStatus `gorm:"size:32;not null"`
	PurchaseOrderNumber string
	Salesperson         string
	SpecialInstructions string
	DeliveryStart       string
	DeliveryEnd         string
	OrderedAt           *time.Time
	FulfilledAt         *time.Time
	DeliveryWeek        int
	Total               decimal.Decimal `gorm:"type:numeric(14,2)"`
	TotalLiters         decimal.Decimal `gorm:"type:numeric(14,3)"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderLine rows are fully replaced on re-ingestion, never diffed.
type OrderLine struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	OrderID   string          `gorm:"type:uuid;not null;index"`
	SkuID     string          `gorm:"type:uuid;not null"`
	Quantity  int             `gorm:"not null"`
	Cases     decimal.Decimal `gorm:"type:numeric(14,3)"`
	Liters    decimal.Decimal `gorm:"type:numeric(14,3)"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2)"`
	NetPrice  decimal.Decimal `gorm:"type:numeric(14,2)"`
	CreatedAt time.Time
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Invoice is 1:1 with Order, found by OrderID and updated in place.
type Invoice struct {
	ID            string        `gorm:"type:uuid;primaryKey"`
	TenantID      string        `gorm:"type:uuid;not null;index"`
	OrderID       string        `gorm:"type:uuid;not null;uniqueIndex"`
	InvoiceNumber string        `gorm:"not null"`
	Status        InvoiceStatus `gorm:"size:16;not null"`
	PaymentTerms  string
	IssuedAt      *time.Time
	DueAt         *time.Time
	Total         decimal.Decimal `gorm:"type:numeric(14,2)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
