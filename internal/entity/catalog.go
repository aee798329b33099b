package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NormalizeKey trims and lowercases a string for case/whitespace-insensitive
// matching of customer names and SKU codes.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type Tenant struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Customer is matched during ingestion by NormalizedName within a tenant.
type Customer struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	TenantID       string `gorm:"type:uuid;not null;uniqueIndex:idx_customers_tenant_name"`
	Name           string `gorm:"not null"`
	NormalizedName string `gorm:"not null;uniqueIndex:idx_customers_tenant_name"`
	CreatedAt      time.Time
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.NormalizedName == "" {
		c.NormalizedName = NormalizeKey(c.Name)
	}
	return nil
}

type CustomerAddress struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	CustomerID string `gorm:"type:uuid;not null;index"`
	Line1      string
	Line2      string
	City       string
	Province   string
	PostalCode string
	Country    string
	IsDefault  bool `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

func (a *CustomerAddress) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Sku is matched during ingestion by NormalizedCode within a tenant.
type Sku struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	TenantID       string `gorm:"type:uuid;not null;uniqueIndex:idx_skus_tenant_code"`
	Code           string `gorm:"not null"`
	NormalizedCode string `gorm:"not null;uniqueIndex:idx_skus_tenant_code"`
	Name           string
	Supplier       string
	CreatedAt      time.Time
}

func (s *Sku) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.NormalizedCode == "" {
		s.NormalizedCode = NormalizeKey(s.Code)
	}
	return nil
}
