package models

import (
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/shopspring/decimal"
)

// ProductPackagingModel holds per-company packaging metadata of a product
type ProductPackagingModel struct {
	CompanyID        int64           `gorm:"primaryKey;autoIncrement:false"`
	ProductCode      string          `gorm:"primaryKey;type:varchar(60)"`
	AreaPerPackage   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PiecesPerPackage decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ProductPackagingModel) TableName() string {
	return "product_packaging"
}

// ToDomain converts the model to domain Packaging
func (m *ProductPackagingModel) ToDomain() packaging.Packaging {
	return packaging.Packaging{
		ProductCode:      m.ProductCode,
		AreaPerPackage:   m.AreaPerPackage,
		PiecesPerPackage: m.PiecesPerPackage,
	}
}

// PriceEntryModel holds a client's cash and term price for a product
type PriceEntryModel struct {
	CompanyID   int64           `gorm:"primaryKey;autoIncrement:false"`
	ProductCode string          `gorm:"primaryKey;type:varchar(60)"`
	ClientID    int64           `gorm:"primaryKey;autoIncrement:false"`
	CashPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TermPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PriceEntryModel) TableName() string {
	return "price_entries"
}

// ToDomain converts the model to a domain PriceEntry
func (m *PriceEntryModel) ToDomain() packaging.PriceEntry {
	return packaging.PriceEntry{
		ProductCode: m.ProductCode,
		ClientID:    m.ClientID,
		CashPrice:   m.CashPrice,
		TermPrice:   m.TermPrice,
	}
}
