package persistence

import (
	"context"
	"errors"

	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/erp/docengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCatalogRepository implements packaging.CatalogReader over the
// product_packaging and price_entries tables
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindPackaging returns the packaging metadata of a product
func (r *GormCatalogRepository) FindPackaging(ctx context.Context, companyID int64, productCode string) (packaging.Packaging, bool, error) {
	var model models.ProductPackagingModel
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND product_code = ?", companyID, productCode).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return packaging.Packaging{}, false, nil
		}
		return packaging.Packaging{}, false, translateError(err)
	}
	return model.ToDomain(), true, nil
}

// FindPrice returns the price entry of (product, client). A client without
// an entry of its own gets found=false; no other client's price is used.
func (r *GormCatalogRepository) FindPrice(ctx context.Context, companyID int64, productCode string, clientID int64) (packaging.PriceEntry, bool, error) {
	var model models.PriceEntryModel
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND product_code = ? AND client_id = ?", companyID, productCode, clientID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return packaging.PriceEntry{}, false, nil
		}
		return packaging.PriceEntry{}, false, translateError(err)
	}
	return model.ToDomain(), true, nil
}

// SavePackaging inserts or replaces packaging metadata
func (r *GormCatalogRepository) SavePackaging(ctx context.Context, companyID int64, p packaging.Packaging) error {
	model := models.ProductPackagingModel{
		CompanyID:        companyID,
		ProductCode:      p.ProductCode,
		AreaPerPackage:   p.AreaPerPackage,
		PiecesPerPackage: p.PiecesPerPackage,
	}
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error)
}

// SavePrice inserts or replaces a price entry
func (r *GormCatalogRepository) SavePrice(ctx context.Context, companyID int64, p packaging.PriceEntry) error {
	model := models.PriceEntryModel{
		CompanyID:   companyID,
		ProductCode: p.ProductCode,
		ClientID:    p.ClientID,
		CashPrice:   p.CashPrice,
		TermPrice:   p.TermPrice,
	}
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error)
}

var _ packaging.CatalogReader = (*GormCatalogRepository)(nil)
