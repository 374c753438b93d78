package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBrandRepository implements catalog.BrandRepository using GORM
type GormBrandRepository struct {
	db *gorm.DB
}

// NewGormBrandRepository creates a new GormBrandRepository
func NewGormBrandRepository(db *gorm.DB) *GormBrandRepository {
	return &GormBrandRepository{db: db}
}

// brandProductRow is one row of the brand_products join table
type brandProductRow struct {
	BrandModelID   uuid.UUID `gorm:"column:brand_model_id"`
	ProductModelID uuid.UUID `gorm:"column:product_model_id"`
}

// FindAll returns every brand with its linked product IDs. The join
// table is read once so callers can build a product-to-brand map
// without per-product lookups.
func (r *GormBrandRepository) FindAll(ctx context.Context) ([]catalog.Brand, error) {
	var models []BrandModel
	if err := r.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}

	var links []brandProductRow
	if err := r.db.WithContext(ctx).Table("brand_products").Find(&links).Error; err != nil {
		return nil, err
	}
	productsByBrand := make(map[uuid.UUID][]uuid.UUID, len(models))
	for _, link := range links {
		productsByBrand[link.BrandModelID] = append(productsByBrand[link.BrandModelID], link.ProductModelID)
	}

	brands := make([]catalog.Brand, 0, len(models))
	for _, m := range models {
		brands = append(brands, catalog.Brand{
			ID:         m.ID,
			Name:       m.Name,
			ProductIDs: productsByBrand[m.ID],
		})
	}
	return brands, nil
}

// LinkProduct links a product to a brand. Linking twice is a no-op.
func (r *GormBrandRepository) LinkProduct(ctx context.Context, brandID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Table("brand_products").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]any{
			"brand_model_id":   brandID,
			"product_model_id": productID,
		}).Error
}

// GormCategoryRepository implements catalog.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindAll returns every category
func (r *GormCategoryRepository) FindAll(ctx context.Context) ([]catalog.Category, error) {
	var models []CategoryModel
	if err := r.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	categories := make([]catalog.Category, 0, len(models))
	for _, m := range models {
		categories = append(categories, m.ToDomain())
	}
	return categories, nil
}
