package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormInventoryRepository implements catalog.InventoryRepository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new GormInventoryRepository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// ItemIDForVariant returns the inventory item linked to a variant
func (r *GormInventoryRepository) ItemIDForVariant(ctx context.Context, variantID uuid.UUID) (uuid.UUID, error) {
	var item InventoryItemModel
	err := r.db.WithContext(ctx).Where("variant_id = ?", variantID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, shared.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return item.ID, nil
}

// ItemIDForSKU returns the inventory item carrying a SKU
func (r *GormInventoryRepository) ItemIDForSKU(ctx context.Context, sku string) (uuid.UUID, error) {
	var item InventoryItemModel
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, shared.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return item.ID, nil
}

// Level returns the stocked level of one item at one location
func (r *GormInventoryRepository) Level(ctx context.Context, locationID, itemID uuid.UUID) (*catalog.InventoryLevel, error) {
	var model InventoryLevelModel
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND inventory_item_id = ?", locationID, itemID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	level := model.ToDomain()
	return &level, nil
}

// CreateLevels creates inventory levels in one call
func (r *GormInventoryRepository) CreateLevels(ctx context.Context, levels []catalog.InventoryLevel) error {
	if len(levels) == 0 {
		return nil
	}
	models := make([]InventoryLevelModel, 0, len(levels))
	for _, level := range levels {
		models = append(models, InventoryLevelModel{
			BaseModel:       BaseModel{ID: uuid.New()},
			LocationID:      level.LocationID,
			InventoryItemID: level.InventoryItemID,
			Stocked:         level.Stocked,
		})
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

// UpdateLevel sets the stocked quantity of one item at one location
func (r *GormInventoryRepository) UpdateLevel(ctx context.Context, locationID, itemID uuid.UUID, stocked int) error {
	result := r.db.WithContext(ctx).
		Model(&InventoryLevelModel{}).
		Where("location_id = ? AND inventory_item_id = ?", locationID, itemID).
		Update("stocked", stocked)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
