package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// CreateBatch creates products from commands inside one transaction.
// Creation is idempotent by SKU: a command whose variant SKU already
// exists returns the existing product instead of duplicating it.
// Each created variant gets an inventory item linked to it.
func (r *GormProductRepository) CreateBatch(ctx context.Context, inputs []catalog.CreateProductInput) ([]catalog.Product, error) {
	products := make([]catalog.Product, 0, len(inputs))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range inputs {
			product, err := r.createOne(tx, &inputs[i])
			if err != nil {
				return fmt.Errorf("row %d (%s): %w", inputs[i].SourceRow, inputs[i].Title, err)
			}
			products = append(products, *product)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) createOne(tx *gorm.DB, input *catalog.CreateProductInput) (*catalog.Product, error) {
	if existing, err := r.findBySKU(tx, input); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	model := ProductModel{
		BaseModel:   BaseModel{ID: uuid.New()},
		Title:       input.Title,
		Handle:      input.Handle,
		Subtitle:    input.Subtitle,
		Description: input.Description,
		Status:      input.Status,
		Thumbnail:   input.Thumbnail,
		Images:      encodeJSON(input.Images),
		Metadata:    encodeJSON(input.Metadata),
	}
	for _, id := range input.CategoryIDs {
		model.Categories = append(model.Categories, CategoryModel{BaseModel: BaseModel{ID: id}})
	}
	for _, v := range input.Variants {
		variant := VariantModel{
			BaseModel:  BaseModel{ID: uuid.New()},
			ProductID:  model.ID,
			Title:      v.Title,
			SKU:        v.SKU,
			SizeOption: v.SizeOption,
			Metadata:   encodeJSON(v.Metadata),
		}
		for _, q := range v.Prices {
			variant.Prices = append(variant.Prices, PriceModel{
				BaseModel:    BaseModel{ID: uuid.New()},
				VariantID:    variant.ID,
				CurrencyCode: q.CurrencyCode,
				Amount:       q.Amount,
			})
		}
		model.Variants = append(model.Variants, variant)
	}

	// Omit category columns so the association only writes join rows
	if err := tx.Omit("Categories.*").Create(&model).Error; err != nil {
		return nil, err
	}

	for i := range model.Variants {
		item := InventoryItemModel{
			BaseModel: BaseModel{ID: uuid.New()},
			VariantID: &model.Variants[i].ID,
			SKU:       model.Variants[i].SKU,
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&model.Variants[i]).Update("inventory_item_id", item.ID).Error; err != nil {
			return nil, err
		}
		model.Variants[i].InventoryItemID = &item.ID
	}

	product := model.ToDomain()
	return &product, nil
}

// findBySKU returns the already-existing product for a command whose
// first variant SKU is taken, or nil when the command is new.
func (r *GormProductRepository) findBySKU(tx *gorm.DB, input *catalog.CreateProductInput) (*catalog.Product, error) {
	sku := ""
	for _, v := range input.Variants {
		if v.SKU != "" {
			sku = v.SKU
			break
		}
	}
	if sku == "" {
		return nil, nil
	}

	var variant VariantModel
	err := tx.Where("sku = ?", sku).First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var model ProductModel
	if err := tx.Preload("Variants.Prices").Preload("Categories").
		First(&model, "id = ?", variant.ProductID).Error; err != nil {
		return nil, err
	}
	product := model.ToDomain()
	return &product, nil
}

// UpdateVariantPrices replaces the prices of the given variants of one
// product. Price rows are upserted by (variant, currency).
func (r *GormProductRepository) UpdateVariantPrices(ctx context.Context, productID uuid.UUID, updates []catalog.VariantPriceUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			var count int64
			if err := tx.Model(&VariantModel{}).
				Where("id = ? AND product_id = ?", update.VariantID, productID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("variant %s does not belong to product %s", update.VariantID, productID)
			}

			for _, quote := range update.Prices {
				price := PriceModel{
					BaseModel:    BaseModel{ID: uuid.New()},
					VariantID:    update.VariantID,
					CurrencyCode: quote.CurrencyCode,
					Amount:       quote.Amount,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "variant_id"}, {Name: "currency_code"}},
					DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
				}).Create(&price).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// VariantPrices returns the currently stored prices for a variant
func (r *GormProductRepository) VariantPrices(ctx context.Context, variantID uuid.UUID) ([]catalog.PriceQuote, error) {
	var models []PriceModel
	if err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("currency_code").
		Find(&models).Error; err != nil {
		return nil, err
	}
	quotes := make([]catalog.PriceQuote, 0, len(models))
	for _, m := range models {
		quotes = append(quotes, catalog.PriceQuote{CurrencyCode: m.CurrencyCode, Amount: m.Amount})
	}
	return quotes, nil
}

// List returns one page of products with variants, prices and
// categories loaded, plus the total product count.
func (r *GormProductRepository) List(ctx context.Context, page, pageSize int) ([]catalog.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&ProductModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []ProductModel
	if err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Variants.Prices").
		Preload("Categories").
		Order("created_at").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	products := make([]catalog.Product, 0, len(models))
	for i := range models {
		products = append(products, models[i].ToDomain())
	}
	return products, total, nil
}
