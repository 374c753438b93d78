package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository is the catalog store consumed by the import
// orchestrator and the export formatter. Batch creation is idempotent
// by SKU: re-submitting a command whose variant SKU already exists
// returns the existing product instead of duplicating it.
type ProductRepository interface {
	// CreateBatch creates products from commands and returns the created
	// (or SKU-matched existing) products in command order.
	CreateBatch(ctx context.Context, inputs []CreateProductInput) ([]Product, error)

	// UpdateVariantPrices replaces the prices of the given variants of one product
	UpdateVariantPrices(ctx context.Context, productID uuid.UUID, updates []VariantPriceUpdate) error

	// VariantPrices returns the currently stored prices for a variant
	VariantPrices(ctx context.Context, variantID uuid.UUID) ([]PriceQuote, error)

	// List returns one page of products with variants, prices, categories
	// and metadata loaded, plus the total product count.
	List(ctx context.Context, page, pageSize int) ([]Product, int64, error)
}

// BrandRepository resolves brand names and links products to brands
type BrandRepository interface {
	// FindAll returns every brand with its linked product IDs
	FindAll(ctx context.Context) ([]Brand, error)

	// LinkProduct links a created product to a brand
	LinkProduct(ctx context.Context, brandID, productID uuid.UUID) error
}

// CategoryRepository resolves category names
type CategoryRepository interface {
	FindAll(ctx context.Context) ([]Category, error)
}

// InventoryRepository is the eventually-consistent inventory store.
// The variant to inventory-item link is created asynchronously by the
// catalog store, so ItemIDForVariant may return shared.ErrNotFound for
// a short window after product creation.
type InventoryRepository interface {
	ItemIDForVariant(ctx context.Context, variantID uuid.UUID) (uuid.UUID, error)
	ItemIDForSKU(ctx context.Context, sku string) (uuid.UUID, error)
	Level(ctx context.Context, locationID, itemID uuid.UUID) (*InventoryLevel, error)
	CreateLevels(ctx context.Context, levels []InventoryLevel) error
	UpdateLevel(ctx context.Context, locationID, itemID uuid.UUID, stocked int) error
}
