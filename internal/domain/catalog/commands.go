package catalog

import (
	"github.com/google/uuid"
)

// CreateVariantInput is the canonical command for creating one variant
type CreateVariantInput struct {
	Title      string
	SKU        string
	SizeOption string
	Prices     []PriceQuote
	Metadata   map[string]any
}

// LocationStock is the target stock level for one variant at one location
type LocationStock struct {
	LocationID uuid.UUID
	SKU        string
	Quantity   int
}

// CreateProductInput is the canonical product-create command assembled by
// the row processor: one product with exactly one variant, resolved
// references, and derived stock defaults.
type CreateProductInput struct {
	Title       string
	Handle      string
	Subtitle    string
	Description string
	Status      ProductStatus
	Thumbnail   string
	Images      []string
	Metadata    map[string]any
	CategoryIDs []uuid.UUID
	BrandID     *uuid.UUID
	Variants    []CreateVariantInput
	Stock       LocationStock
	SourceRow   int
}

// VariantPriceUpdate carries the target prices for one variant
type VariantPriceUpdate struct {
	VariantID uuid.UUID
	Prices    []PriceQuote
}
