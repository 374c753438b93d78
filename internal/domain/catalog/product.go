package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the lifecycle status of a product
type ProductStatus string

const (
	// StatusDraft marks a product that is not yet visible in the storefront
	StatusDraft ProductStatus = "draft"
	// StatusPublished marks a product that is live in the storefront
	StatusPublished ProductStatus = "published"
)

// IsValid checks if the status is a known value
func (s ProductStatus) IsValid() bool {
	return s == StatusDraft || s == StatusPublished
}

// PriceQuote is one money amount for one store currency.
// Amount is always rounded to 2 decimal places.
type PriceQuote struct {
	CurrencyCode string          `json:"currency_code"`
	Amount       decimal.Decimal `json:"amount"`
}

// Variant represents a purchasable variation of a product
type Variant struct {
	ID              uuid.UUID      `json:"id"`
	ProductID       uuid.UUID      `json:"product_id"`
	Title           string         `json:"title"`
	SKU             string         `json:"sku,omitempty"`
	SizeOption      string         `json:"size_option,omitempty"`
	Prices          []PriceQuote   `json:"prices,omitempty"`
	InventoryItemID *uuid.UUID     `json:"inventory_item_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// PriceFor returns the variant's price in the given currency, if present
func (v *Variant) PriceFor(currencyCode string) (PriceQuote, bool) {
	for _, p := range v.Prices {
		if p.CurrencyCode == currencyCode {
			return p, true
		}
	}
	return PriceQuote{}, false
}

// Product is the catalog aggregate produced by the import pipeline
// and read back by the export formatter.
type Product struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Handle      string         `json:"handle,omitempty"`
	Subtitle    string         `json:"subtitle,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      ProductStatus  `json:"status"`
	Thumbnail   string         `json:"thumbnail,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CategoryIDs []uuid.UUID    `json:"category_ids,omitempty"`
	BrandID     *uuid.UUID     `json:"brand_id,omitempty"`
	Variants    []Variant      `json:"variants,omitempty"`
}

// FirstVariant returns the product's first variant, if any.
// The import pipeline creates exactly one variant per product; the
// export formatter only projects the first one.
func (p *Product) FirstVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	return &p.Variants[0]
}
