package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
)

// BaseModel provides common persistence fields for all models
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// CategoryModel is the persistence model for the Category domain entity
type CategoryModel struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category
func (m *CategoryModel) ToDomain() catalog.Category {
	return catalog.Category{ID: m.ID, Name: m.Name}
}

// BrandModel is the persistence model for the Brand domain entity
type BrandModel struct {
	BaseModel
	Name     string         `gorm:"type:varchar(200);not null;uniqueIndex"`
	Products []ProductModel `gorm:"many2many:brand_products"`
}

// TableName returns the table name for GORM
func (BrandModel) TableName() string {
	return "brands"
}

// ProductModel is the persistence model for the Product aggregate
type ProductModel struct {
	BaseModel
	Title       string                `gorm:"type:varchar(500);not null"`
	Handle      string                `gorm:"type:varchar(500);index"`
	Subtitle    string                `gorm:"type:varchar(500)"`
	Description string                `gorm:"type:text"`
	Status      catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'draft'"`
	Thumbnail   string                `gorm:"type:text"`
	Images      string                `gorm:"type:jsonb"`
	Metadata    string                `gorm:"type:jsonb"`
	Categories  []CategoryModel       `gorm:"many2many:product_categories"`
	Variants    []VariantModel        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() catalog.Product {
	product := catalog.Product{
		ID:          m.ID,
		Title:       m.Title,
		Handle:      m.Handle,
		Subtitle:    m.Subtitle,
		Description: m.Description,
		Status:      m.Status,
		Thumbnail:   m.Thumbnail,
		Images:      decodeStringList(m.Images),
		Metadata:    decodeMetadata(m.Metadata),
	}
	for _, c := range m.Categories {
		product.CategoryIDs = append(product.CategoryIDs, c.ID)
	}
	for i := range m.Variants {
		product.Variants = append(product.Variants, m.Variants[i].ToDomain())
	}
	return product
}

// VariantModel is the persistence model for the Variant domain entity
type VariantModel struct {
	BaseModel
	ProductID       uuid.UUID    `gorm:"type:uuid;not null;index"`
	Title           string       `gorm:"type:varchar(500);not null"`
	SKU             string       `gorm:"type:varchar(100);index"`
	SizeOption      string       `gorm:"type:varchar(100)"`
	InventoryItemID *uuid.UUID   `gorm:"type:uuid;index"`
	Metadata        string       `gorm:"type:jsonb"`
	Prices          []PriceModel `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain Variant
func (m *VariantModel) ToDomain() catalog.Variant {
	variant := catalog.Variant{
		ID:              m.ID,
		ProductID:       m.ProductID,
		Title:           m.Title,
		SKU:             m.SKU,
		SizeOption:      m.SizeOption,
		InventoryItemID: m.InventoryItemID,
		Metadata:        decodeMetadata(m.Metadata),
	}
	for _, p := range m.Prices {
		variant.Prices = append(variant.Prices, catalog.PriceQuote{
			CurrencyCode: p.CurrencyCode,
			Amount:       p.Amount,
		})
	}
	return variant
}

// PriceModel is one money amount for one variant and currency
type PriceModel struct {
	BaseModel
	VariantID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_price_variant_currency,priority:1"`
	CurrencyCode string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_price_variant_currency,priority:2"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (PriceModel) TableName() string {
	return "variant_prices"
}

// InventoryItemModel is the stock-keeping unit behind a variant
type InventoryItemModel struct {
	BaseModel
	VariantID *uuid.UUID `gorm:"type:uuid;index"`
	SKU       string     `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// InventoryLevelModel is the stocked quantity of one item at one location
type InventoryLevelModel struct {
	BaseModel
	LocationID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_level_location_item,priority:1"`
	InventoryItemID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_level_location_item,priority:2"`
	Stocked         int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InventoryLevelModel) TableName() string {
	return "inventory_levels"
}

// ToDomain converts the persistence model to a domain InventoryLevel
func (m *InventoryLevelModel) ToDomain() catalog.InventoryLevel {
	return catalog.InventoryLevel{
		LocationID:      m.LocationID,
		InventoryItemID: m.InventoryItemID,
		Stocked:         m.Stocked,
	}
}

func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeStringList(data string) []string {
	if data == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil
	}
	return list
}

func decodeMetadata(data string) map[string]any {
	if data == "" {
		return nil
	}
	var bag map[string]any
	if err := json.Unmarshal([]byte(data), &bag); err != nil {
		return nil
	}
	return bag
}
