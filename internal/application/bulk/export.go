package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/infrastructure/csvio"
	"go.uber.org/zap"
)

// exportColumns is the canonical column order. It matches the import
// schema so export output is directly re-importable.
var exportColumns = []string{
	"id",
	"product_id",
	"type",
	"sku",
	"name",
	"subtitle",
	"description",
	"stock",
	"sales_price",
	"regular_price",
	"categories",
	"images",
	"brand",
	"model",
	"gender",
	"rim_style",
	"shape",
	"frame_material",
	"size",
	"lens_width",
	"leng_bridge",
	"arm_length",
	"condition",
	"keywords",
	"age_group",
	"region_availability",
	"published",
}

// metadataColumns are the extension columns projected back out of the
// product metadata bag, keyed by column name.
var metadataColumns = []string{
	"model",
	"gender",
	"rim_style",
	"shape",
	"frame_material",
	"lens_width",
	"leng_bridge",
	"arm_length",
	"condition",
	"keywords",
	"age_group",
	"region_availability",
}

const exportPageSize = 100

// Exporter flattens the catalog into the canonical CSV schema. One row
// per product: variants beyond the first are intentionally not
// exported.
type Exporter struct {
	products   catalog.ProductRepository
	brands     catalog.BrandRepository
	categories catalog.CategoryRepository
	inventory  catalog.InventoryRepository
	locationID uuid.UUID
	currency   string
	logger     *zap.Logger
}

// NewExporter creates an Exporter. currency selects which price quote
// becomes the exported sales_price.
func NewExporter(
	products catalog.ProductRepository,
	brands catalog.BrandRepository,
	categories catalog.CategoryRepository,
	inventory catalog.InventoryRepository,
	locationID uuid.UUID,
	currency string,
	logger *zap.Logger,
) *Exporter {
	if currency == "" {
		currency = "USD"
	}
	return &Exporter{
		products:   products,
		brands:     brands,
		categories: categories,
		inventory:  inventory,
		locationID: locationID,
		currency:   currency,
		logger:     logger,
	}
}

// Export writes the whole catalog as CSV, paginating product reads.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	// Brand and category names are resolved through maps built once up
	// front, not per row.
	brandNames, err := e.brandNamesByProduct(ctx)
	if err != nil {
		return fmt.Errorf("failed to load brands: %w", err)
	}
	categoryNames, err := e.categoryNamesByID(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	writer := csvio.NewWriter(w)
	if err := writer.WriteRow(exportColumns); err != nil {
		return err
	}

	exported := 0
	for page := 1; ; page++ {
		products, total, err := e.products.List(ctx, page, exportPageSize)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		if len(products) == 0 {
			break
		}
		for i := range products {
			row := e.formatRow(ctx, &products[i], brandNames, categoryNames)
			if err := writer.WriteRow(row); err != nil {
				return err
			}
			exported++
		}
		if int64(exported) >= total {
			break
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	e.logger.Info("catalog export finished", zap.Int("products", exported))
	return nil
}

// brandNamesByProduct scans every brand and its linked products once
func (e *Exporter) brandNamesByProduct(ctx context.Context) (map[uuid.UUID]string, error) {
	brands, err := e.brands.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string)
	for _, b := range brands {
		for _, productID := range b.ProductIDs {
			names[productID] = b.Name
		}
	}
	return names, nil
}

func (e *Exporter) categoryNamesByID(ctx context.Context) (map[uuid.UUID]string, error) {
	categories, err := e.categories.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (e *Exporter) formatRow(ctx context.Context, product *catalog.Product, brandNames map[uuid.UUID]string, categoryNames map[uuid.UUID]string) []string {
	fields := make(map[string]string, len(exportColumns))

	fields["id"] = product.ID.String()
	fields["product_id"] = product.ID.String()
	fields["type"] = "simple"
	fields["name"] = product.Title
	fields["subtitle"] = product.Subtitle
	fields["description"] = product.Description
	fields["images"] = strings.Join(product.Images, ",")
	fields["brand"] = brandNames[product.ID]

	names := make([]string, 0, len(product.CategoryIDs))
	for _, id := range product.CategoryIDs {
		if name, ok := categoryNames[id]; ok {
			names = append(names, name)
		}
	}
	fields["categories"] = strings.Join(names, ",")

	if product.Status == catalog.StatusPublished {
		fields["published"] = "1"
	} else {
		fields["published"] = "0"
	}

	if variant := product.FirstVariant(); variant != nil {
		fields["sku"] = variant.SKU
		fields["size"] = variant.SizeOption
		if quote, ok := variant.PriceFor(e.currency); ok {
			fields["sales_price"] = quote.Amount.StringFixed(2)
		}
		fields["stock"] = e.stockFor(ctx, variant)
	}

	for _, column := range metadataColumns {
		if value, ok := metadataValue(product.Metadata, column); ok {
			fields[column] = value
		}
	}

	row := make([]string, len(exportColumns))
	for i, column := range exportColumns {
		row[i] = fields[column]
	}
	return row
}

// stockFor reads the first variant's inventory level at the export
// location. A missing link or level exports as empty, not zero, so a
// re-import does not overwrite stock that was never recorded.
func (e *Exporter) stockFor(ctx context.Context, variant *catalog.Variant) string {
	itemID := uuid.Nil
	if variant.InventoryItemID != nil {
		itemID = *variant.InventoryItemID
	} else if id, err := e.inventory.ItemIDForVariant(ctx, variant.ID); err == nil {
		itemID = id
	}
	if itemID == uuid.Nil {
		return ""
	}
	level, err := e.inventory.Level(ctx, e.locationID, itemID)
	if err != nil || level == nil {
		return ""
	}
	return strconv.Itoa(level.Stocked)
}

// metadataValue extracts one extension field from the metadata bag by
// case-insensitive key and flattens it to CSV text: lists are
// comma-joined, objects re-serialized as JSON.
func metadataValue(metadata map[string]any, column string) (string, bool) {
	for key, value := range metadata {
		if !strings.EqualFold(strings.TrimSpace(key), column) {
			continue
		}
		switch v := value.(type) {
		case string:
			return v, true
		case []string:
			return strings.Join(v, ","), true
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, ","), true
		case nil:
			return "", false
		default:
			if encoded, err := json.Marshal(v); err == nil {
				return string(encoded), true
			}
			return fmt.Sprint(v), true
		}
	}
	return "", false
}
