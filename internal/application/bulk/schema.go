package bulk

import (
	"encoding/json"
	"strings"

	"github.com/storefront/backend/internal/infrastructure/csvio"
)

// Canonical field names the pipeline consumes directly. Every other
// column, known extension or not, is routed verbatim into the row's
// metadata bag under its original header text, so arbitrary
// SEO/marketplace columns pass through without a schema migration.
const (
	FieldTitle        = "title"
	FieldSKU          = "sku"
	FieldSubtitle     = "subtitle"
	FieldDescription  = "description"
	FieldStock        = "stock"
	FieldSalesPrice   = "sales_price"
	FieldRegularPrice = "regular_price"
	FieldCategories   = "categories"
	FieldImages       = "images"
	FieldBrand        = "brand"
	FieldSize         = "size"
	FieldPublished    = "published"
	FieldStatus       = "status"
)

// fieldAliases maps accepted header spellings to canonical field names
var fieldAliases = map[string]string{
	"title":         FieldTitle,
	"name":          FieldTitle,
	"sku":           FieldSKU,
	"subtitle":      FieldSubtitle,
	"description":   FieldDescription,
	"stock":         FieldStock,
	"quantity":      FieldStock,
	"sales_price":   FieldSalesPrice,
	"sale_price":    FieldSalesPrice,
	"regular_price": FieldRegularPrice,
	"categories":    FieldCategories,
	"category":      FieldCategories,
	"images":        FieldImages,
	"brand":         FieldBrand,
	"size":          FieldSize,
	"published":     FieldPublished,
	"status":        FieldStatus,
}

// ignoredColumns are identifier/bookkeeping columns emitted by the
// exporter that carry nothing on import and stay out of the metadata bag.
var ignoredColumns = map[string]bool{
	"id":         true,
	"product_id": true,
	"type":       true,
}

// MetaColumn is one source column routed into the metadata bag
type MetaColumn struct {
	Header string
	Index  int
}

// FieldMap maps canonical field names to source column indexes.
// Built once per import; header matching is case-insensitive.
type FieldMap struct {
	fields map[string]int
	meta   []MetaColumn
}

// BuildFieldMap builds a FieldMap from the header row
func BuildFieldMap(headers []string) *FieldMap {
	fm := &FieldMap{fields: make(map[string]int)}
	for i, h := range headers {
		norm := strings.ToLower(strings.TrimSpace(h))
		if norm == "" || ignoredColumns[norm] {
			continue
		}
		if canonical, ok := fieldAliases[norm]; ok {
			if _, dup := fm.fields[canonical]; !dup {
				fm.fields[canonical] = i
			}
			continue
		}
		fm.meta = append(fm.meta, MetaColumn{Header: h, Index: i})
	}
	return fm
}

// Has reports whether a canonical field was present in the headers
func (fm *FieldMap) Has(field string) bool {
	_, ok := fm.fields[field]
	return ok
}

// Value returns the row's value for a canonical field, or "" when the
// column is absent.
func (fm *FieldMap) Value(row *csvio.Row, field string) string {
	idx, ok := fm.fields[field]
	if !ok || idx >= len(row.Fields) {
		return ""
	}
	return row.Fields[idx]
}

// MetaColumns returns the columns routed to the metadata bag
func (fm *FieldMap) MetaColumns() []MetaColumn {
	return fm.meta
}

// Metadata builds the row's metadata bag. List-like SEO fields are
// parsed as JSON first, falling back to comma-splitting; product_schema
// is parsed as a JSON object with string fallback; everything else is
// kept verbatim.
func (fm *FieldMap) Metadata(row *csvio.Row) map[string]any {
	bag := make(map[string]any, len(fm.meta))
	for _, col := range fm.meta {
		if col.Index >= len(row.Fields) {
			continue
		}
		value := row.Fields[col.Index]
		if value == "" {
			continue
		}
		bag[col.Header] = parseMetaValue(col.Header, value)
	}
	return bag
}

// parseMetaValue applies the per-field parsing rules for extension columns
func parseMetaValue(header, value string) any {
	norm := strings.ToLower(strings.TrimSpace(header))

	if isListField(norm) {
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
		parts := strings.Split(value, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		return list
	}

	if norm == "product_schema" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(value), &obj); err == nil {
			return obj
		}
		return value
	}

	return value
}

// RowPreview is a compact projection of one data row, shown to the
// caller of the dry-run endpoint before committing to a full import.
type RowPreview struct {
	Line       int      `json:"line"`
	Title      string   `json:"title"`
	SKU        string   `json:"sku,omitempty"`
	Brand      string   `json:"brand,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Preview projects up to limit rows through the field map
func Preview(headers []string, rows []*csvio.Row, limit int) []RowPreview {
	fm := BuildFieldMap(headers)
	if limit > len(rows) {
		limit = len(rows)
	}
	previews := make([]RowPreview, 0, limit)
	for _, row := range rows[:limit] {
		previews = append(previews, RowPreview{
			Line:       row.Line,
			Title:      fm.Value(row, FieldTitle),
			SKU:        fm.Value(row, FieldSKU),
			Brand:      fm.Value(row, FieldBrand),
			Categories: SplitList(fm.Value(row, FieldCategories)),
		})
	}
	return previews
}

// isListField reports whether a normalized header names a list-valued
// SEO extension field.
func isListField(norm string) bool {
	return strings.Contains(norm, "synonyms") ||
		strings.Contains(norm, "keyphrases") ||
		norm == "robots_advanced" ||
		norm == "faq_schema"
}
