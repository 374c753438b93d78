package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/infrastructure/csvio"
	"github.com/storefront/backend/internal/infrastructure/fx"
	"go.uber.org/zap"
)

// Rehoster rewrites a remote image URL to a self-hosted one. It never
// fails; on any error it returns the input unchanged.
type Rehoster interface {
	Rehost(ctx context.Context, url string) string
}

// centsThreshold is the magnitude above which an evenly-divisible
// amount is assumed to be cents rather than dollars.
var centsThreshold = decimal.NewFromInt(10000)

var oneHundred = decimal.NewFromInt(100)

// RowProcessor turns one validated CSV row into a canonical
// product-create command: one product with exactly one variant, derived
// stock defaults, fan-out pricing, and metadata extraction.
type RowProcessor struct {
	fieldMap   *FieldMap
	refs       *ResolvedReferences
	rates      *fx.Table
	rehoster   Rehoster
	currencies []string
	locationID uuid.UUID
	logger     *zap.Logger
}

// NewRowProcessor creates a RowProcessor for one import run
func NewRowProcessor(
	fieldMap *FieldMap,
	refs *ResolvedReferences,
	rates *fx.Table,
	rehoster Rehoster,
	currencies []string,
	locationID uuid.UUID,
	logger *zap.Logger,
) *RowProcessor {
	return &RowProcessor{
		fieldMap:   fieldMap,
		refs:       refs,
		rates:      rates,
		rehoster:   rehoster,
		currencies: currencies,
		locationID: locationID,
		logger:     logger,
	}
}

// Process converts one row. A nil command with a nil error means the
// row was skipped (blank title) rather than failed. Warnings report
// heuristic corrections without failing the row.
func (p *RowProcessor) Process(ctx context.Context, row *csvio.Row) (*catalog.CreateProductInput, []string, error) {
	title := strings.TrimSpace(p.fieldMap.Value(row, FieldTitle))
	if title == "" {
		return nil, nil, nil
	}

	var warnings []string

	metadata := p.fieldMap.Metadata(row)
	if colorCode := colorCodeFromTitle(title); colorCode != "" {
		metadata["color_code"] = colorCode
	}

	images := p.rehostAll(ctx, parseImageList(p.fieldMap.Value(row, FieldImages)))
	thumbnail := ""
	if len(images) > 0 {
		thumbnail = images[0]
	}

	var categoryIDs []uuid.UUID
	for _, name := range SplitList(p.fieldMap.Value(row, FieldCategories)) {
		// Unresolvable names were already rejected exhaustively before
		// processing began; anything unmatched here is simply omitted.
		if id, ok := p.refs.CategoryID(name); ok {
			categoryIDs = append(categoryIDs, id)
		}
	}

	salePrice, saleWarnings, err := p.parsePrice(row, FieldSalesPrice)
	if err != nil {
		return nil, warnings, err
	}
	warnings = append(warnings, saleWarnings...)

	regularPrice, regularWarnings, err := p.parsePrice(row, FieldRegularPrice)
	if err != nil {
		return nil, warnings, err
	}
	warnings = append(warnings, regularWarnings...)

	anchor := salePrice
	if anchor.LessThanOrEqual(decimal.Zero) {
		anchor = regularPrice
	}
	prices := p.fanOutPrices(anchor)

	sku := strings.TrimSpace(p.fieldMap.Value(row, FieldSKU))
	size := strings.TrimSpace(p.fieldMap.Value(row, FieldSize))

	variantTitle := title
	if size != "" {
		variantTitle = fmt.Sprintf("%s - %s", title, size)
	}

	var brandID *uuid.UUID
	if name := strings.TrimSpace(p.fieldMap.Value(row, FieldBrand)); name != "" {
		if id, ok := p.refs.BrandID(name); ok {
			brandID = &id
		}
	}

	stockQty := 0
	if raw := strings.TrimSpace(p.fieldMap.Value(row, FieldStock)); raw != "" {
		if qty, err := strconv.Atoi(raw); err == nil && qty >= 0 {
			stockQty = qty
		}
	}

	cmd := &catalog.CreateProductInput{
		Title:       title,
		Handle:      slugify(title),
		Subtitle:    p.fieldMap.Value(row, FieldSubtitle),
		Description: p.fieldMap.Value(row, FieldDescription),
		Status:      p.parseStatus(row),
		Thumbnail:   thumbnail,
		Images:      images,
		Metadata:    metadata,
		CategoryIDs: categoryIDs,
		BrandID:     brandID,
		Variants: []catalog.CreateVariantInput{{
			Title:      variantTitle,
			SKU:        sku,
			SizeOption: size,
			Prices:     prices,
			Metadata:   metadata,
		}},
		Stock: catalog.LocationStock{
			LocationID: p.locationID,
			SKU:        sku,
			Quantity:   stockQty,
		},
		SourceRow: row.Line,
	}
	return cmd, warnings, nil
}

// parsePrice parses a decimal dollar amount, applying the cents
// heuristic, and returns zero for an empty cell.
func (p *RowProcessor) parsePrice(row *csvio.Row, field string) (decimal.Decimal, []string, error) {
	raw := strings.TrimSpace(p.fieldMap.Value(row, field))
	raw = strings.TrimPrefix(raw, "$")
	if raw == "" {
		return decimal.Zero, nil, nil
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("invalid %s value %q", field, raw)
	}

	normalized, corrected := normalizeCentsAmount(amount)
	if corrected {
		warning := fmt.Sprintf("row %d: %s %s looks like cents, normalized to %s",
			row.Line, field, amount.String(), normalized.StringFixed(2))
		p.logger.Warn("price normalized by cents heuristic",
			zap.Int("row", row.Line),
			zap.String("field", field),
			zap.String("original", amount.String()),
			zap.String("normalized", normalized.StringFixed(2)),
		)
		return normalized, []string{warning}, nil
	}
	return normalized, nil, nil
}

// normalizeCentsAmount applies the "looks like cents" heuristic: an
// amount over 10,000 that divides evenly by 100 is assumed to be cents
// from a misformatted spreadsheet and is divided by 100.
//
// The heuristic can misfire on legitimately large round prices; it is
// kept isolated here so the rule can be revisited on its own.
func normalizeCentsAmount(amount decimal.Decimal) (decimal.Decimal, bool) {
	if amount.GreaterThan(centsThreshold) && amount.Mod(oneHundred).IsZero() {
		return amount.Div(oneHundred), true
	}
	return amount, false
}

// colorCodeFromTitle derives a color code from the third
// whitespace-separated token of the title. This mirrors the source
// catalog's "<model> <shape> <color>" naming convention and misfires on
// short titles; kept isolated for the same reason as the cents rule.
func colorCodeFromTitle(title string) string {
	fields := strings.Fields(title)
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// fanOutPrices converts one USD anchor amount into one quote per
// supported store currency, rounding to 2 decimal places and omitting
// currencies whose converted amount is not positive.
func (p *RowProcessor) fanOutPrices(anchor decimal.Decimal) []catalog.PriceQuote {
	if anchor.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	quotes := make([]catalog.PriceQuote, 0, len(p.currencies))
	for _, code := range p.currencies {
		rate, ok := p.rates.Rate(code)
		if !ok {
			continue
		}
		amount := anchor.Mul(decimal.NewFromFloat(rate)).Round(2)
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		quotes = append(quotes, catalog.PriceQuote{CurrencyCode: code, Amount: amount})
	}
	return quotes
}

// rehostAll rehosts every image of a row concurrently. Each rehost is
// independent: one slow or failing image never blocks or drops the others.
func (p *RowProcessor) rehostAll(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	results := make([]string, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = p.rehoster.Rehost(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

// parseStatus determines the product status from the published flag
// column ("1" means published), falling back to a legacy status column.
func (p *RowProcessor) parseStatus(row *csvio.Row) catalog.ProductStatus {
	if p.fieldMap.Has(FieldPublished) {
		if strings.TrimSpace(p.fieldMap.Value(row, FieldPublished)) == "1" {
			return catalog.StatusPublished
		}
		return catalog.StatusDraft
	}
	if strings.EqualFold(strings.TrimSpace(p.fieldMap.Value(row, FieldStatus)), string(catalog.StatusPublished)) {
		return catalog.StatusPublished
	}
	return catalog.StatusDraft
}

// parseImageList accepts either a JSON array of URLs or a pipe- or
// comma-separated list.
func parseImageList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "[") {
		var urls []string
		if err := json.Unmarshal([]byte(value), &urls); err == nil {
			out := make([]string, 0, len(urls))
			for _, u := range urls {
				if trimmed := strings.TrimSpace(u); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			return out
		}
	}

	sep := ","
	if strings.Contains(value, "|") {
		sep = "|"
	}
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// slugify builds a URL handle from a title
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
