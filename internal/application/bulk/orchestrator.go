package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/csvio"
	"github.com/storefront/backend/internal/infrastructure/fx"
	"go.uber.org/zap"
)

// rowState tracks a row through the import pipeline. Rows advance
// Queued -> Created -> InventoryLinked -> PriceVerified; reconciliation
// failures after creation do not roll the product back, they stop the
// row at its last reached state.
type rowState string

const (
	stateQueued          rowState = "queued"
	stateCreated         rowState = "created"
	stateInventoryLinked rowState = "inventory_linked"
	statePriceVerified   rowState = "price_verified"
	stateFailed          rowState = "failed"
)

// pendingProduct is one accepted row moving through batch creation and
// the two-phase post-creation reconciliation.
type pendingProduct struct {
	cmd     *catalog.CreateProductInput
	product *catalog.Product
	state   rowState
}

// ImportResult is the outcome of one bulk import run. A partial failure
// (some rows created, some recorded as errors) is a normal, reportable
// outcome, never an aborted import.
type ImportResult struct {
	TotalRows    int        `json:"total_rows"`
	CreatedCount int        `json:"created_count"`
	SkippedRows  int        `json:"skipped_rows"`
	RowErrors    []RowError `json:"per_row_errors,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
	TotalErrors  int        `json:"total_errors,omitempty"`
	IsTruncated  bool       `json:"is_truncated,omitempty"`
}

// Config holds import orchestration settings
type Config struct {
	BatchSize       int
	Workers         int
	Currencies      []string
	StockLocationID uuid.UUID
	LinkRetries     int
	LinkRetryDelay  time.Duration
	MaxReportedRows int
}

// ImportService orchestrates the bulk import: exhaustive reference
// validation, rate resolution, per-row processing with failure
// isolation, fixed-size batch creation, and downstream reconciliation.
type ImportService struct {
	products   catalog.ProductRepository
	brands     catalog.BrandRepository
	categories catalog.CategoryRepository
	inventory  catalog.InventoryRepository
	rates      *fx.Provider
	rehoster   Rehoster
	resolver   *ReferenceResolver
	cfg        Config
	logger     *zap.Logger

	// injectable clock for the await-downstream-consistency step
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// ImportOption configures an ImportService
type ImportOption func(*ImportService)

// WithClock overrides the service clock and sleeper, for tests
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) ImportOption {
	return func(s *ImportService) {
		s.now = now
		s.sleep = sleep
	}
}

// NewImportService creates an ImportService
func NewImportService(
	products catalog.ProductRepository,
	brands catalog.BrandRepository,
	categories catalog.CategoryRepository,
	inventory catalog.InventoryRepository,
	rates *fx.Provider,
	rehoster Rehoster,
	cfg Config,
	logger *zap.Logger,
	opts ...ImportOption,
) *ImportService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxReportedRows <= 0 {
		cfg.MaxReportedRows = 100
	}
	s := &ImportService{
		products:   products,
		brands:     brands,
		categories: categories,
		inventory:  inventory,
		rates:      rates,
		rehoster:   rehoster,
		resolver:   NewReferenceResolver(categories, brands),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ImportAll runs the whole pipeline over tokenized rows. rateOverride,
// when non-empty, replaces the live exchange rate lookup entirely.
//
// A *ValidationError return means the file referenced categories or
// brands that do not exist; it carries the complete missing list.
func (s *ImportService) ImportAll(ctx context.Context, headers []string, rows []*csvio.Row, rateOverride map[string]float64) (*ImportResult, error) {
	fm := BuildFieldMap(headers)
	if !fm.Has(FieldTitle) {
		return nil, shared.NewDomainError(ErrCodeMissingColumn, "CSV is missing a required 'name' column")
	}

	refs, missing, err := s.resolver.Resolve(ctx, rows, fm)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}
	if !missing.IsEmpty() {
		return nil, &ValidationError{Missing: missing}
	}

	table := s.rates.Rates(ctx, rateOverride)

	processor := NewRowProcessor(fm, refs, table, s.rehoster, s.cfg.Currencies, s.cfg.StockLocationID, s.logger)

	rowErrors := NewErrorCollection(s.cfg.MaxReportedRows)
	var warnings []string
	var pending []*pendingProduct
	skipped := 0

	for _, row := range rows {
		cmd, rowWarnings, err := s.processRow(ctx, processor, row)
		warnings = append(warnings, rowWarnings...)
		if err != nil {
			rowErrors.Add(NewRowError(row.Line, fm.Value(row, FieldTitle), ErrCodeRowFailed, err.Error()))
			continue
		}
		if cmd == nil {
			// Blank title: silently skipped, not an error
			skipped++
			continue
		}
		pending = append(pending, &pendingProduct{cmd: cmd, state: stateQueued})
	}

	created := 0
	for _, batch := range partition(pending, s.cfg.BatchSize) {
		// Cancellation stops before the next batch; an issued batch
		// runs to completion or recorded failure.
		if ctx.Err() != nil {
			break
		}
		created += s.importBatch(ctx, batch, rowErrors, &warnings)
	}

	result := &ImportResult{
		TotalRows:    len(rows),
		CreatedCount: created,
		SkippedRows:  skipped,
		RowErrors:    rowErrors.Errors(),
		Warnings:     warnings,
		TotalErrors:  rowErrors.TotalCount(),
		IsTruncated:  rowErrors.IsTruncated(),
	}

	s.logger.Info("bulk import finished",
		zap.Int("total_rows", result.TotalRows),
		zap.Int("created", result.CreatedCount),
		zap.Int("skipped", result.SkippedRows),
		zap.Int("errors", result.TotalErrors),
	)
	return result, nil
}

/// Validate runs the pre-flight checks only: required columns and
// exhaustive reference resolution. Nothing is created.
func (s *ImportService) Validate(ctx context.Context, headers []string, rows []*csvio.Row) (*MissingReferences, error) {
	fm := BuildFieldMap(headers)
	if !fm.Has(FieldTitle) {
		return nil, shared.NewDomainError(ErrCodeMissingColumn, "CSV is missing a required 'name' column")
	}
	_, missing, err := s.resolver.Resolve(ctx, rows, fm)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}
	return missing, nil
}

/// processRow isolates one row: any panic while processing is converted
// into a per-row error so the import continues with the next row.
func (s *ImportService) processRow(ctx context.Context, processor *RowProcessor, row *csvio.Row) (cmd *catalog.CreateProductInput, warnings []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cmd = nil
			err = fmt.Errorf("row processing panicked: %v", rec)
		}
	}()
	return processor.Process(ctx, row)
}

// importBatch creates one batch of products and reconciles downstream
// state. Returns the number of products created.
func (s *ImportService) importBatch(ctx context.Context, batch []*pendingProduct, rowErrors *ErrorCollection, warnings *[]string) int {
	// Creation is submitted with variant prices stripped: creating price
	// and product in one call races against the store's async pricing
	// hooks, so prices are reconciled separately after inventory.
	inputs := make([]catalog.CreateProductInput, len(batch))
	for i, p := range batch {
		in := *p.cmd
		variants := make([]catalog.CreateVariantInput, len(in.Variants))
		for j, v := range in.Variants {
			v.Prices = nil
			variants[j] = v
		}
		in.Variants = variants
		inputs[i] = in
	}

	products, err := s.products.CreateBatch(ctx, inputs)
	if err != nil {
		for _, p := range batch {
			p.state = stateFailed
			rowErrors.Add(NewRowError(p.cmd.SourceRow, p.cmd.Title, ErrCodeCreateFailed, err.Error()))
		}
		return 0
	}

	created := 0
	for i := range batch {
		if i < len(products) {
			batch[i].product = &products[i]
			batch[i].state = stateCreated
			created++
		}
	}

	s.linkBrands(ctx, batch)
	s.reconcileInventory(ctx, batch)
	s.reconcilePrices(ctx, batch, warnings)

	return created
}

// linkBrands links each created product to its resolved brand. A link
// failure is logged and skipped, not fatal.
func (s *ImportService) linkBrands(ctx context.Context, batch []*pendingProduct) {
	for _, p := range batch {
		if p.product == nil || p.cmd.BrandID == nil {
			continue
		}
		if err := s.brands.LinkProduct(ctx, *p.cmd.BrandID, p.product.ID); err != nil {
			s.logger.Warn("brand link failed",
				zap.String("product_id", p.product.ID.String()),
				zap.String("brand_id", p.cmd.BrandID.String()),
				zap.Error(err),
			)
		}
	}
}

// reconcileInventory resolves each created variant's inventory item and
// brings its level to the target quantity. New levels are created in
// one call, de-duplicated by (location, item) within the batch.
// Per-product work runs concurrently, bounded by the worker pool.
func (s *ImportService) reconcileInventory(ctx context.Context, batch []*pendingProduct) {
	var mu sync.Mutex
	toCreate := make(map[string]catalog.InventoryLevel)

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for _, p := range batch {
		if p.product == nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p *pendingProduct) {
			defer wg.Done()
			defer func() { <-sem }()

			linked := true
			for i := range p.product.Variants {
				variant := &p.product.Variants[i]

				itemID, err := s.awaitInventoryItem(ctx, variant)
				if err != nil {
					linked = false
					s.logger.Warn("inventory item never became resolvable",
						zap.String("variant_id", variant.ID.String()),
						zap.String("sku", variant.SKU),
						zap.Error(err),
					)
					continue
				}

				level, err := s.inventory.Level(ctx, p.cmd.Stock.LocationID, itemID)
				switch {
				case err == nil && level != nil:
					if err := s.inventory.UpdateLevel(ctx, p.cmd.Stock.LocationID, itemID, p.cmd.Stock.Quantity); err != nil {
						linked = false
						s.logger.Warn("inventory level update failed",
							zap.String("item_id", itemID.String()),
							zap.Error(err),
						)
					}
				case errors.Is(err, shared.ErrNotFound) || level == nil:
					mu.Lock()
					key := p.cmd.Stock.LocationID.String() + "|" + itemID.String()
					if _, dup := toCreate[key]; !dup {
						toCreate[key] = catalog.InventoryLevel{
							LocationID:      p.cmd.Stock.LocationID,
							InventoryItemID: itemID,
							Stocked:         p.cmd.Stock.Quantity,
						}
					}
					mu.Unlock()
				default:
					linked = false
					s.logger.Warn("inventory level lookup failed",
						zap.String("item_id", itemID.String()),
						zap.Error(err),
					)
				}
			}
			if linked {
				p.state = stateInventoryLinked
			}
		}(p)
	}
	wg.Wait()

	if len(toCreate) > 0 {
		levels := make([]catalog.InventoryLevel, 0, len(toCreate))
		for _, level := range toCreate {
			levels = append(levels, level)
		}
		if err := s.inventory.CreateLevels(ctx, levels); err != nil {
			s.logger.Warn("inventory level creation failed",
				zap.Int("count", len(levels)),
				zap.Error(err),
			)
		}
	}
}

// awaitInventoryItem resolves the inventory item behind a variant,
// falling back to SKU lookup. The catalog store creates the
// variant-to-item link asynchronously, so the lookup is retried with a
// bounded delay until the link settles.
func (s *ImportService) awaitInventoryItem(ctx context.Context, variant *catalog.Variant) (uuid.UUID, error) {
	if variant.InventoryItemID != nil {
		return *variant.InventoryItemID, nil
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.LinkRetries; attempt++ {
		if attempt > 0 {
			s.sleep(ctx, s.cfg.LinkRetryDelay)
			if ctx.Err() != nil {
				return uuid.Nil, ctx.Err()
			}
		}

		itemID, err := s.inventory.ItemIDForVariant(ctx, variant.ID)
		if err == nil {
			return itemID, nil
		}
		lastErr = err

		if variant.SKU != "" {
			itemID, err = s.inventory.ItemIDForSKU(ctx, variant.SKU)
			if err == nil {
				return itemID, nil
			}
			lastErr = err
		}
	}
	return uuid.Nil, lastErr
}

// reconcilePrices updates each variant's prices after inventory has
// settled, batched per product, then re-queries and verifies every
// currency. A batched update failure falls back to per-variant updates
// to isolate the failing variant rather than failing the whole product.
func (s *ImportService) reconcilePrices(ctx context.Context, batch []*pendingProduct, warnings *[]string) {
	var mu sync.Mutex
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for _, p := range batch {
		if p.product == nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p *pendingProduct) {
			defer wg.Done()
			defer func() { <-sem }()

			updates := make([]catalog.VariantPriceUpdate, 0, len(p.product.Variants))
			for i := range p.product.Variants {
				if i < len(p.cmd.Variants) && len(p.cmd.Variants[i].Prices) > 0 {
					updates = append(updates, catalog.VariantPriceUpdate{
						VariantID: p.product.Variants[i].ID,
						Prices:    p.cmd.Variants[i].Prices,
					})
				}
			}
			if len(updates) == 0 {
				if p.state == stateInventoryLinked {
					p.state = statePriceVerified
				}
				return
			}

			if err := s.products.UpdateVariantPrices(ctx, p.product.ID, updates); err != nil {
				s.logger.Warn("batched price update failed, retrying per variant",
					zap.String("product_id", p.product.ID.String()),
					zap.Error(err),
				)
				for _, update := range updates {
					if err := s.products.UpdateVariantPrices(ctx, p.product.ID, []catalog.VariantPriceUpdate{update}); err != nil {
						s.logger.Warn("variant price update failed",
							zap.String("variant_id", update.VariantID.String()),
							zap.Error(err),
						)
					}
				}
			}

			verified := true
			for _, update := range updates {
				stored, err := s.products.VariantPrices(ctx, update.VariantID)
				if err != nil {
					verified = false
					continue
				}
				for _, want := range update.Prices {
					if !hasPrice(stored, want) {
						verified = false
						mu.Lock()
						*warnings = append(*warnings, fmt.Sprintf(
							"row %d: stored %s price does not match submitted amount %s",
							p.cmd.SourceRow, want.CurrencyCode, want.Amount.StringFixed(2)))
						mu.Unlock()
					}
				}
			}
			if verified && p.state == stateInventoryLinked {
				p.state = statePriceVerified
			}
		}(p)
	}
	wg.Wait()
}

func hasPrice(stored []catalog.PriceQuote, want catalog.PriceQuote) bool {
	for _, got := range stored {
		if got.CurrencyCode == want.CurrencyCode && got.Amount.Equal(want.Amount) {
			return true
		}
	}
	return false
}

// partition splits items into fixed-size batches
func partition(items []*pendingProduct, size int) [][]*pendingProduct {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]*pendingProduct
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
