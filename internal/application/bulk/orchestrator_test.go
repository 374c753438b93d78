package bulk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/csvio"
	"github.com/storefront/backend/internal/infrastructure/fx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type importFixture struct {
	service   *ImportService
	products  *fakeProductRepo
	brands    *fakeBrandRepo
	inventory *fakeInventoryRepo

	mu     sync.Mutex
	sleeps []time.Duration
}

func newImportFixture(t *testing.T, cfg Config) *importFixture {
	t.Helper()

	catID := uuid.New()
	brandID := uuid.New()
	categories := &fakeCategoryRepo{categories: []catalog.Category{{ID: catID, Name: "Sunglasses"}}}
	brands := &fakeBrandRepo{brands: []catalog.Brand{{ID: brandID, Name: "Rayban"}}}
	products := &fakeProductRepo{}
	inventory := newFakeInventoryRepo()

	// Created variants get inventory items immediately unless a test
	// installs its own onCreated hook.
	products.onCreated = func(created []catalog.Product) {
		inventory.mu.Lock()
		defer inventory.mu.Unlock()
		for _, p := range created {
			for _, v := range p.Variants {
				inventory.itemsByVariant[v.ID] = uuid.New()
			}
		}
	}

	if cfg.StockLocationID == uuid.Nil {
		cfg.StockLocationID = uuid.New()
	}
	if len(cfg.Currencies) == 0 {
		cfg.Currencies = []string{"USD", "EUR"}
	}
	if cfg.LinkRetryDelay == 0 {
		cfg.LinkRetryDelay = 100 * time.Millisecond
	}

	fixture := &importFixture{products: products, brands: brands, inventory: inventory}

	provider := fx.NewProvider(fx.NewMemoryCache(), "", 0, 0, zap.NewNop())
	fixture.service = NewImportService(
		products, brands, categories, inventory,
		provider, identityRehoster{}, cfg, zap.NewNop(),
		WithClock(
			func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
			func(_ context.Context, d time.Duration) {
				fixture.mu.Lock()
				fixture.sleeps = append(fixture.sleeps, d)
				fixture.mu.Unlock()
			},
		),
	)
	return fixture
}

var importHeaders = []string{"name", "sku", "sales_price", "stock", "categories", "brand"}

func importRow(line int, fields ...string) *csvio.Row {
	padded := make([]string, len(importHeaders))
	copy(padded, fields)
	return &csvio.Row{Line: line, Fields: padded}
}

var testRates = map[string]float64{"EUR": 0.5}

func TestImportAll(t *testing.T) {
	t.Run("partial failure creates good rows and records bad ones", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		rows := []*csvio.Row{
			importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "Rayban"),
			importRow(3, "Wayfarer", "WF-1", "not-a-price", "5", "Sunglasses", ""),
			importRow(4, "", "BLANK-1", "10", "1", "", ""),
			importRow(5, "Clubmaster", "CM-1", "120", "3", "Sunglasses", "Rayban"),
		}

		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		assert.Equal(t, 4, result.TotalRows)
		assert.Equal(t, 2, result.CreatedCount)
		assert.Equal(t, 1, result.SkippedRows)
		require.Len(t, result.RowErrors, 1)
		assert.Equal(t, 3, result.RowErrors[0].Row)
		assert.Equal(t, "Wayfarer", result.RowErrors[0].ProductName)
		assert.Equal(t, ErrCodeRowFailed, result.RowErrors[0].Code)
		assert.False(t, result.IsTruncated)
	})

	t.Run("missing name column is fatal", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		_, err := f.service.ImportAll(context.Background(), []string{"sku", "sales_price"}, nil, testRates)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ErrCodeMissingColumn, domainErr.Code)
	})

	t.Run("unresolvable references reject the whole file with the full list", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		rows := []*csvio.Row{
			importRow(2, "A", "A-1", "10", "1", "Goggles, Sunglasses", "Oakley"),
			importRow(3, "B", "B-1", "10", "1", "Visors", "Persol"),
			importRow(4, "C", "C-1", "10", "1", "Monocles", "Rayban"),
		}

		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, []string{"Goggles", "Visors", "Monocles"}, validationErr.Missing.Categories)
		assert.Equal(t, []string{"Oakley", "Persol"}, validationErr.Missing.Brands)

		// Nothing was created
		assert.Equal(t, 0, f.products.batchCount())
	})

	t.Run("splits work into fixed-size batches", func(t *testing.T) {
		f := newImportFixture(t, Config{BatchSize: 2})

		rows := make([]*csvio.Row, 0, 5)
		for i := 0; i < 5; i++ {
			rows = append(rows, importRow(i+2, "Product", "", "10", "1", "Sunglasses", ""))
		}

		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)
		assert.Equal(t, 5, result.CreatedCount)
		assert.Equal(t, 3, f.products.batchCount())
	})

	t.Run("creation is submitted without prices, then prices reconciled", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "Rayban")}
		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)
		assert.Equal(t, 1, result.CreatedCount)

		require.Equal(t, 1, f.products.batchCount())
		for _, v := range f.products.batches[0][0].Variants {
			assert.Empty(t, v.Prices, "creation must carry no prices")
		}

		variantID := f.products.created[0].Variants[0].ID
		stored, err := f.products.VariantPrices(context.Background(), variantID)
		require.NoError(t, err)
		byCode := map[string]decimal.Decimal{}
		for _, q := range stored {
			byCode[q.CurrencyCode] = q.Amount
		}
		assert.True(t, byCode["USD"].Equal(decimal.NewFromInt(100)))
		assert.True(t, byCode["EUR"].Equal(decimal.NewFromInt(50)))
	})

	t.Run("links brands on created products", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "Rayban")}
		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		productID := f.products.created[0].ID
		assert.Equal(t, f.brands.brands[0].ID, f.brands.links[productID])
	})

	t.Run("brand link failure does not fail the row", func(t *testing.T) {
		f := newImportFixture(t, Config{})
		f.brands.linkErr = errors.New("link service down")

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "Rayban")}
		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)
		assert.Equal(t, 1, result.CreatedCount)
		assert.Empty(t, result.RowErrors)
	})

	t.Run("batch creation failure records every row in the batch", func(t *testing.T) {
		f := newImportFixture(t, Config{})
		f.products.createErr = errors.New("store unavailable")

		rows := []*csvio.Row{
			importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", ""),
			importRow(3, "Wayfarer", "WF-1", "90", "2", "Sunglasses", ""),
		}

		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)
		assert.Equal(t, 0, result.CreatedCount)
		require.Len(t, result.RowErrors, 2)
		assert.Equal(t, ErrCodeCreateFailed, result.RowErrors[0].Code)
	})
}

func TestImportAllInventory(t *testing.T) {
	t.Run("creates levels for new items", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "")}
		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		require.Len(t, f.inventory.createdLevels, 1)
		assert.Equal(t, 5, f.inventory.createdLevels[0].Stocked)
	})

	t.Run("retries until the async variant link settles", func(t *testing.T) {
		f := newImportFixture(t, Config{LinkRetries: 3, LinkRetryDelay: 250 * time.Millisecond})

		// Two failed lookups before the link appears
		f.products.onCreated = func(created []catalog.Product) {
			f.inventory.mu.Lock()
			defer f.inventory.mu.Unlock()
			for _, p := range created {
				for _, v := range p.Variants {
					f.inventory.itemsByVariant[v.ID] = uuid.New()
					f.inventory.linkDelay[v.ID] = 2
				}
			}
		}

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "")}
		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		require.Len(t, f.inventory.createdLevels, 1)
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, f.sleeps)
	})

	t.Run("falls back to SKU lookup when the variant link never appears", func(t *testing.T) {
		f := newImportFixture(t, Config{LinkRetries: 1})

		itemID := uuid.New()
		f.products.onCreated = func(created []catalog.Product) {
			f.inventory.mu.Lock()
			defer f.inventory.mu.Unlock()
			f.inventory.itemsBySKU["av-1"] = itemID
		}

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "")}
		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		require.Len(t, f.inventory.createdLevels, 1)
		assert.Equal(t, itemID, f.inventory.createdLevels[0].InventoryItemID)
	})

	t.Run("exhausted retries leave the product created", func(t *testing.T) {
		f := newImportFixture(t, Config{LinkRetries: 1})
		f.products.onCreated = nil // no inventory item ever appears

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "")}
		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)
		assert.Equal(t, 1, result.CreatedCount)
		assert.Empty(t, f.inventory.createdLevels)
	})

	t.Run("duplicate items collapse to one created level per batch", func(t *testing.T) {
		f := newImportFixture(t, Config{})

		sharedItem := uuid.New()
		f.products.onCreated = func(created []catalog.Product) {
			f.inventory.mu.Lock()
			defer f.inventory.mu.Unlock()
			for _, p := range created {
				for _, v := range p.Variants {
					f.inventory.itemsByVariant[v.ID] = sharedItem
				}
			}
		}

		rows := []*csvio.Row{
			importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", ""),
			importRow(3, "Aviator Polarized", "AV-1", "110", "5", "Sunglasses", ""),
		}
		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		assert.Equal(t, 1, f.inventory.createCalls)
		assert.Len(t, f.inventory.createdLevels, 1)
	})

	t.Run("existing level is updated, not recreated", func(t *testing.T) {
		f := newImportFixture(t, Config{StockLocationID: uuid.New()})

		itemID := uuid.New()
		f.products.onCreated = func(created []catalog.Product) {
			f.inventory.mu.Lock()
			defer f.inventory.mu.Unlock()
			for _, p := range created {
				for _, v := range p.Variants {
					f.inventory.itemsByVariant[v.ID] = itemID
				}
			}
		}
		locationID := f.service.cfg.StockLocationID
		f.inventory.levels[levelKey(locationID, itemID)] = &catalog.InventoryLevel{
			LocationID:      locationID,
			InventoryItemID: itemID,
			Stocked:         1,
		}

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "9", "Sunglasses", "")}
		_, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		assert.Equal(t, 1, f.inventory.updateCalls)
		assert.Equal(t, 0, f.inventory.createCalls)
		assert.Equal(t, 9, f.inventory.levels[levelKey(locationID, itemID)].Stocked)
	})
}

func TestImportAllPriceReconciliation(t *testing.T) {
	t.Run("batched failure falls back to per-variant updates", func(t *testing.T) {
		f := newImportFixture(t, Config{Currencies: []string{"USD", "EUR"}})
		f.products.batchedPriceErr = errors.New("too many updates")

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "")}
		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)

		variantID := f.products.created[0].Variants[0].ID
		stored, err := f.products.VariantPrices(context.Background(), variantID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("verification mismatch surfaces a warning", func(t *testing.T) {
		f := newImportFixture(t, Config{Currencies: []string{"USD"}})

		var variantID uuid.UUID
		base := f.products.onCreated
		f.products.onCreated = func(created []catalog.Product) {
			base(created)
			variantID = created[0].Variants[0].ID
			f.products.mu.Lock()
			f.products.priceErrFor = map[uuid.UUID]error{variantID: errors.New("price rejected")}
			f.products.mu.Unlock()
		}

		rows := []*csvio.Row{importRow(2, "Aviator", "AV-1", "100", "5", "Sunglasses", "")}
		result, err := f.service.ImportAll(context.Background(), importHeaders, rows, testRates)
		require.NoError(t, err)

		assert.Equal(t, 1, result.CreatedCount)
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "row 2")
	})
}

func TestErrorCollectionTruncation(t *testing.T) {
	ec := NewErrorCollection(2)
	for i := 0; i < 5; i++ {
		ec.Add(NewRowError(i+2, "p", ErrCodeRowFailed, "boom"))
	}
	assert.Len(t, ec.Errors(), 2)
	assert.Equal(t, 5, ec.TotalCount())
	assert.True(t, ec.IsTruncated())
}
