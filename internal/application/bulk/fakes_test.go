package bulk

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

type fakeCategoryRepo struct {
	categories []catalog.Category
}

func (f *fakeCategoryRepo) FindAll(_ context.Context) ([]catalog.Category, error) {
	return f.categories, nil
}

type fakeBrandRepo struct {
	mu      sync.Mutex
	brands  []catalog.Brand
	links   map[uuid.UUID]uuid.UUID // productID -> brandID
	linkErr error
}

func (f *fakeBrandRepo) FindAll(_ context.Context) ([]catalog.Brand, error) {
	return f.brands, nil
}

func (f *fakeBrandRepo) LinkProduct(_ context.Context, brandID, productID uuid.UUID) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.links == nil {
		f.links = make(map[uuid.UUID]uuid.UUID)
	}
	f.links[productID] = brandID
	return nil
}

type fakeProductRepo struct {
	mu      sync.Mutex
	batches [][]catalog.CreateProductInput
	created []catalog.Product
	prices  map[uuid.UUID][]catalog.PriceQuote

	createErr       error
	batchedPriceErr error // returned for multi-update calls only
	priceErrFor     map[uuid.UUID]error

	// onCreated lets a test wire created variants into the inventory
	// fake, simulating the store's async item linking.
	onCreated func(products []catalog.Product)

	listProducts []catalog.Product
}

func (f *fakeProductRepo) CreateBatch(_ context.Context, inputs []catalog.CreateProductInput) ([]catalog.Product, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.batches = append(f.batches, inputs)
	products := make([]catalog.Product, len(inputs))
	for i, in := range inputs {
		product := catalog.Product{
			ID:          uuid.New(),
			Title:       in.Title,
			Handle:      in.Handle,
			Status:      in.Status,
			Metadata:    in.Metadata,
			CategoryIDs: in.CategoryIDs,
			BrandID:     in.BrandID,
		}
		for _, v := range in.Variants {
			product.Variants = append(product.Variants, catalog.Variant{
				ID:        uuid.New(),
				ProductID: product.ID,
				Title:     v.Title,
				SKU:       v.SKU,
				Prices:    v.Prices,
			})
		}
		products[i] = product
	}
	f.created = append(f.created, products...)
	f.mu.Unlock()
	if f.onCreated != nil {
		f.onCreated(products)
	}
	return products, nil
}

func (f *fakeProductRepo) UpdateVariantPrices(_ context.Context, _ uuid.UUID, updates []catalog.VariantPriceUpdate) error {
	if f.batchedPriceErr != nil && len(updates) > 1 {
		return f.batchedPriceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = make(map[uuid.UUID][]catalog.PriceQuote)
	}
	for _, u := range updates {
		if err, ok := f.priceErrFor[u.VariantID]; ok {
			return err
		}
		f.prices[u.VariantID] = u.Prices
	}
	return nil
}

func (f *fakeProductRepo) VariantPrices(_ context.Context, variantID uuid.UUID) ([]catalog.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[variantID], nil
}

func (f *fakeProductRepo) List(_ context.Context, page, pageSize int) ([]catalog.Product, int64, error) {
	start := (page - 1) * pageSize
	if start >= len(f.listProducts) {
		return nil, int64(len(f.listProducts)), nil
	}
	end := start + pageSize
	if end > len(f.listProducts) {
		end = len(f.listProducts)
	}
	return f.listProducts[start:end], int64(len(f.listProducts)), nil
}

func (f *fakeProductRepo) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeInventoryRepo struct {
	mu             sync.Mutex
	itemsByVariant map[uuid.UUID]uuid.UUID
	itemsBySKU     map[string]uuid.UUID
	linkDelay      map[uuid.UUID]int // failed lookups before the variant link appears
	levels         map[string]*catalog.InventoryLevel
	createdLevels  []catalog.InventoryLevel
	createCalls    int
	updateCalls    int
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		itemsByVariant: make(map[uuid.UUID]uuid.UUID),
		itemsBySKU:     make(map[string]uuid.UUID),
		linkDelay:      make(map[uuid.UUID]int),
		levels:         make(map[string]*catalog.InventoryLevel),
	}
}

func levelKey(locationID, itemID uuid.UUID) string {
	return locationID.String() + "|" + itemID.String()
}

func (f *fakeInventoryRepo) ItemIDForVariant(_ context.Context, variantID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkDelay[variantID] > 0 {
		f.linkDelay[variantID]--
		return uuid.Nil, shared.ErrNotFound
	}
	if id, ok := f.itemsByVariant[variantID]; ok {
		return id, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (f *fakeInventoryRepo) ItemIDForSKU(_ context.Context, sku string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.itemsBySKU[strings.ToLower(sku)]; ok {
		return id, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (f *fakeInventoryRepo) Level(_ context.Context, locationID, itemID uuid.UUID) (*catalog.InventoryLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if level, ok := f.levels[levelKey(locationID, itemID)]; ok {
		copied := *level
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeInventoryRepo) CreateLevels(_ context.Context, levels []catalog.InventoryLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.createdLevels = append(f.createdLevels, levels...)
	for i := range levels {
		level := levels[i]
		f.levels[levelKey(level.LocationID, level.InventoryItemID)] = &level
	}
	return nil
}

func (f *fakeInventoryRepo) UpdateLevel(_ context.Context, locationID, itemID uuid.UUID, stocked int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if level, ok := f.levels[levelKey(locationID, itemID)]; ok {
		level.Stocked = stocked
	}
	return nil
}

// identityRehoster returns every URL unchanged
type identityRehoster struct{}

func (identityRehoster) Rehost(_ context.Context, url string) string { return url }

// prefixRehoster simulates successful rehosting to a self-hosted URL
type prefixRehoster struct {
	prefix string
}

func (r prefixRehoster) Rehost(_ context.Context, url string) string { return r.prefix + url }
