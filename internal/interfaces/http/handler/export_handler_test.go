package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/application/bulk"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExportProducts(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := seedStore()
	store.products = []catalog.Product{{
		ID:     uuid.New(),
		Title:  "Aviator",
		Status: catalog.StatusPublished,
		Variants: []catalog.Variant{{
			ID:     uuid.New(),
			SKU:    "AV-1",
			Prices: []catalog.PriceQuote{{CurrencyCode: "USD", Amount: decimal.NewFromInt(150)}},
		}},
	}}

	exporter := bulk.NewExporter(
		store, memBrands{store}, memCategories{store}, store,
		uuid.New(), "USD", zap.NewNop(),
	)

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewExportHandler(exporter, zap.NewNop()).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export/products", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,product_id,type,sku,name"))
	assert.Contains(t, lines[1], "Aviator")
	assert.Contains(t, lines[1], "AV-1")
	assert.Contains(t, lines[1], "150.00")
}
