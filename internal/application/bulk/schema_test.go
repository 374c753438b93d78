package bulk

import (
	"testing"

	"github.com/storefront/backend/internal/infrastructure/csvio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFieldMap(t *testing.T) {
	t.Run("maps aliases to canonical fields", func(t *testing.T) {
		fm := BuildFieldMap([]string{"Name", "SKU", "sale_price", "quantity", "Category"})

		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", "AV-1", "19.99", "5", "Sunglasses"}}
		assert.Equal(t, "Aviator", fm.Value(row, FieldTitle))
		assert.Equal(t, "AV-1", fm.Value(row, FieldSKU))
		assert.Equal(t, "19.99", fm.Value(row, FieldSalesPrice))
		assert.Equal(t, "5", fm.Value(row, FieldStock))
		assert.Equal(t, "Sunglasses", fm.Value(row, FieldCategories))
	})

	t.Run("ignores bookkeeping columns", func(t *testing.T) {
		fm := BuildFieldMap([]string{"id", "product_id", "type", "name"})

		assert.True(t, fm.Has(FieldTitle))
		assert.Empty(t, fm.MetaColumns())
	})

	t.Run("routes unknown columns to metadata", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name", "rim_style", "frame_material"})

		assert.Len(t, fm.MetaColumns(), 2)
		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", "full-rim", "acetate"}}
		bag := fm.Metadata(row)
		assert.Equal(t, "full-rim", bag["rim_style"])
		assert.Equal(t, "acetate", bag["frame_material"])
	})

	t.Run("absent field reads as empty", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name"})

		row := &csvio.Row{Line: 2, Fields: []string{"Aviator"}}
		assert.False(t, fm.Has(FieldBrand))
		assert.Equal(t, "", fm.Value(row, FieldBrand))
	})
}

func TestMetadataParsing(t *testing.T) {
	t.Run("skips empty cells", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name", "model", "condition"})
		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", "", "new"}}

		bag := fm.Metadata(row)
		assert.NotContains(t, bag, "model")
		assert.Equal(t, "new", bag["condition"])
	})

	t.Run("parses list fields from JSON", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name", "keyphrase_synonyms"})
		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", `["pilot glasses","aviators"]`}}

		bag := fm.Metadata(row)
		assert.Equal(t, []any{"pilot glasses", "aviators"}, bag["keyphrase_synonyms"])
	})

	t.Run("falls back to comma-split for list fields", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name", "related_keyphrases"})
		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", "pilot glasses, aviators"}}

		bag := fm.Metadata(row)
		assert.Equal(t, []string{"pilot glasses", "aviators"}, bag["related_keyphrases"])
	})

	t.Run("parses product_schema as JSON object", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name", "product_schema"})
		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", `{"@type":"Product"}`}}

		bag := fm.Metadata(row)
		assert.Equal(t, map[string]any{"@type": "Product"}, bag["product_schema"])
	})

	t.Run("keeps malformed product_schema as string", func(t *testing.T) {
		fm := BuildFieldMap([]string{"name", "product_schema"})
		row := &csvio.Row{Line: 2, Fields: []string{"Aviator", "not json"}}

		bag := fm.Metadata(row)
		assert.Equal(t, "not json", bag["product_schema"])
	})
}

func TestPreview(t *testing.T) {
	headers := []string{"name", "sku", "brand", "categories"}
	rows := []*csvio.Row{
		{Line: 2, Fields: []string{"Aviator", "AV-1", "Rayban", "Sunglasses, Accessories"}},
		{Line: 3, Fields: []string{"Wayfarer", "WF-1", "Rayban", "Sunglasses"}},
		{Line: 4, Fields: []string{"Clubmaster", "CM-1", "Rayban", "Sunglasses"}},
	}

	t.Run("projects the mapped fields", func(t *testing.T) {
		previews := Preview(headers, rows, 5)
		require.Len(t, previews, 3)
		assert.Equal(t, 2, previews[0].Line)
		assert.Equal(t, "Aviator", previews[0].Title)
		assert.Equal(t, "AV-1", previews[0].SKU)
		assert.Equal(t, "Rayban", previews[0].Brand)
		assert.Equal(t, []string{"Sunglasses", "Accessories"}, previews[0].Categories)
	})

	t.Run("caps the number of rows", func(t *testing.T) {
		previews := Preview(headers, rows, 2)
		require.Len(t, previews, 2)
		assert.Equal(t, "Wayfarer", previews[1].Title)
	})
}
