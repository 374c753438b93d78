package bulk

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/infrastructure/csvio"
)

// ResolvedReferences holds the category and brand name indexes built
// once per import run and shared read-only across all rows. Lookups
// are case-insensitive.
type ResolvedReferences struct {
	categoryIDs map[string]uuid.UUID
	brandIDs    map[string]uuid.UUID
}

// CategoryID resolves a category name
func (r *ResolvedReferences) CategoryID(name string) (uuid.UUID, bool) {
	id, ok := r.categoryIDs[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// BrandID resolves a brand name
func (r *ResolvedReferences) BrandID(name string) (uuid.UUID, bool) {
	id, ok := r.brandIDs[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// ReferenceResolver resolves human-readable category and brand names to
// catalog identifiers ahead of row processing. Validation is
// exhaustive: every unresolvable name across the whole file is
// collected before the import is rejected, so a 500-row spreadsheet is
// fixed in one pass rather than 500 fix-and-retry cycles.
type ReferenceResolver struct {
	categories catalog.CategoryRepository
	brands     catalog.BrandRepository
}

// NewReferenceResolver creates a ReferenceResolver
func NewReferenceResolver(categories catalog.CategoryRepository, brands catalog.BrandRepository) *ReferenceResolver {
	return &ReferenceResolver{categories: categories, brands: brands}
}

// Resolve scans every row once, resolves the distinct referenced names
// against the catalog, and returns the complete missing list. The error
// return is only for repository failures.
func (r *ReferenceResolver) Resolve(ctx context.Context, rows []*csvio.Row, fm *FieldMap) (*ResolvedReferences, *MissingReferences, error) {
	refs := &ResolvedReferences{
		categoryIDs: make(map[string]uuid.UUID),
		brandIDs:    make(map[string]uuid.UUID),
	}

	categories, err := r.categories.FindAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range categories {
		refs.categoryIDs[strings.ToLower(c.Name)] = c.ID
	}

	brands, err := r.brands.FindAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, b := range brands {
		refs.brandIDs[strings.ToLower(b.Name)] = b.ID
	}

	// Deduplicate case-insensitively, preserving first-seen casing so
	// error messages match the spreadsheet.
	missing := &MissingReferences{}
	seenCategories := make(map[string]bool)
	seenBrands := make(map[string]bool)

	for _, row := range rows {
		for _, name := range SplitList(fm.Value(row, FieldCategories)) {
			key := strings.ToLower(name)
			if seenCategories[key] {
				continue
			}
			seenCategories[key] = true
			if _, ok := refs.categoryIDs[key]; !ok {
				missing.Categories = append(missing.Categories, name)
			}
		}

		if name := strings.TrimSpace(fm.Value(row, FieldBrand)); name != "" {
			key := strings.ToLower(name)
			if seenBrands[key] {
				continue
			}
			seenBrands[key] = true
			if _, ok := refs.brandIDs[key]; !ok {
				missing.Brands = append(missing.Brands, name)
			}
		}
	}

	return refs, missing, nil
}

// SplitList splits a comma-separated cell into trimmed, non-empty parts
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
