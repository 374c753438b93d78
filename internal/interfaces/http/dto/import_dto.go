package dto

import "github.com/storefront/backend/internal/application/bulk"

// ImportRequest is the JSON body accepted by the import endpoint when
// the CSV is not uploaded as a multipart file.
type ImportRequest struct {
	CSV string `json:"csv" binding:"required"`

	// RateOverride replaces the live exchange rate lookup when set.
	// USD is always forced to 1.0.
	RateOverride map[string]float64 `json:"rate_override,omitempty"`
}

// ImportSummaryResponse is the structured outcome of an import run.
// Partial success is still HTTP 200; consult the error list.
type ImportSummaryResponse struct {
	TotalRows    int             `json:"total_rows"`
	CreatedCount int             `json:"created_count"`
	SkippedRows  int             `json:"skipped_rows"`
	RowErrors    []bulk.RowError `json:"per_row_errors,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	TotalErrors  int             `json:"total_errors,omitempty"`
	IsTruncated  bool            `json:"is_truncated,omitempty"`
}

// NewImportSummaryResponse maps an import result to its response shape
func NewImportSummaryResponse(result *bulk.ImportResult) ImportSummaryResponse {
	return ImportSummaryResponse{
		TotalRows:    result.TotalRows,
		CreatedCount: result.CreatedCount,
		SkippedRows:  result.SkippedRows,
		RowErrors:    result.RowErrors,
		Warnings:     result.Warnings,
		TotalErrors:  result.TotalErrors,
		IsTruncated:  result.IsTruncated,
	}
}

// MissingReferencesResponse lists every category and brand name the CSV
// references that does not exist in the catalog.
type MissingReferencesResponse struct {
	Categories []string `json:"missing_categories,omitempty"`
	Brands     []string `json:"missing_brands,omitempty"`
}

// NewMissingReferencesResponse maps missing references to the response shape
func NewMissingReferencesResponse(missing *bulk.MissingReferences) MissingReferencesResponse {
	return MissingReferencesResponse{
		Categories: missing.Categories,
		Brands:     missing.Brands,
	}
}

// ValidateResponse is the outcome of a dry-run validation
type ValidateResponse struct {
	Valid             bool                       `json:"valid"`
	TotalRows         int                        `json:"total_rows"`
	MissingReferences *MissingReferencesResponse `json:"missing_references,omitempty"`
	Preview           []bulk.RowPreview          `json:"preview,omitempty"`
}
