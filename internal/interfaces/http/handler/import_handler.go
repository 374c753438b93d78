package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/bulk"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/csvio"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// validatePreviewRows caps how many rows the dry-run echoes back
const validatePreviewRows = 5

// ImportHandler handles bulk catalog import requests
type ImportHandler struct {
	BaseHandler
	service *bulk.ImportService
	logger  *zap.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(service *bulk.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{service: service, logger: logger}
}

// RegisterRoutes registers import routes
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	imports := rg.Group("/import")
	{
		imports.POST("/products", h.ImportProducts)
		imports.POST("/products/validate", h.ValidateProducts)
	}
}

// ImportProducts runs the full import pipeline over an uploaded CSV.
// The response is always a structured summary: full success, partial
// success with per-row errors, or a 400 validation rejection carrying
// the exhaustive missing-reference lists.
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	csvText, rateOverride, ok := h.readRequest(c)
	if !ok {
		return
	}

	headers, rows, err := csvio.Parse(strings.NewReader(csvText))
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ImportAll(c.Request.Context(), headers, rows, rateOverride)
	if err != nil {
		h.importError(c, err)
		return
	}

	h.Success(c, dto.NewImportSummaryResponse(result))
}

// ValidateProducts runs the pre-flight checks only, without creating
// anything. Useful for checking a spreadsheet before a long import.
func (h *ImportHandler) ValidateProducts(c *gin.Context) {
	csvText, _, ok := h.readRequest(c)
	if !ok {
		return
	}

	headers, rows, err := csvio.Parse(strings.NewReader(csvText))
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	missing, err := h.service.Validate(c.Request.Context(), headers, rows)
	if err != nil {
		h.importError(c, err)
		return
	}

	response := dto.ValidateResponse{
		Valid:     missing.IsEmpty(),
		TotalRows: len(rows),
		Preview:   bulk.Preview(headers, rows, validatePreviewRows),
	}
	if !missing.IsEmpty() {
		refs := dto.NewMissingReferencesResponse(missing)
		response.MissingReferences = &refs
	}
	h.Success(c, response)
}

// readRequest extracts the CSV text from a multipart upload, a JSON
// body, or a raw text body, in that order of preference.
func (h *ImportHandler) readRequest(c *gin.Context) (string, map[string]float64, bool) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			h.BadRequest(c, "failed to open uploaded file")
			return "", nil, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			h.BadRequest(c, "failed to read uploaded file")
			return "", nil, false
		}
		return string(data), nil, true
	}

	if strings.Contains(c.ContentType(), "application/json") {
		var req dto.ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "request must carry a non-empty csv field")
			return "", nil, false
		}
		return req.CSV, req.RateOverride, true
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		h.BadRequest(c, "request body must contain CSV data")
		return "", nil, false
	}
	return string(data), nil, true
}

// importError maps pipeline errors to HTTP responses
func (h *ImportHandler) importError(c *gin.Context, err error) {
	var validationErr *bulk.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithDetails(
			bulk.ErrCodeReferenceNotFound,
			validationErr.Error(),
			dto.NewMissingReferencesResponse(validationErr.Missing),
		))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, http.StatusBadRequest, domainErr.Code, domainErr.Message)
		return
	}

	h.logger.Error("import failed", zap.Error(err))
	h.InternalError(c, "import failed")
}
