package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/bulk"
	"go.uber.org/zap"
)

// ExportHandler handles catalog export requests
type ExportHandler struct {
	BaseHandler
	exporter *bulk.Exporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exporter *bulk.Exporter, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exporter: exporter, logger: logger, now: time.Now}
}

// RegisterRoutes registers export routes
func (h *ExportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export/products", h.ExportProducts)
}

// ExportProducts streams the whole catalog as a CSV attachment in the
// same column schema the import endpoint accepts.
func (h *ExportHandler) ExportProducts(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), &buf); err != nil {
		h.logger.Error("export failed", zap.Error(err))
		h.InternalError(c, "export failed")
		return
	}

	filename := fmt.Sprintf("products-%s.csv", h.now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
