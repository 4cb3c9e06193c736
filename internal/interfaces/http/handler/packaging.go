package handler

import (
	"context"

	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/gin-gonic/gin"
)

// QuantityPreviewer computes packaging quotes
type QuantityPreviewer interface {
	Preview(ctx context.Context, scope document.Scope, req conversion.QuantityPreviewRequest) (*conversion.QuantityPreviewResponse, error)
}

// PackagingHandler exposes the packaging calculator
type PackagingHandler struct {
	BaseHandler
	previewer QuantityPreviewer
}

// NewPackagingHandler creates a new PackagingHandler
func NewPackagingHandler(previewer QuantityPreviewer) *PackagingHandler {
	return &PackagingHandler{previewer: previewer}
}

// RegisterRoutes mounts the packaging endpoints under rg
func (h *PackagingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/packaging/quote", h.Quote)
}

// Quote returns packages, pieces and price for a requested area.
// POST /packaging/quote
func (h *PackagingHandler) Quote(c *gin.Context) {
	scope, ok := h.scopeOf(c)
	if !ok {
		return
	}

	var req conversion.QuantityPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	quote, err := h.previewer.Preview(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, quote)
}
