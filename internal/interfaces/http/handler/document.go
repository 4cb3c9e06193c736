package handler

import (
	"context"
	"strconv"

	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/gin-gonic/gin"
)

// DocumentService is the application surface used by DocumentHandler
type DocumentService interface {
	Create(ctx context.Context, scope document.Scope, kindName string, req conversion.CreateDocumentRequest) (*conversion.DocumentResponse, error)
	Get(ctx context.Context, scope document.Scope, kindName string, number int64) (*conversion.DocumentResponse, error)
	Convert(ctx context.Context, scope document.Scope, req conversion.ConvertRequest) (*conversion.DocumentResponse, error)
}

// DocumentHandler handles document creation, lookup and conversion
type DocumentHandler struct {
	BaseHandler
	service DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// RegisterRoutes mounts the document endpoints under rg
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	docs.POST("/:kind", h.Create)
	docs.GET("/:kind/:number", h.Get)
	docs.POST("/:kind/:number/convert", h.Convert)
}

// Create creates a draft document of the path kind with a freshly allocated number.
// POST /documents/:kind
func (h *DocumentHandler) Create(c *gin.Context) {
	scope, ok := h.scopeOf(c)
	if !ok {
		return
	}

	var req conversion.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	doc, err := h.service.Create(c.Request.Context(), scope, c.Param("kind"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, doc)
}

// Get returns a document with its items.
// GET /documents/:kind/:number
func (h *DocumentHandler) Get(c *gin.Context) {
	scope, ok := h.scopeOf(c)
	if !ok {
		return
	}

	number, ok := h.numberParam(c)
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), scope, c.Param("kind"), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// Convert converts the path document into the requested target kind.
// POST /documents/:kind/:number/convert
func (h *DocumentHandler) Convert(c *gin.Context) {
	scope, ok := h.scopeOf(c)
	if !ok {
		return
	}

	number, ok := h.numberParam(c)
	if !ok {
		return
	}

	var req conversion.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	req.SourceKind = c.Param("kind")
	req.SourceNumber = number

	doc, err := h.service.Convert(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, doc)
}

func (h *DocumentHandler) numberParam(c *gin.Context) (int64, bool) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || number <= 0 {
		h.BadRequest(c, "Document number must be a positive integer")
		return 0, false
	}
	return number, true
}
