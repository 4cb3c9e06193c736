package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/logger"
	"github.com/erp/docengine/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Scope headers identify the company/branch partition of a request
const (
	CompanyHeaderKey = "X-Company-ID"
	BranchHeaderKey  = "X-Branch-ID"
	ScopeKey         = "document_scope"
)

// ScopeConfig holds configuration for the scope middleware
type ScopeConfig struct {
	// SkipPaths are paths that don't require a scope (e.g., health check)
	SkipPaths []string
}

// DefaultScopeConfig returns default scope middleware configuration
func DefaultScopeConfig() ScopeConfig {
	return ScopeConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready", "/api/v1/health", "/api/v1/system"},
	}
}

// Scope extracts the company/branch scope from request headers
func Scope() gin.HandlerFunc {
	return ScopeWithConfig(DefaultScopeConfig())
}

// ScopeWithConfig returns scope middleware with custom configuration.
// Requests without a valid positive X-Company-ID and X-Branch-ID pair are
// rejected with 400 before reaching any handler.
func ScopeWithConfig(cfg ScopeConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		companyID, err := parseScopeHeader(c.GetHeader(CompanyHeaderKey))
		if err != nil {
			respondInvalidScope(c, CompanyHeaderKey+" header must be a positive integer")
			return
		}
		branchID, err := parseScopeHeader(c.GetHeader(BranchHeaderKey))
		if err != nil {
			respondInvalidScope(c, BranchHeaderKey+" header must be a positive integer")
			return
		}
		scope, err := document.NewScope(companyID, branchID)
		if err != nil {
			respondInvalidScope(c, err.Error())
			return
		}

		c.Set(ScopeKey, scope)
		c.Set(logger.GinKeyCompanyID, companyID)
		c.Set(logger.GinKeyBranchID, branchID)

		ctx := c.Request.Context()
		ctx, _ = logger.WithScope(ctx, logger.FromContext(ctx), companyID, branchID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func parseScopeHeader(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

func respondInvalidScope(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidScope, message, c.GetString(logger.GinKeyRequestID)))
}

// GetScope retrieves the document scope from gin.Context
func GetScope(c *gin.Context) (document.Scope, bool) {
	if v, exists := c.Get(ScopeKey); exists {
		if scope, ok := v.(document.Scope); ok {
			return scope, true
		}
	}
	return document.Scope{}, false
}
