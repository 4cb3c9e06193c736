package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gin context keys shared with the HTTP layer.
const (
	GinKeyRequestID = "request_id"
	GinKeyLogger    = "logger"
	GinKeyCompanyID = "company_id"
	GinKeyBranchID  = "branch_id"

	HeaderRequestID = "X-Request-ID"
)

// GinMiddleware logs every request. The request-scoped logger is stored on the
// gin context; the request context carries the request id and a logger with
// method and path, so L(ctx) in services adds request_id and trace ids.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		reqLogger := base.With(
			zap.String(GinKeyRequestID, requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Set(GinKeyLogger, reqLogger)

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		ctx = WithContext(ctx, base.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if companyID, ok := c.Get(GinKeyCompanyID); ok {
			fields = append(fields, zap.Any(GinKeyCompanyID, companyID))
		}
		if branchID, ok := c.Get(GinKeyBranchID); ok {
			fields = append(fields, zap.Any(GinKeyBranchID, branchID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		const msg = "HTTP Request"
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error(msg, fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// requestIDFor reuses an id set earlier in the chain or by the client, and
// generates one otherwise. The id is echoed on the response.
func requestIDFor(c *gin.Context) string {
	var id string
	if v, ok := c.Get(GinKeyRequestID); ok {
		id, _ = v.(string)
	}
	if id == "" {
		id = c.GetHeader(HeaderRequestID)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(GinKeyRequestID, id)
	c.Header(HeaderRequestID, id)
	return id
}

// Recovery turns panics into a 500 and logs them with a stack trace.
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				base.Error("Panic recovered",
					zap.String(GinKeyRequestID, c.GetString(GinKeyRequestID)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", rec),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   gin.H{"code": "ERR_INTERNAL", "message": "Internal server error"},
				})
			}
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a no-op logger when the
// middleware is not installed.
func GetGinLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(GinKeyLogger); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
