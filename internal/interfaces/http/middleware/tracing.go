// Package middleware provides HTTP middleware for the document engine.
package middleware

import (
	"net/http"

	"github.com/erp/docengine/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing returns otelgin middleware for serviceName. Span names follow
// "METHOD route_pattern".
func Tracing(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, opts...)
}

// SpanEnricher adds request attributes to the active span and marks 4xx/5xx
// responses as errors. Register it after Tracing and before Scope.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if requestID := c.GetString(logger.GinKeyRequestID); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if scope, ok := GetScope(c); ok {
			span.SetAttributes(
				attribute.Int64("company_id", scope.CompanyID),
				attribute.Int64("branch_id", scope.BranchID),
			)
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}
		message := "Client Error"
		switch {
		case statusCode >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case statusCode == http.StatusNotFound:
			message = "Not Found"
		case statusCode == http.StatusConflict:
			message = "Conflict"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
