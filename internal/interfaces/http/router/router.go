// Package router assembles the gin engine: the global middleware chain, the
// scoped API group and the handlers registered on it.
package router

import (
	"github.com/erp/docengine/internal/infrastructure/logger"
	"github.com/erp/docengine/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config controls the middleware chain installed by Setup
type Config struct {
	ServiceName      string
	APIVersion       string
	MaxBodySize      int64
	TrustedProxies   []string
	CORSAllowOrigins []string
	// TracingEnabled installs otelgin and span enrichment
	TracingEnabled bool
	// Meter records HTTP metrics when non-nil
	Meter metric.Meter
}

// Router manages middleware and route registration
type Router struct {
	engine *gin.Engine
	cfg    Config
	logger *zap.Logger
	// scoped handlers require X-Company-ID/X-Branch-ID
	scoped   []RouteRegistrar
	unscoped []RouteRegistrar
	health   gin.HandlerFunc
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithHealthHandler serves h on /health outside the API group
func WithHealthHandler(h gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.health = h
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, cfg Config, log *zap.Logger, opts ...RouterOption) *Router {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "docengine"
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		engine: engine,
		cfg:    cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds registrars whose routes require a document scope
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.scoped = append(r.scoped, registrars...)
	return r
}

// RegisterUnscoped adds registrars whose routes need no scope
func (r *Router) RegisterUnscoped(registrars ...RouteRegistrar) *Router {
	r.unscoped = append(r.unscoped, registrars...)
	return r
}

// Setup installs the middleware chain and registers all routes.
// Order: recovery, request logging, tracing, metrics, security headers,
// CORS, body limit; the scoped group adds span enrichment and scope extraction.
func (r *Router) Setup() error {
	if err := r.engine.SetTrustedProxies(r.cfg.TrustedProxies); err != nil {
		return err
	}

	r.engine.Use(logger.Recovery(r.logger), logger.GinMiddleware(r.logger))
	if r.cfg.TracingEnabled {
		r.engine.Use(middleware.Tracing(r.cfg.ServiceName))
	}
	if r.cfg.Meter != nil {
		metricsMiddleware, err := middleware.HTTPMetrics(r.cfg.Meter)
		if err != nil {
			return err
		}
		r.engine.Use(metricsMiddleware)
	}
	r.engine.Use(
		middleware.Secure(),
		middleware.CORS(r.cfg.CORSAllowOrigins),
		middleware.BodyLimit(r.cfg.MaxBodySize),
	)

	if r.health != nil {
		r.engine.GET("/health", r.health)
	}

	api := r.engine.Group("/api/" + r.cfg.APIVersion)
	for _, registrar := range r.unscoped {
		registrar.RegisterRoutes(api)
	}

	scoped := api.Group("")
	if r.cfg.TracingEnabled {
		// registered first so rejected scopes still mark the span
		scoped.Use(middleware.SpanEnricher())
	}
	scoped.Use(middleware.ScopeWithConfig(middleware.ScopeConfig{}))
	for _, registrar := range r.scoped {
		registrar.RegisterRoutes(scoped)
	}
	return nil
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
