package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/cache"
	"github.com/erp/docengine/internal/infrastructure/config"
	"github.com/erp/docengine/internal/infrastructure/lock"
	"github.com/erp/docengine/internal/infrastructure/logger"
	"github.com/erp/docengine/internal/infrastructure/persistence"
	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"github.com/erp/docengine/internal/interfaces/http/handler"
	"github.com/erp/docengine/internal/interfaces/http/middleware"
	"github.com/erp/docengine/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := logger.ConfigForEnvironment(cfg.App.Env, cfg.Log.Level)
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	if cfg.Log.Output != "" {
		logCfg.Output = cfg.Log.Output
	}
	logCfg.Service = cfg.App.Name
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()
	telemetry.ServiceVersion = version

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting document engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("database", cfg.Database.Driver),
		zap.String("sequence_strategy", cfg.Conversion.SequenceStrategy),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.SQLLevel),
		logger.WithSlowThreshold(cfg.Log.SlowQueryThreshold),
		logger.WithExpectedErrors(persistence.IsExpectedError),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Database.Driver == config.DriverSQLite {
		// postgres schemas come from cmd/migrate
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:       cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:    cfg.Telemetry.DBLogFullSQL,
		SlowThreshold: cfg.Log.SlowQueryThreshold,
		DBName:        cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider.Meter("db.client"), telemetry.DBMetricsConfig{
		Enabled:       meterProvider.IsEnabled() && cfg.Telemetry.DBMetricsEnabled,
		SlowThreshold: cfg.Log.SlowQueryThreshold,
	}, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
		log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
	}

	// Repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, cfg.Database.LockTimeout)

	allocatorOpts := []cache.AllocatorFactoryOption{cache.WithLogger(log)}
	if redisClient != nil {
		allocatorOpts = append(allocatorOpts, cache.WithRedis(redisClient, documentRepo))
	}
	allocator, err := cache.NewAllocatorFactory(
		cfg.Conversion.SequenceStrategy,
		persistence.NewGormSequenceAllocator(db.DB),
		allocatorOpts...,
	).Create()
	if err != nil {
		log.Fatal("Failed to create sequence allocator", zap.Error(err))
	}

	// Application services
	opts := conversion.Options{
		MaxSequenceAttempts:    cfg.Conversion.MaxSequenceAttempts,
		TransientRetryBackoff:  cfg.Conversion.TransientRetryBackoff,
		DefaultBreakagePercent: cfg.Conversion.BreakagePercent(),
	}
	conversionService := conversion.NewConversionService(
		documentRepo, allocator, txScope, catalogRepo, document.MustDefaultRules(), opts, log,
	)
	quantityService := conversion.NewQuantityService(catalogRepo, opts, log)

	metrics, err := telemetry.NewConversionMetrics(meterProvider.Meter("docengine"))
	if err != nil {
		log.Fatal("Failed to create conversion metrics", zap.Error(err))
	}
	conversionService.SetMetrics(metrics)

	if cfg.Conversion.LockEnabled {
		if redisClient == nil {
			log.Fatal("conversion.lock_enabled requires redis.enabled")
		}
		conversionService.SetLocker(lock.NewRedisLocker(redisClient,
			lock.WithTTL(cfg.Conversion.LockTTL),
			lock.WithLogger(log),
		))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	routerCfg := router.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		TracingEnabled:   tracerProvider.IsEnabled(),
	}
	if meterProvider.IsEnabled() {
		routerCfg.Meter = meterProvider.Meter("http.server")
	}

	engine := gin.New()
	r := router.NewRouter(engine, routerCfg, log, router.WithHealthHandler(systemHandler.Health))
	r.RegisterUnscoped(systemHandler).
		Register(handler.NewDocumentHandler(conversionService)).
		Register(handler.NewPackagingHandler(quantityService))
	if err := r.Setup(); err != nil {
		log.Fatal("Failed to set up routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// flush telemetry after the last request has been served
	if err := dbMetrics.Unregister(); err != nil {
		log.Error("Database metrics unregister failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter shutdown failed", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Log export shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
