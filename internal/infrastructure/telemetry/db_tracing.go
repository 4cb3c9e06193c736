package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds database tracing configuration.
type DBTracingConfig struct {
	Enabled        bool
	LogFullSQL     bool                 // keep bound variables in db.statement; development only
	SlowThreshold  time.Duration        // queries slower than this get a slow_query event
	DBName         string               // reported as db.name
	TracerProvider trace.TracerProvider // overrides the global provider when set
}

type startTimeKey struct{}

// RegisterDBTracing installs the otelgorm plugin and a callback pair that
// annotates each statement span with rows affected, table and slow-query
// markers. Unique violations are expected while numbering and are not
// marked as span errors.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, startTimeKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateStatement(tx, cfg.SlowThreshold) }

	cb := db.Callback()
	if err := errors.Join(
		cb.Create().Before("gorm:create").Register("docengine:trace_start_create", before),
		cb.Create().After("gorm:create").Register("docengine:trace_end_create", after),
		cb.Query().Before("gorm:query").Register("docengine:trace_start_query", before),
		cb.Query().After("gorm:query").Register("docengine:trace_end_query", after),
		cb.Update().Before("gorm:update").Register("docengine:trace_start_update", before),
		cb.Update().After("gorm:update").Register("docengine:trace_end_update", after),
		cb.Delete().Before("gorm:delete").Register("docengine:trace_start_delete", before),
		cb.Delete().After("gorm:delete").Register("docengine:trace_end_delete", after),
		cb.Row().Before("gorm:row").Register("docengine:trace_start_row", before),
		cb.Row().After("gorm:row").Register("docengine:trace_end_row", after),
		cb.Raw().Before("gorm:raw").Register("docengine:trace_start_raw", before),
		cb.Raw().After("gorm:raw").Register("docengine:trace_end_raw", after),
	); err != nil {
		return err
	}

	// Registered after the annotation callbacks so that otelgorm ends its
	// span only once the span has been annotated.
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_threshold", cfg.SlowThreshold),
	)
	return nil
}

func annotateStatement(tx *gorm.DB, slowThreshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if err := tx.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || slowThreshold <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > slowThreshold {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", slowThreshold.Milliseconds()),
		))
	}
}
