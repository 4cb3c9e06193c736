package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds database metrics configuration.
type DBMetricsConfig struct {
	Enabled       bool
	SlowThreshold time.Duration // queries slower than this count as slow
}

// Database metric attribute keys.
var (
	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("state")
	AttrDBStatus    = attribute.Key("status")
)

// DBMetrics records query counts and latency from gorm callbacks, and
// reports connection pool state through an observable gauge.
type DBMetrics struct {
	queries   metric.Int64Counter
	duration  metric.Float64Histogram
	slow      metric.Int64Counter
	pool      metric.Int64ObservableGauge
	poolMax   metric.Int64ObservableGauge
	reg       metric.Registration
	threshold time.Duration
}

type queryStartKey struct{}

// RegisterDBMetrics creates the instruments on meter and installs the gorm
// callbacks. It returns nil when disabled. Call Unregister on shutdown to
// stop the pool gauge callback.
func RegisterDBMetrics(db *gorm.DB, meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 200 * time.Millisecond
	}

	m, err := newDBMetrics(meter, cfg.SlowThreshold)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	m.reg, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(m.poolMax, int64(stats.MaxOpenConnections))
		o.ObserveInt64(m.pool, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(m.pool, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(m.pool, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		return nil
	}, m.pool, m.poolMax)
	if err != nil {
		return nil, err
	}

	if err := m.install(db); err != nil {
		_ = m.reg.Unregister()
		return nil, err
	}

	logger.Info("Database metrics enabled", zap.Duration("slow_threshold", cfg.SlowThreshold))
	return m, nil
}

func newDBMetrics(meter metric.Meter, threshold time.Duration) (*DBMetrics, error) {
	queries, err := meter.Int64Counter("db_query_total",
		metric.WithDescription("Database statements by operation and status"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Database statement latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5))
	if err != nil {
		return nil, err
	}
	slow, err := meter.Int64Counter("db_slow_query_total",
		metric.WithDescription("Statements slower than the configured threshold"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	pool, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Pool connections by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	poolMax, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections allowed by the pool"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	return &DBMetrics{
		queries:   queries,
		duration:  duration,
		slow:      slow,
		pool:      pool,
		poolMax:   poolMax,
		threshold: threshold,
	}, nil
}

func (m *DBMetrics) install(db *gorm.DB) error {
	start := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	done := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) { m.observe(tx, op) }
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("docengine:metrics_start_create", start),
		cb.Create().After("gorm:create").Register("docengine:metrics_end_create", done("INSERT")),
		cb.Query().Before("gorm:query").Register("docengine:metrics_start_query", start),
		cb.Query().After("gorm:query").Register("docengine:metrics_end_query", done("SELECT")),
		cb.Update().Before("gorm:update").Register("docengine:metrics_start_update", start),
		cb.Update().After("gorm:update").Register("docengine:metrics_end_update", done("UPDATE")),
		cb.Delete().Before("gorm:delete").Register("docengine:metrics_start_delete", start),
		cb.Delete().After("gorm:delete").Register("docengine:metrics_end_delete", done("DELETE")),
		cb.Row().Before("gorm:row").Register("docengine:metrics_start_row", start),
		cb.Row().After("gorm:row").Register("docengine:metrics_end_row", done("")),
		cb.Raw().Before("gorm:raw").Register("docengine:metrics_start_raw", start),
		cb.Raw().After("gorm:raw").Register("docengine:metrics_end_raw", done("")),
	)
}

func (m *DBMetrics) observe(tx *gorm.DB, op string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	started, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if op == "" {
		op = operationOf(tx.Statement.SQL.String())
	}
	m.RecordQuery(ctx, op, tx.Statement.Table, time.Since(started), tx.Error)
}

// RecordQuery records one finished statement. A missing row is not a failure.
func (m *DBMetrics) RecordQuery(ctx context.Context, op, table string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		status = "error"
	}
	attrs := metric.WithAttributes(AttrDBOperation.String(op), AttrDBStatus.String(status))
	m.queries.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(AttrDBOperation.String(op)))

	if elapsed > m.threshold {
		if table == "" {
			table = "unknown"
		}
		m.slow.Add(ctx, 1, metric.WithAttributes(AttrDBOperation.String(op), AttrDBTable.String(table)))
	}
}

// Unregister stops the pool gauge callback. Safe on a nil receiver.
func (m *DBMetrics) Unregister() error {
	if m == nil || m.reg == nil {
		return nil
	}
	return m.reg.Unregister()
}

// operationOf guesses the statement type of raw SQL, including the
// counter upserts issued by the sequence allocator.
func operationOf(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	if strings.HasPrefix(sql, "WITH") {
		return "CTE"
	}
	return "OTHER"
}
