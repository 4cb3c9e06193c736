package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metric export configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	Insecure          bool
}

// MeterProvider owns the SDK meter provider and its periodic OTLP reader.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider installs an OTLP/gRPC meter provider as the global one.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Metrics disabled")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("Metrics enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns a named meter, falling back to the global provider when disabled.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics are exported.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown flushes pending metrics and stops the reader.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := mp.provider.Shutdown(ctx); err != nil {
		mp.logger.Error("Meter provider shutdown failed", zap.Error(err))
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}

// Metric attribute keys.
var (
	AttrSourceKind = attribute.Key("source_kind")
	AttrTargetKind = attribute.Key("target_kind")
	AttrKind       = attribute.Key("kind")
	AttrOutcome    = attribute.Key("outcome")
	AttrReason     = attribute.Key("reason")
)

// Retry reasons recorded by ConversionMetrics.RecordSequenceRetry.
const (
	RetryReasonDuplicate = "duplicate"
	RetryReasonTransient = "transient"
)

// OutcomeOK is the outcome label of a successful conversion.
const OutcomeOK = "ok"

// ConversionMetrics records conversion and numbering instruments.
// A nil *ConversionMetrics is valid and records nothing.
type ConversionMetrics struct {
	conversions metric.Int64Counter
	duration    metric.Float64Histogram
	allocations metric.Int64Counter
	retries     metric.Int64Counter
}

// NewConversionMetrics creates the instruments on the given meter.
func NewConversionMetrics(meter metric.Meter) (*ConversionMetrics, error) {
	conversions, err := meter.Int64Counter("docengine.conversions",
		metric.WithDescription("Document conversions by kind pair and outcome"),
		metric.WithUnit("{conversion}"))
	if err != nil {
		return nil, fmt.Errorf("create conversions counter: %w", err)
	}
	duration, err := meter.Float64Histogram("docengine.conversion.duration",
		metric.WithDescription("Conversion latency including numbering retries"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000))
	if err != nil {
		return nil, fmt.Errorf("create conversion duration histogram: %w", err)
	}
	allocations, err := meter.Int64Counter("docengine.sequence.allocations",
		metric.WithDescription("Sequence numbers handed out"),
		metric.WithUnit("{number}"))
	if err != nil {
		return nil, fmt.Errorf("create allocations counter: %w", err)
	}
	retries, err := meter.Int64Counter("docengine.sequence.retries",
		metric.WithDescription("Write attempts retried after a duplicate number or transient storage error"),
		metric.WithUnit("{retry}"))
	if err != nil {
		return nil, fmt.Errorf("create retries counter: %w", err)
	}
	return &ConversionMetrics{
		conversions: conversions,
		duration:    duration,
		allocations: allocations,
		retries:     retries,
	}, nil
}

// RecordConversion records one finished conversion. outcome is OutcomeOK or an error code.
func (m *ConversionMetrics) RecordConversion(ctx context.Context, sourceKind, targetKind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrSourceKind.String(sourceKind), AttrTargetKind.String(targetKind), AttrOutcome.String(outcome))
	m.conversions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// RecordAllocation counts one allocated number.
func (m *ConversionMetrics) RecordAllocation(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, 1, metric.WithAttributes(AttrKind.String(kind)))
}

// RecordSequenceRetry counts one retried write.
func (m *ConversionMetrics) RecordSequenceRetry(ctx context.Context, kind, reason string) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(AttrKind.String(kind), AttrReason.String(reason)))
}
