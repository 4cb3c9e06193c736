package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestConversionMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewConversionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordConversion(ctx, "BUDGET", "ORDER", telemetry.OutcomeOK, 12*time.Millisecond)
	m.RecordConversion(ctx, "BUDGET", "ORDER", telemetry.OutcomeOK, 30*time.Millisecond)
	m.RecordConversion(ctx, "BUDGET", "ORDER", "ALREADY_CONVERTED", time.Millisecond)
	m.RecordAllocation(ctx, "ORDER")
	m.RecordAllocation(ctx, "ORDER")
	m.RecordSequenceRetry(ctx, "ORDER", telemetry.RetryReasonDuplicate)

	got := collect(t, reader)

	okAttrs := []attribute.KeyValue{
		telemetry.AttrSourceKind.String("BUDGET"),
		telemetry.AttrTargetKind.String("ORDER"),
		telemetry.AttrOutcome.String(telemetry.OutcomeOK),
	}
	assert.Equal(t, int64(2), sumFor(t, got["docengine.conversions"], okAttrs...))
	assert.Equal(t, int64(1), sumFor(t, got["docengine.conversions"],
		telemetry.AttrSourceKind.String("BUDGET"),
		telemetry.AttrTargetKind.String("ORDER"),
		telemetry.AttrOutcome.String("ALREADY_CONVERTED"),
	))
	assert.Equal(t, int64(2), sumFor(t, got["docengine.sequence.allocations"], telemetry.AttrKind.String("ORDER")))
	assert.Equal(t, int64(1), sumFor(t, got["docengine.sequence.retries"],
		telemetry.AttrKind.String("ORDER"),
		telemetry.AttrReason.String(telemetry.RetryReasonDuplicate),
	))

	hist, ok := got["docengine.conversion.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestConversionMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.ConversionMetrics
	assert.NotPanics(t, func() {
		m.RecordConversion(context.Background(), "VISIT", "BUDGET", telemetry.OutcomeOK, time.Second)
		m.RecordAllocation(context.Background(), "BUDGET")
		m.RecordSequenceRetry(context.Background(), "BUDGET", telemetry.RetryReasonTransient)
	})
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("docengine"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}
