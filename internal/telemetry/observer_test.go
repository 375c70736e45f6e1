package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace/noop"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
)

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}

	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key string, value attribute.Value) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s type = %T, want Sum[int64]", m.Name, m.Data)

	var total int64

	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v == value {
			total += dp.Value
		}
	}

	return total
}

func TestObserver_Invocations(t *testing.T) {
	reader, mp := newTestMeter()
	tracer := noop.NewTracerProvider().Tracer("test")

	observer, err := NewObserver(mp.Meter("test"), tracer)
	require.NoError(t, err)

	ctx := context.Background()

	observer.ObserveInvocation(ctx, executor.Observation{ID: "1", Tool: "hello", Duration: 12 * time.Millisecond})
	observer.ObserveInvocation(ctx, executor.Observation{ID: "2", Tool: "hello", Duration: 3 * time.Millisecond})
	observer.ObserveInvocation(ctx, executor.Observation{
		ID:       "3",
		Tool:     "divide",
		Duration: time.Millisecond,
		Kind:     toolerrors.KindRuntimeError,
	})

	rm := collectMetrics(t, reader)

	invocations := findMetric(rm, MetricInvocations)
	require.NotNil(t, invocations)
	assert.Equal(t, int64(2), sumByAttr(t, invocations, "tool_name", attribute.StringValue("hello")))
	assert.Equal(t, int64(1), sumByAttr(t, invocations, "error_kind", attribute.StringValue("RuntimeError")))

	latency := findMetric(rm, MetricLatency)
	require.NotNil(t, latency)

	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "latency type = %T", latency.Data)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}

	assert.Equal(t, uint64(3), count)
}

func TestObserver_Scans(t *testing.T) {
	reader, mp := newTestMeter()

	observer, err := NewObserver(mp.Meter("test"), nil)
	require.NoError(t, err)

	ctx := context.Background()

	observer.ObserveScan(ctx, registry.ScanStats{Dir: "/tools", Candidates: 4, Valid: 3, Failed: 1, Duration: time.Millisecond})
	observer.ObserveScan(ctx, registry.ScanStats{Dir: "/tools", Err: errors.New("gone")})

	rm := collectMetrics(t, reader)

	scans := findMetric(rm, MetricScans)
	require.NotNil(t, scans)
	assert.Equal(t, int64(1), sumByAttr(t, scans, "success", attribute.BoolValue(true)))
	assert.Equal(t, int64(1), sumByAttr(t, scans, "success", attribute.BoolValue(false)))

	failures := findMetric(rm, MetricScanFailures)
	require.NotNil(t, failures)
	assert.Equal(t, int64(1), sumByAttr(t, failures, "dir", attribute.StringValue("/tools")))

	size := findMetric(rm, MetricCatalogSize)
	require.NotNil(t, size)

	gauge, ok := size.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "catalog size type = %T", size.Data)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)
}

func TestObserver_Nil(t *testing.T) {
	var observer *Observer

	require.NotPanics(t, func() {
		observer.ObserveInvocation(context.Background(), executor.Observation{Tool: "x"})
		observer.ObserveScan(context.Background(), registry.ScanStats{})
	})
}

func TestProvider_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer

	reader := sdkmetric.NewManualReader()

	p, err := NewProvider(ProviderConfig{
		ServiceName:    "mcp-dynamic-tools",
		ServiceVersion: "test",
		StdoutTraces:   true,
		TraceWriter:    &buf,
		MetricReader:   reader,
	})
	require.NoError(t, err)

	p.Observer().ObserveInvocation(context.Background(), executor.Observation{
		ID:       "01J",
		Tool:     "hello",
		Duration: time.Millisecond,
	})

	rm := collectMetrics(t, reader)
	require.NotNil(t, findMetric(rm, MetricInvocations))

	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"tool.invoke"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestProvider_NoTraces(t *testing.T) {
	p, err := NewProvider(ProviderConfig{ServiceName: "mcp-dynamic-tools"})
	require.NoError(t, err)

	p.Observer().ObserveScan(context.Background(), registry.ScanStats{Dir: "/tools"})

	require.NoError(t, p.Shutdown(context.Background()))
}
