// Package telemetry records invocations and directory scans into
// OpenTelemetry metrics and spans.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
)

// Metric names.
const (
	MetricInvocations  = "dyntools.tool.invocations"
	MetricLatency      = "dyntools.tool.latency"
	MetricScans        = "dyntools.registry.scans"
	MetricScanLatency  = "dyntools.registry.scan.latency"
	MetricScanFailures = "dyntools.registry.scan.failures"
	MetricCatalogSize  = "dyntools.registry.tools"
)

const (
	instrumentationScope = "github.com/wagiedev/mcp-dynamic-tools"
	invocationSpanName   = "tool.invoke"
	scanSpanName         = "registry.scan"
)

// Observer implements executor.Observer and registry.ScanObserver.
type Observer struct {
	tracer trace.Tracer

	invocations  metric.Int64Counter
	latency      metric.Float64Histogram
	scans        metric.Int64Counter
	scanLatency  metric.Float64Histogram
	scanFailures metric.Int64Counter
	catalogSize  metric.Int64Gauge
}

var (
	_ executor.Observer     = (*Observer)(nil)
	_ registry.ScanObserver = (*Observer)(nil)
)

// NewObserver creates an observer bound to the provided meter and tracer.
// A nil tracer records metrics only.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	scans, err := meter.Int64Counter(
		MetricScans,
		metric.WithDescription("Number of tools directory scans"),
	)
	if err != nil {
		return nil, err
	}

	scanLatency, err := meter.Float64Histogram(
		MetricScanLatency,
		metric.WithDescription("Tools directory scan latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	scanFailures, err := meter.Int64Counter(
		MetricScanFailures,
		metric.WithDescription("Number of files rejected by scans"),
	)
	if err != nil {
		return nil, err
	}

	catalogSize, err := meter.Int64Gauge(
		MetricCatalogSize,
		metric.WithDescription("Number of valid tool files after the last scan"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:       tracer,
		invocations:  invocations,
		latency:      latency,
		scans:        scans,
		scanLatency:  scanLatency,
		scanFailures: scanFailures,
		catalogSize:  catalogSize,
	}, nil
}

// ObserveInvocation records one finished invocation.
func (o *Observer) ObserveInvocation(ctx context.Context, obs executor.Observation) {
	if o == nil {
		return
	}

	success := obs.Kind == ""

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", obs.Tool),
		attribute.Bool("builtin", obs.Builtin),
		attribute.Bool("success", success),
	}
	if !success {
		attrs = append(attrs, attribute.String("error_kind", string(obs.Kind)))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}

	end := time.Now()
	_, span := o.tracer.Start(ctx, invocationSpanName,
		trace.WithTimestamp(end.Add(-obs.Duration)),
		trace.WithAttributes(append(attrs, attribute.String("invocation_id", obs.ID))...),
	)

	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(obs.Kind))
	}

	span.End(trace.WithTimestamp(end))
}

// ObserveScan records one directory scan.
func (o *Observer) ObserveScan(ctx context.Context, stats registry.ScanStats) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("dir", stats.Dir),
		attribute.Bool("success", stats.Err == nil),
	}

	options := metric.WithAttributes(attrs...)
	o.scans.Add(ctx, 1, options)
	o.scanLatency.Record(ctx, stats.Duration.Seconds(), options)

	if stats.Err == nil {
		dir := metric.WithAttributes(attribute.String("dir", stats.Dir))
		o.scanFailures.Add(ctx, int64(stats.Failed), dir)
		o.catalogSize.Record(ctx, int64(stats.Valid), dir)
	}

	if o.tracer == nil {
		return
	}

	end := time.Now()
	_, span := o.tracer.Start(ctx, scanSpanName,
		trace.WithTimestamp(end.Add(-stats.Duration)),
		trace.WithAttributes(append(attrs,
			attribute.Int("candidates", stats.Candidates),
			attribute.Int("valid", stats.Valid),
			attribute.Int("failed", stats.Failed),
		)...),
	)

	if stats.Err != nil {
		span.RecordError(stats.Err)
		span.SetStatus(codes.Error, stats.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(end))
}
