package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProviderConfig selects what the provider exports.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string

	// StdoutTraces exports spans as JSON to TraceWriter.
	StdoutTraces bool

	// TraceWriter defaults to os.Stderr. Standard output carries the
	// protocol and must never receive spans.
	TraceWriter io.Writer

	// MetricReader collects metrics. Nil leaves metrics unexported.
	MetricReader sdkmetric.Reader
}

// Provider owns the SDK tracer and meter providers behind an Observer.
type Provider struct {
	tracerProvider trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	observer       *Observer
	shutdownFuncs  []func(context.Context) error
}

// NewProvider builds the SDK pipeline described by cfg.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &Provider{}

	if cfg.StdoutTraces {
		w := cfg.TraceWriter
		if w == nil {
			w = os.Stderr
		}

		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)

		p.tracerProvider = tp
		p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	} else {
		p.tracerProvider = tracenoop.NewTracerProvider()
	}

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.MetricReader != nil {
		metricOpts = append(metricOpts, sdkmetric.WithReader(cfg.MetricReader))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)
	p.shutdownFuncs = append(p.shutdownFuncs, p.meterProvider.Shutdown)

	observer, err := NewObserver(p.Meter(), p.Tracer())
	if err != nil {
		return nil, fmt.Errorf("create observer: %w", err)
	}

	p.observer = observer

	return p, nil
}

// Tracer returns the tracer used for invocation and scan spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(instrumentationScope)
}

// Meter returns the meter used for invocation and scan metrics.
func (p *Provider) Meter() metric.Meter {
	return p.meterProvider.Meter(instrumentationScope)
}

// Observer returns the observer wired to this provider.
func (p *Provider) Observer() *Observer {
	return p.observer
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
