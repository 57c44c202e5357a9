// Package observability sets up OpenTelemetry tracing and metrics for a
// pipeline run and exports them to stdout or an OTLP collector.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"
)

// Provider hands out the tracer and meter providers for a run and flushes
// them on exit.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and releases exporters.
	Shutdown(ctx context.Context) error

	ForceFlush(ctx context.Context) error
}

// Option overrides exporter construction, mostly for tests.
type Option func(*provider)

// WithSpanExporter exports spans to e instead of the configured endpoint.
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(p *provider) { p.spanExporter = e }
}

// WithMetricReader collects metrics through r instead of a periodic reader
// on the configured endpoint.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(p *provider) { p.metricReader = r }
}

// WithStdoutWriter sets where the stdout endpoint writes (default os.Stderr,
// keeping command output clean).
func WithStdoutWriter(w io.Writer) Option {
	return func(p *provider) { p.stdout = w }
}

type provider struct {
	config         Config
	spanExporter   sdktrace.SpanExporter
	metricReader   sdkmetric.Reader
	stdout         io.Writer
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider builds a provider from cfg. Defaults are applied to a copy of
// cfg before validation. A disabled config yields a no-op provider; an
// enabled one also installs itself and the W3C propagator globally.
func NewProvider(cfg *Config, opts ...Option) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	safeCfg := *cfg
	safeCfg.ApplyDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}
	if !safeCfg.Enabled {
		return newNoopProvider(), nil
	}

	p := &provider{config: safeCfg, stdout: os.Stderr}
	for _, opt := range opts {
		opt(p)
	}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if enabled(safeCfg.Trace.Enabled) {
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
		otel.SetTracerProvider(p.tracerProvider)
	}
	if enabled(safeCfg.Metrics.Enabled) {
		if err := p.initMeterProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
		otel.SetMeterProvider(p.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service.Name),
			semconv.ServiceVersion(p.config.Service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter := p.spanExporter
	if exporter == nil {
		var err error
		if exporter, err = p.createTraceExporter(); err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.Trace.BatchTimeout)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*p.config.Trace.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	if p.config.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.stdout))
	}

	switch p.config.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(p.config.Endpoint)}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(p.config.Headers))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(p.config.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", p.config.Protocol, ErrInvalidProtocol)
	}
}

// TracerProvider returns the SDK provider or a no-op one when tracing is off.
func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

// MeterProvider returns the SDK provider or a no-op one when metrics are off.
func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
