package observability

import (
	"fmt"
	"strings"
	"time"
)

const (
	// EndpointStdout writes telemetry to the configured writer (stderr by
	// default) instead of an OTLP collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines telemetry export for a pipeline run. It is read from the
// "observability" section of the pipeline configuration.
type Config struct {
	// Enabled controls whether telemetry is exported at all. When false the
	// provider hands out no-op tracers and meters.
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	Service ServiceConfig `koanf:"service" json:"service" yaml:"service"`

	// Environment tags every span and metric (e.g. ci, staging).
	Environment string `koanf:"environment" json:"environment" yaml:"environment"`

	// Endpoint is "stdout", an http(s):// URL for ProtocolHTTP or a
	// host:port for ProtocolGRPC.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`

	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol"`

	// Insecure disables TLS for gRPC collectors.
	Insecure bool `koanf:"insecure" json:"insecure" yaml:"insecure"`

	// Headers are sent with every OTLP export, typically an API key.
	Headers map[string]string `koanf:"headers" json:"-" yaml:"headers"`

	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// ServiceConfig identifies the process in exported telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

// TraceConfig controls span export.
type TraceConfig struct {
	// nil = enabled when observability is enabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	// SampleRate is the fraction of runs traced; nil means 1.0.
	SampleRate *float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate"`
	// BatchTimeout bounds how long spans wait before export.
	BatchTimeout time.Duration `koanf:"batchtimeout" json:"batchtimeout" yaml:"batchtimeout"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// nil = enabled when observability is enabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	// Interval between periodic exports. Shutdown always flushes.
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	if c.Endpoint == "" {
		c.Endpoint = EndpointStdout
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}

	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = time.Second
	}

	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 30 * time.Second
	}
}

// Validate checks an enabled configuration. Disabled configurations are
// always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if rate := c.Trace.SampleRate; rate != nil && (*rate < 0 || *rate > 1) {
		return ErrInvalidSampleRate
	}
	if c.Endpoint == EndpointStdout {
		return nil
	}

	hasScheme := strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://")
	switch c.Protocol {
	case ProtocolHTTP:
		if !hasScheme {
			return fmt.Errorf("%w: http endpoint %q needs an http:// or https:// scheme", ErrInvalidEndpointFormat, c.Endpoint)
		}
	case ProtocolGRPC:
		if hasScheme {
			return fmt.Errorf("%w: grpc endpoint %q must be host:port", ErrInvalidEndpointFormat, c.Endpoint)
		}
	default:
		return fmt.Errorf("protocol '%s': %w", c.Protocol, ErrInvalidProtocol)
	}
	return nil
}

func enabled(b *bool) bool {
	return b != nil && *b
}
