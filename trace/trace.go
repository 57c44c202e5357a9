// Package trace carries request IDs from the CLI run into every outbound
// admin API call so server-side logs can be correlated with pipeline logs.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	traceIDKey contextKey = "trace_id"

	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns a trace ID from context if present
func IDFromContext(ctx context.Context) (string, bool) {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		return traceID, true
	}
	return "", false
}

// NewTraceID generates a random trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns an existing trace ID from context or generates a new one
func EnsureTraceID(ctx context.Context) string {
	if traceID, ok := IDFromContext(ctx); ok {
		return traceID
	}
	return NewTraceID()
}

// InjectHeader sets header (X-Request-ID when empty) to the context's trace ID
// unless the header already carries a value. It returns the value in effect.
func InjectHeader(ctx context.Context, h http.Header, header string) string {
	if header == "" {
		header = HeaderXRequestID
	}
	if existing := h.Get(header); existing != "" {
		return existing
	}
	id := EnsureTraceID(ctx)
	h.Set(header, id)
	return id
}

// InjectTraceContext writes the active span context into h using the global
// propagator. Nothing is written when ctx has no recording span or no
// propagator is installed.
func InjectTraceContext(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}
