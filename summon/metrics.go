package summon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/omdmaps/pipeline/summon"

type clientMetrics struct {
	attempts  metric.Int64Counter
	failures  metric.Int64Counter
	cacheHits metric.Int64Counter
	duration  metric.Float64Histogram
}

// newClientMetrics creates the dispatcher instruments. A nil provider uses the
// global one; instrument creation errors fall back to no-op instruments.
func newClientMetrics(mp metric.MeterProvider) *clientMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	m := &clientMetrics{}
	var err error
	if m.attempts, err = meter.Int64Counter("summon.attempts",
		metric.WithDescription("HTTP attempts made by the dispatcher"),
		metric.WithUnit("{attempt}")); err != nil {
		m.attempts, _ = fallback.Int64Counter("summon.attempts")
	}
	if m.failures, err = meter.Int64Counter("summon.attempt.failures",
		metric.WithDescription("Failed attempts by error type"),
		metric.WithUnit("{attempt}")); err != nil {
		m.failures, _ = fallback.Int64Counter("summon.attempt.failures")
	}
	if m.cacheHits, err = meter.Int64Counter("summon.cache.hits",
		metric.WithDescription("Calls answered from the response cache"),
		metric.WithUnit("{call}")); err != nil {
		m.cacheHits, _ = fallback.Int64Counter("summon.cache.hits")
	}
	if m.duration, err = meter.Float64Histogram("summon.call.duration",
		metric.WithDescription("Duration of a Summon call including retries"),
		metric.WithUnit("s")); err != nil {
		m.duration, _ = fallback.Float64Histogram("summon.call.duration")
	}
	return m
}

func (m *clientMetrics) recordAttempt(ctx context.Context, method string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("http.request.method", method)))
}

func (m *clientMetrics) recordFailure(ctx context.Context, method string, err error) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("error.type", errorTypeOf(err)),
	))
}

func (m *clientMetrics) recordCacheHit(ctx context.Context) {
	m.cacheHits.Add(ctx, 1)
}

func (m *clientMetrics) recordCall(ctx context.Context, method string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = errorTypeOf(err)
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("outcome", outcome),
	))
}
