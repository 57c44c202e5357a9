package summon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/omdmaps/pipeline/logger"
	"github.com/omdmaps/pipeline/trace"
)

// Config holds the client configuration
type Config struct {
	// Defaults are the base options every call starts from.
	Defaults             Options
	Transport            Transport
	Cache                *ResponseCache
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps logged body bytes (default 1024)
	MaxPayloadLogBytes int
	// TraceIDHeader names the request ID header (default X-Request-ID)
	TraceIDHeader  string
	MeterProvider  metric.MeterProvider
	TracerProvider oteltrace.TracerProvider
}

type client struct {
	logger  logger.Logger
	config  *Config
	metrics *clientMetrics
	tracer  oteltrace.Tracer
}

// Builder provides a fluent interface for creating clients
type Builder struct {
	logger logger.Logger
	config *Config
}

// NewBuilder creates a builder with DefaultOptions and http.DefaultClient as
// the transport.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		logger: log,
		config: &Config{
			Defaults:           DefaultOptions(),
			MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
			TraceIDHeader:      trace.HeaderXRequestID,
		},
	}
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Defaults.Timeout = timeout
	return b
}

func (b *Builder) WithRetryUntilOkay(enabled bool) *Builder {
	b.config.Defaults.RetryUntilOkay = enabled
	return b
}

// WithBackoff merges the non-zero fields of backoff into the defaults.
func (b *Builder) WithBackoff(backoff BackoffOptions) *Builder {
	WithBackoff(backoff)(&b.config.Defaults)
	return b
}

// WithOptions applies opts to the defaults.
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.config.Defaults = Resolve(b.config.Defaults, opts...)
	return b
}

func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	setHeader(&b.config.Defaults, key, value)
	return b
}

func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.Defaults.Request.Auth = &BasicAuth{Username: username, Password: password}
	return b
}

func (b *Builder) WithTransport(t Transport) *Builder {
	b.config.Transport = t
	return b
}

// WithCache enables the response cache for GET calls with a revalidate window.
func (b *Builder) WithCache(cache *ResponseCache) *Builder {
	b.config.Cache = cache
	return b
}

func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

func (b *Builder) WithTraceIDHeader(header string) *Builder {
	b.config.TraceIDHeader = header
	return b
}

func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.config.MeterProvider = mp
	return b
}

// WithTracerProvider sets where call spans go. The global provider is used
// when unset.
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.config.TracerProvider = tp
	return b
}

// Build creates the client. The trace ID and trace context interceptors
// always run first.
func (b *Builder) Build() Client {
	cfg := *b.config
	cfg.Defaults = b.config.Defaults.clone()
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultClient
	}
	cfg.RequestInterceptors = append(
		[]RequestInterceptor{NewTraceIDInterceptorFor(cfg.TraceIDHeader), NewTraceContextInterceptor()},
		b.config.RequestInterceptors...,
	)
	cfg.ResponseInterceptors = append([]ResponseInterceptor(nil), b.config.ResponseInterceptors...)

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &client{
		logger:  b.logger,
		config:  &cfg,
		metrics: newClientMetrics(cfg.MeterProvider),
		tracer:  tp.Tracer(instrumentationName),
	}
}

func (c *client) Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Summon(ctx, url, append([]Option{WithMethod(http.MethodGet)}, opts...)...)
}

func (c *client) Post(ctx context.Context, url string, body []byte, opts ...Option) (*Response, error) {
	return c.Summon(ctx, url, append([]Option{WithMethod(http.MethodPost), WithBody(body)}, opts...)...)
}

func (c *client) Put(ctx context.Context, url string, body []byte, opts ...Option) (*Response, error) {
	return c.Summon(ctx, url, append([]Option{WithMethod(http.MethodPut), WithBody(body)}, opts...)...)
}

func (c *client) Delete(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Summon(ctx, url, append([]Option{WithMethod(http.MethodDelete)}, opts...)...)
}

// Summon runs attempts against target until one succeeds, the retry policy
// refuses, attempts run out or ctx is cancelled. On failure the last
// attempt's error is returned unchanged.
func (c *client) Summon(ctx context.Context, target any, opts ...Option) (*Response, error) {
	rawURL, targetOpts, err := resolveTarget(target)
	if err != nil {
		return nil, err
	}
	o := Resolve(c.config.Defaults, append(targetOpts, opts...)...)
	method := o.Request.method()

	requestID := trace.EnsureTraceID(ctx)
	ctx = trace.WithTraceID(ctx, requestID)

	ctx, span := c.tracer.Start(ctx, "summon "+method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", rawURL),
			attribute.String("summon.request_id", requestID),
		),
	)
	defer span.End()

	c.logDispatch(rawURL, method)

	var key string
	if c.config.Cache != nil && cacheable(&o) {
		key = cacheKey(rawURL, &o)
		if resp, ok := c.config.Cache.Get(key); ok {
			resp.Stats = Stats{Cached: true}
			c.metrics.recordCacheHit(ctx)
			span.SetAttributes(
				attribute.Bool("summon.cache_hit", true),
				attribute.Int("http.response.status_code", resp.StatusCode),
			)
			c.logResponse(resp, requestID)
			return resp, nil
		}
	}

	start := time.Now()
	maxAttempts := o.Backoff.Attempts()
	attempt := 0

	resp, err := retry.NewWithData[*Response](
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, _ error, _ retry.DelayContext) time.Duration {
			return o.Backoff.DelayBefore(attempt + 1)
		}),
		retry.RetryIf(func(err error) bool {
			return shouldRetry(ctx, err, attempt, o.Backoff.Retry)
		}),
	).Do(func() (*Response, error) {
		attempt++
		if attempt == 1 {
			if err := sleep(ctx, o.Backoff.DelayBefore(1)); err != nil {
				return nil, err
			}
		}
		resp, err := c.attempt(ctx, rawURL, &o, attempt, requestID)
		if err != nil {
			c.metrics.recordFailure(ctx, method, err)
			c.logAttemptFailure(rawURL, attempt, maxAttempts, err)
			return nil, err
		}
		return resp, nil
	})

	elapsed := time.Since(start)
	c.metrics.recordCall(ctx, method, elapsed, err)
	span.SetAttributes(attribute.Int("summon.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorTypeOf(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	resp.Stats = Stats{ElapsedTime: elapsed, CallCount: int64(attempt)}
	if key != "" && resp.OK() {
		c.config.Cache.Set(key, resp, *o.Request.Next.Revalidate, o.Request.Next.Tags)
	}
	c.logResponse(resp, requestID)
	return resp, nil
}

// shouldRetry is the decision function: cancelled parents and deterministic
// failures stop immediately, everything else defers to the predicate.
func shouldRetry(ctx context.Context, err error, attempt int, predicate RetryPredicate) bool {
	if ctx.Err() != nil || !Retryable(err) {
		return false
	}
	if predicate == nil {
		return true
	}
	return predicate(err, attempt)
}

// attempt performs one exchange under its own cancellation scope. The body is
// read before the scope ends so the connection can be reused.
func (c *client) attempt(ctx context.Context, rawURL string, o *Options, n int, requestID string) (*Response, error) {
	c.metrics.recordAttempt(ctx, o.Request.method())

	attemptCtx, cancel := attemptContext(ctx, o.Timeout)
	defer cancel()

	req, err := newHTTPRequest(attemptCtx, rawURL, &o.Request)
	if err != nil {
		return nil, err
	}
	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(attemptCtx, req); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	c.logAttempt(req, o.Request.Body, n, requestID)

	httpResp, err := c.config.Transport.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, o.Timeout, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, attemptCtx, o.Timeout, err)
	}
	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(attemptCtx, req, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	resp := newResponse(httpResp, body)
	if o.RetryUntilOkay && !resp.OK() {
		return nil, NewNotOkError(resp)
	}
	return resp, nil
}

// attemptContext derives the per-attempt scope. A zero timeout installs no
// deadline; the scope is still cancelled when the attempt returns.
func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func classifyTransportError(parent, attemptCtx context.Context, timeout time.Duration, err error) error {
	switch {
	case parent.Err() != nil:
		return context.Cause(parent)
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return NewTimeoutError("attempt timed out", timeout, err)
	default:
		return NewNetworkError("request failed", err)
	}
}

func newHTTPRequest(ctx context.Context, rawURL string, init *RequestInit) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(init.Body) > 0 {
		body = bytes.NewReader(init.Body)
	}
	req, err := http.NewRequestWithContext(ctx, init.method(), rawURL, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("build request: %v", err), "url")
	}
	for k, v := range init.Headers {
		req.Header.Set(k, v)
	}
	if init.Auth != nil {
		req.SetBasicAuth(init.Auth.Username, init.Auth.Password)
	}
	switch init.Cache {
	case CacheNoStore, CacheNoCache:
		req.Header.Set("Cache-Control", string(init.Cache))
	}
	return req, nil
}
