package summon

import (
	"context"
	"net/http"

	"github.com/omdmaps/pipeline/trace"
)

// NewTraceIDInterceptor sets X-Request-ID from the context unless the request
// already carries one.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(trace.HeaderXRequestID)
}

// NewTraceIDInterceptorFor is NewTraceIDInterceptor with a custom header name.
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	return func(ctx context.Context, req *http.Request) error {
		trace.InjectHeader(ctx, req.Header, header)
		return nil
	}
}

// NewTraceContextInterceptor writes the W3C traceparent of the current span.
func NewTraceContextInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *http.Request) error {
		trace.InjectTraceContext(ctx, req.Header)
		return nil
	}
}
