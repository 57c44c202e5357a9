// Package summon dispatches HTTP requests with per-attempt timeouts, an
// exponential backoff policy and pluggable retry decisions.
package summon

import (
	"context"
	"net/http"
	"time"
)

// Client dispatches requests. Implementations are safe for concurrent use;
// each call runs its attempts sequentially.
type Client interface {
	// Summon resolves target, applies opts on top of the client's base
	// options and runs attempts until one succeeds or the policy gives up.
	Summon(ctx context.Context, target any, opts ...Option) (*Response, error)
	Get(ctx context.Context, url string, opts ...Option) (*Response, error)
	Post(ctx context.Context, url string, body []byte, opts ...Option) (*Response, error)
	Put(ctx context.Context, url string, body []byte, opts ...Option) (*Response, error)
	Delete(ctx context.Context, url string, opts ...Option) (*Response, error)
}

// Transport performs a single HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes a target together with request fields. Non-zero fields
// are applied before per-call options.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	// Status is the reason phrase, e.g. "Internal Server Error".
	Status  string
	Body    []byte
	Headers http.Header
	Stats   Stats
}

// Stats describes how a response was obtained.
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	Cached      bool
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before every attempt is sent
type RequestInterceptor func(ctx context.Context, req *http.Request) error

// ResponseInterceptor is called after every attempt receives a response
type ResponseInterceptor func(ctx context.Context, req *http.Request, resp *http.Response) error
