package summon

import (
	"maps"
	"net/http"
	"slices"
	"time"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultRevalidate    = 30 * time.Second
	DefaultAttempts      = 3
	DefaultStartingDelay = 300 * time.Millisecond
	DefaultTimeMultiple  = 2.0
)

// CacheMode mirrors the fetch cache modes understood by the admin API's edge.
type CacheMode string

const (
	CacheDefault    CacheMode = ""
	CacheNoStore    CacheMode = "no-store"
	CacheNoCache    CacheMode = "no-cache"
	CacheReload     CacheMode = "reload"
	CacheForceCache CacheMode = "force-cache"
)

// NextOptions holds revalidation hints. A nil Revalidate means "unset".
type NextOptions struct {
	Revalidate *time.Duration
	Tags       []string
}

// RequestInit is passed through to every attempt unchanged.
type RequestInit struct {
	Method  string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
	Cache   CacheMode
	Next    NextOptions
}

func (r RequestInit) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// RetryPredicate decides whether a failed attempt should be retried. attempt
// is the 1-based number of the attempt that just failed.
type RetryPredicate func(err error, attempt int) bool

// Options is the fully resolved configuration of a single Summon call.
type Options struct {
	// Timeout bounds each attempt. Zero disables the deadline.
	Timeout time.Duration
	// RetryUntilOkay turns non-2xx responses into retryable failures.
	RetryUntilOkay bool
	Request        RequestInit
	Backoff        BackoffOptions
}

// DefaultOptions returns the options used when a client is built without
// overrides.
func DefaultOptions() Options {
	revalidate := DefaultRevalidate
	return Options{
		Timeout: DefaultTimeout,
		Request: RequestInit{
			Next: NextOptions{Revalidate: &revalidate},
		},
		Backoff: BackoffOptions{
			NumOfAttempts: DefaultAttempts,
			StartingDelay: DefaultStartingDelay,
			TimeMultiple:  DefaultTimeMultiple,
			Jitter:        JitterNone,
		},
	}
}

// clone returns a copy that shares no maps, slices or pointers with o.
func (o Options) clone() Options {
	out := o
	out.Request.Headers = maps.Clone(o.Request.Headers)
	out.Request.Body = slices.Clone(o.Request.Body)
	out.Request.Next.Tags = slices.Clone(o.Request.Next.Tags)
	if o.Request.Auth != nil {
		auth := *o.Request.Auth
		out.Request.Auth = &auth
	}
	if o.Request.Next.Revalidate != nil {
		d := *o.Request.Next.Revalidate
		out.Request.Next.Revalidate = &d
	}
	return out
}

// Option adjusts the options of a single call.
type Option func(*Options)

// Resolve applies opts to a copy of base. base itself is never modified.
func Resolve(base Options, opts ...Option) Options {
	o := base.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Request.Cache == CacheNoStore {
		o.Request.Next.Revalidate = nil
	}
	return o
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

func WithRetryUntilOkay(enabled bool) Option {
	return func(o *Options) { o.RetryUntilOkay = enabled }
}

// WithRequestInit merges the non-zero fields of init. Headers are merged key
// by key and Next is merged field by field.
func WithRequestInit(init RequestInit) Option {
	return func(o *Options) {
		if init.Method != "" {
			o.Request.Method = init.Method
		}
		for k, v := range init.Headers {
			setHeader(o, k, v)
		}
		if init.Body != nil {
			o.Request.Body = slices.Clone(init.Body)
		}
		if init.Auth != nil {
			auth := *init.Auth
			o.Request.Auth = &auth
		}
		if init.Cache != "" {
			o.Request.Cache = init.Cache
		}
		if init.Next.Revalidate != nil {
			d := *init.Next.Revalidate
			o.Request.Next.Revalidate = &d
		}
		if init.Next.Tags != nil {
			o.Request.Next.Tags = slices.Clone(init.Next.Tags)
		}
	}
}

func WithMethod(method string) Option {
	return func(o *Options) { o.Request.Method = method }
}

func WithHeader(key, value string) Option {
	return func(o *Options) { setHeader(o, key, value) }
}

func WithBody(body []byte) Option {
	return func(o *Options) { o.Request.Body = slices.Clone(body) }
}

// WithBearerToken sets the Authorization header.
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

func WithBasicAuth(username, password string) Option {
	return func(o *Options) { o.Request.Auth = &BasicAuth{Username: username, Password: password} }
}

func WithCache(mode CacheMode) Option {
	return func(o *Options) { o.Request.Cache = mode }
}

func WithRevalidate(d time.Duration) Option {
	return func(o *Options) { o.Request.Next.Revalidate = &d }
}

func WithTags(tags ...string) Option {
	return func(o *Options) { o.Request.Next.Tags = slices.Clone(tags) }
}

// WithBackoff merges the non-zero fields of b into the backoff policy.
func WithBackoff(b BackoffOptions) Option {
	return func(o *Options) {
		if b.NumOfAttempts != 0 {
			o.Backoff.NumOfAttempts = b.NumOfAttempts
		}
		if b.StartingDelay != 0 {
			o.Backoff.StartingDelay = b.StartingDelay
		}
		if b.TimeMultiple != 0 {
			o.Backoff.TimeMultiple = b.TimeMultiple
		}
		if b.MaxDelay != 0 {
			o.Backoff.MaxDelay = b.MaxDelay
		}
		if b.Jitter != "" {
			o.Backoff.Jitter = b.Jitter
		}
		if b.DelayFirstAttempt {
			o.Backoff.DelayFirstAttempt = true
		}
		if b.Retry != nil {
			o.Backoff.Retry = b.Retry
		}
	}
}

func WithAttempts(n int) Option {
	return func(o *Options) { o.Backoff.NumOfAttempts = n }
}

func WithStartingDelay(d time.Duration) Option {
	return func(o *Options) { o.Backoff.StartingDelay = d }
}

func WithTimeMultiple(m float64) Option {
	return func(o *Options) { o.Backoff.TimeMultiple = m }
}

func WithMaxDelay(d time.Duration) Option {
	return func(o *Options) { o.Backoff.MaxDelay = d }
}

func WithJitter(j JitterType) Option {
	return func(o *Options) { o.Backoff.Jitter = j }
}

func WithDelayFirstAttempt(enabled bool) Option {
	return func(o *Options) { o.Backoff.DelayFirstAttempt = enabled }
}

func WithRetryPredicate(p RetryPredicate) Option {
	return func(o *Options) { o.Backoff.Retry = p }
}

func setHeader(o *Options, key, value string) {
	if o.Request.Headers == nil {
		o.Request.Headers = make(map[string]string)
	}
	o.Request.Headers[http.CanonicalHeaderKey(key)] = value
}
