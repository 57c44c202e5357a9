package summon

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// resolveTarget returns the canonical URL of target and the options implied
// by a request descriptor, if any.
func resolveTarget(target any) (string, []Option, error) {
	switch t := target.(type) {
	case string:
		if t == "" {
			return "", nil, NewValidationError("empty URL", "target")
		}
		return t, nil, nil
	case *url.URL:
		if t == nil {
			return "", nil, NewValidationError("nil URL", "target")
		}
		return t.String(), nil, nil
	case url.URL:
		return t.String(), nil, nil
	case *Request:
		if t == nil || t.URL == "" {
			return "", nil, NewValidationError("request has no URL", "target")
		}
		return t.URL, []Option{WithRequestInit(RequestInit{
			Method:  t.Method,
			Headers: t.Headers,
			Body:    t.Body,
			Auth:    t.Auth,
		})}, nil
	case *http.Request:
		return fromHTTPRequest(t)
	default:
		return "", nil, NewValidationError(fmt.Sprintf("unsupported target type %T", target), "target")
	}
}

// fromHTTPRequest takes URL, method, headers and body from req. The body is
// drained and replaced so req stays usable by the caller. Repeated header
// values are folded into one comma separated field, or "; " for Cookie.
func fromHTTPRequest(req *http.Request) (string, []Option, error) {
	if req == nil || req.URL == nil {
		return "", nil, NewValidationError("request has no URL", "target")
	}

	init := RequestInit{Method: req.Method, Headers: make(map[string]string, len(req.Header))}
	for k, vals := range req.Header {
		sep := ", "
		if http.CanonicalHeaderKey(k) == "Cookie" {
			sep = "; "
		}
		init.Headers[k] = strings.Join(vals, sep)
	}
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return "", nil, NewValidationError(fmt.Sprintf("read request body: %v", err), "body")
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		init.Body = body
	}
	if user, pass, ok := req.BasicAuth(); ok {
		init.Auth = &BasicAuth{Username: user, Password: pass}
	}
	return req.URL.String(), []Option{WithRequestInit(init)}, nil
}
