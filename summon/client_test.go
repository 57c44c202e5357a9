package summon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omdmaps/pipeline/trace"
)

// scriptedTransport replays steps in order; the last step repeats.
type scriptedTransport struct {
	mu       sync.Mutex
	steps    []func(*http.Request) (*http.Response, error)
	requests []*http.Request
	bodies   []string
}

func (s *scriptedTransport) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	body := ""
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	s.bodies = append(s.bodies, body)
	step := s.steps[min(i, len(s.steps)-1)]
	s.mu.Unlock()
	return step(req)
}

func (s *scriptedTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Header:     http.Header{"Content-Type": {testContentType}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func fail(err error) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) { return nil, err }
}

func newTestClient(t *testing.T, transport Transport) (Client, *fakeLogger) {
	t.Helper()
	fakeLog := &fakeLogger{}
	c := NewBuilder(fakeLog).
		WithTransport(transport).
		WithOptions(WithStartingDelay(time.Millisecond)).
		Build()
	return c, fakeLog
}

func TestSummonRetriesTransportFailures(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		fail(errors.New("connection reset")),
		fail(errors.New("connection reset")),
		respond(http.StatusOK, `{"ok":true}`),
	}}
	c, fakeLog := newTestClient(t, transport)

	resp, err := c.Summon(context.Background(), testAdminURL, WithAttempts(3))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, transport.calls())
	assert.Equal(t, int64(3), resp.Stats.CallCount)
	assert.Len(t, fakeLog.eventsByLevel("warn"), 2)

	infoEvents := fakeLog.eventsByLevel("info")
	require.Len(t, infoEvents, 1)
	assert.Equal(t, testSummonRequest, infoEvents[0].message)
	assert.Equal(t, testAdminURL, infoEvents[0].fields["url"])
}

func TestSummonRetryUntilOkayExhausted(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusInternalServerError, `{"error":"boom"}`),
	}}
	c, fakeLog := newTestClient(t, transport)

	resp, err := c.Summon(context.Background(), testAdminURL, WithRetryUntilOkay(true), WithAttempts(2))

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsErrorType(err, NotOkError))
	assert.True(t, IsNotOkStatus(err, http.StatusInternalServerError))
	assert.Equal(t, "Response not okay: 500 - Internal Server Error", err.Error())

	carried, ok := ResponseFromError(err)
	require.True(t, ok)
	assert.Equal(t, `{"error":"boom"}`, carried.Text())
	assert.Equal(t, "boom", carried.ErrorMessage())

	assert.Equal(t, 2, transport.calls())
	assert.Len(t, fakeLog.eventsByLevel("warn"), 2)
}

func TestSummonNotOkReturnedWithoutRetryUntilOkay(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusNotFound, "missing"),
	}}
	c, fakeLog := newTestClient(t, transport)

	resp, err := c.Summon(context.Background(), testAdminURL)

	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "Not Found", resp.Status)
	assert.Equal(t, 1, transport.calls())
	assert.Empty(t, fakeLog.eventsByLevel("warn"))
}

func TestSummonAlwaysMakesOneAttempt(t *testing.T) {
	for _, attempts := range []int{0, -3} {
		t.Run(fmt.Sprint(attempts), func(t *testing.T) {
			transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
				fail(errors.New("down")),
			}}
			c, fakeLog := newTestClient(t, transport)

			_, err := c.Summon(context.Background(), testAdminURL, WithAttempts(attempts))

			require.Error(t, err)
			assert.True(t, IsErrorType(err, NetworkError))
			assert.Equal(t, 1, transport.calls())
			assert.Len(t, fakeLog.eventsByLevel("warn"), 1)
		})
	}
}

func TestSummonPredicate(t *testing.T) {
	t.Run("refusal stops after the observer ran", func(t *testing.T) {
		transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
			fail(errors.New("down")),
		}}
		c, fakeLog := newTestClient(t, transport)

		_, err := c.Summon(context.Background(), testAdminURL,
			WithAttempts(5),
			WithRetryPredicate(func(error, int) bool { return false }),
		)

		require.Error(t, err)
		assert.Equal(t, 1, transport.calls())
		assert.Len(t, fakeLog.eventsByLevel("warn"), 1)
	})

	t.Run("receives failed attempt numbers", func(t *testing.T) {
		transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
			respond(http.StatusServiceUnavailable, ""),
		}}
		c, _ := newTestClient(t, transport)

		var seen []int
		_, err := c.Summon(context.Background(), testAdminURL,
			WithRetryUntilOkay(true),
			WithAttempts(3),
			WithRetryPredicate(func(err error, attempt int) bool {
				assert.True(t, IsNotOkStatus(err, http.StatusServiceUnavailable))
				seen = append(seen, attempt)
				return true
			}),
		)

		require.Error(t, err)
		assert.Equal(t, 3, transport.calls())
		// the final failure is offered to the predicate as well
		assert.Equal(t, []int{1, 2, 3}, seen)
	})

	t.Run("validation failures are never retried", func(t *testing.T) {
		transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
			respond(http.StatusOK, ""),
		}}
		c, _ := newTestClient(t, transport)

		_, err := c.Summon(context.Background(), "http://[::1", WithAttempts(3))

		require.Error(t, err)
		assert.True(t, IsErrorType(err, ValidationError))
		assert.Equal(t, 0, transport.calls())
	})
}

func TestSummonPerAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	fakeLog := &fakeLogger{}
	c := NewBuilder(fakeLog).
		WithTransport(server.Client()).
		WithOptions(WithStartingDelay(time.Millisecond)).
		Build()

	start := time.Now()
	_, err := c.Summon(context.Background(), server.URL, WithTimeout(30*time.Millisecond), WithAttempts(2))

	require.Error(t, err)
	assert.True(t, IsErrorType(err, TimeoutError))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, fakeLog.eventsByLevel("warn"), 2)
}

func TestSummonTimeoutDeadline(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"zero timeout installs no deadline", 0, false},
		{"positive timeout installs a deadline", time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hasDeadline bool
			transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
				func(req *http.Request) (*http.Response, error) {
					_, hasDeadline = req.Context().Deadline()
					return respond(http.StatusOK, "")(req)
				},
			}}
			c, _ := newTestClient(t, transport)

			_, err := c.Summon(context.Background(), testAdminURL, WithTimeout(tt.timeout))

			require.NoError(t, err)
			assert.Equal(t, tt.wantDeadline, hasDeadline)
		})
	}
}

func TestSummonParentCancellationIsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			cancel()
			return nil, req.Context().Err()
		},
	}}
	c, _ := newTestClient(t, transport)

	_, err := c.Summon(ctx, testAdminURL, WithAttempts(5))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, transport.calls())
}

func TestSummonCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, ""),
	}}
	c, _ := newTestClient(t, transport)

	_, err := c.Summon(ctx, testAdminURL)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, transport.calls())
}

func TestSummonHTTPRequestKeepsRepeatedHeaders(t *testing.T) {
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testAdminURL, nil)
	require.NoError(t, err)
	httpReq.Header.Add("Accept", "application/json")
	httpReq.Header.Add("Accept", "text/plain")
	httpReq.Header.Add("Cookie", "a=1")
	httpReq.Header.Add("Cookie", "b=2")

	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, ""),
	}}
	c, _ := newTestClient(t, transport)

	_, err = c.Summon(context.Background(), httpReq)

	require.NoError(t, err)
	sent := transport.requests[0]
	assert.Equal(t, "application/json, text/plain", sent.Header.Get("Accept"))
	assert.Equal(t, "a=1; b=2", sent.Header.Get("Cookie"))
	assert.Equal(t, []string{"application/json", "text/plain"}, httpReq.Header.Values("Accept"))
}

func TestSummonTargets(t *testing.T) {
	parsed, err := url.Parse(testAdminURL)
	require.NoError(t, err)

	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, testAdminURL, strings.NewReader("payload"))
	require.NoError(t, err)
	httpReq.Header.Set("X-Source", "ci")

	tests := []struct {
		name       string
		target     any
		wantMethod string
		wantBody   string
		wantHeader string
	}{
		{"string", testAdminURL, http.MethodGet, "", ""},
		{"url pointer", parsed, http.MethodGet, "", ""},
		{"url value", *parsed, http.MethodGet, "", ""},
		{"descriptor", &Request{URL: testAdminURL, Method: http.MethodPut, Body: []byte("payload"), Headers: map[string]string{"X-Source": "ci"}}, http.MethodPut, "payload", "ci"},
		{"http request", httpReq, http.MethodPost, "payload", "ci"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
				respond(http.StatusOK, ""),
			}}
			c, _ := newTestClient(t, transport)

			_, err := c.Summon(context.Background(), tt.target)

			require.NoError(t, err)
			require.Equal(t, 1, transport.calls())
			sent := transport.requests[0]
			assert.Equal(t, testAdminURL, sent.URL.String())
			assert.Equal(t, tt.wantMethod, sent.Method)
			assert.Equal(t, tt.wantBody, transport.bodies[0])
			assert.Equal(t, tt.wantHeader, sent.Header.Get("X-Source"))
		})
	}
}

func TestSummonRejectsUnsupportedTargets(t *testing.T) {
	for _, target := range []any{42, "", (*url.URL)(nil), &Request{}, nil} {
		transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
			respond(http.StatusOK, ""),
		}}
		c, fakeLog := newTestClient(t, transport)

		_, err := c.Summon(context.Background(), target)

		assert.True(t, IsErrorType(err, ValidationError), "target %#v", target)
		assert.Equal(t, 0, transport.calls())
		assert.Empty(t, fakeLog.events)
	}
}

func TestSummonReplaysBodyOnEveryAttempt(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		fail(errors.New("reset")),
		respond(http.StatusNoContent, ""),
	}}
	c, _ := newTestClient(t, transport)

	_, err := c.Put(context.Background(), testAdminURL, []byte(`{"partialUpdate":true}`))

	require.NoError(t, err)
	require.Equal(t, 2, transport.calls())
	assert.Equal(t, `{"partialUpdate":true}`, transport.bodies[0])
	assert.Equal(t, `{"partialUpdate":true}`, transport.bodies[1])
	assert.Equal(t, http.MethodPut, transport.requests[1].Method)
}

func TestSummonRequestHeaders(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		fail(errors.New("reset")),
		respond(http.StatusOK, ""),
	}}
	fakeLog := &fakeLogger{}
	c := NewBuilder(fakeLog).
		WithTransport(transport).
		WithDefaultHeader("content-type", testContentType).
		WithOptions(WithStartingDelay(0)).
		Build()

	ctx := trace.WithTraceID(context.Background(), "run-42")
	_, err := c.Summon(ctx, testAdminURL, WithBearerToken("tkn"), WithCache(CacheNoStore))

	require.NoError(t, err)
	for _, req := range transport.requests {
		assert.Equal(t, "run-42", req.Header.Get(trace.HeaderXRequestID))
		assert.Equal(t, "Bearer tkn", req.Header.Get("Authorization"))
		assert.Equal(t, testContentType, req.Header.Get("Content-Type"))
		assert.Equal(t, "no-store", req.Header.Get("Cache-Control"))
	}
}

func TestSummonGeneratesOneRequestIDPerCall(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		fail(errors.New("reset")),
		respond(http.StatusOK, ""),
	}}
	c, _ := newTestClient(t, transport)

	_, err := c.Get(context.Background(), testAdminURL)

	require.NoError(t, err)
	first := transport.requests[0].Header.Get(trace.HeaderXRequestID)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, transport.requests[1].Header.Get(trace.HeaderXRequestID))
}

func TestSummonInterceptorFailureIsNotRetried(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, ""),
	}}
	c := NewBuilder(&fakeLogger{}).
		WithTransport(transport).
		WithRequestInterceptor(func(context.Context, *http.Request) error { return errors.New("signing failed") }).
		Build()

	_, err := c.Summon(context.Background(), testAdminURL)

	assert.True(t, IsErrorType(err, InterceptorError))
	assert.Equal(t, 0, transport.calls())
}

func TestSummonDelaysBetweenAttempts(t *testing.T) {
	transport := &scriptedTransport{steps: []func(*http.Request) (*http.Response, error){
		fail(errors.New("reset")),
		fail(errors.New("reset")),
		respond(http.StatusOK, ""),
	}}
	c, _ := newTestClient(t, transport)

	start := time.Now()
	_, err := c.Summon(context.Background(), testAdminURL,
		WithStartingDelay(20*time.Millisecond),
		WithTimeMultiple(2),
	)

	require.NoError(t, err)
	// 20ms before attempt 2, 40ms before attempt 3
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestBuilderDefaults(t *testing.T) {
	c := NewBuilder(&fakeLogger{}).
		WithTimeout(5*time.Second).
		WithRetryUntilOkay(true).
		WithBackoff(BackoffOptions{NumOfAttempts: 4}).
		WithBasicAuth("ci", "pw").
		Build().(*client)

	assert.Equal(t, 5*time.Second, c.config.Defaults.Timeout)
	assert.True(t, c.config.Defaults.RetryUntilOkay)
	assert.Equal(t, 4, c.config.Defaults.Backoff.NumOfAttempts)
	assert.Equal(t, DefaultStartingDelay, c.config.Defaults.Backoff.StartingDelay)
	assert.Equal(t, "ci", c.config.Defaults.Request.Auth.Username)
	assert.Equal(t, http.DefaultClient, c.config.Transport)
	assert.Len(t, c.config.RequestInterceptors, 2)
}
