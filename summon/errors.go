package summon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies a failed attempt.
type ErrorType int

const (
	// NetworkError indicates the transport failed before a response arrived
	NetworkError ErrorType = iota + 1
	// TimeoutError indicates the per-attempt timeout elapsed
	TimeoutError
	// NotOkError indicates a non-2xx response while RetryUntilOkay is set
	NotOkError
	// ValidationError indicates the target or request could not be built
	ValidationError
	// InterceptorError indicates a request or response interceptor failed
	InterceptorError
)

func (t ErrorType) String() string {
	switch t {
	case NetworkError:
		return "network"
	case TimeoutError:
		return "timeout"
	case NotOkError:
		return "not_ok"
	case ValidationError:
		return "validation"
	case InterceptorError:
		return "interceptor"
	default:
		return "unknown"
	}
}

// ClientError is implemented by every error the dispatcher produces itself.
type ClientError interface {
	error
	Type() ErrorType
}

type networkError struct {
	message string
	cause   error
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(message string, cause error) ClientError {
	return &networkError{message: message, cause: cause}
}

func (e *networkError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.cause)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }
func (e *networkError) Unwrap() error   { return e.cause }

type timeoutError struct {
	message string
	timeout time.Duration
	cause   error
}

// NewTimeoutError reports an attempt that was cancelled after timeout. A nil
// cause is recorded as context.DeadlineExceeded.
func NewTimeoutError(message string, timeout time.Duration, cause error) ClientError {
	if cause == nil {
		cause = context.DeadlineExceeded
	}
	return &timeoutError{message: message, timeout: timeout, cause: cause}
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (after %s)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType        { return TimeoutError }
func (e *timeoutError) Timeout() time.Duration { return e.timeout }

// Unwrap exposes context.DeadlineExceeded alongside the transport's own error.
func (e *timeoutError) Unwrap() []error {
	if errors.Is(e.cause, context.DeadlineExceeded) {
		return []error{e.cause}
	}
	return []error{e.cause, context.DeadlineExceeded}
}

type notOkError struct {
	resp *Response
}

// NewNotOkError reports a completed exchange whose status is outside 2xx.
func NewNotOkError(resp *Response) ClientError {
	return &notOkError{resp: resp}
}

func (e *notOkError) Error() string {
	if e.resp == nil {
		return "Response not okay"
	}
	return fmt.Sprintf("Response not okay: %d - %s", e.resp.StatusCode, e.resp.Status)
}

func (e *notOkError) Type() ErrorType     { return NotOkError }
func (e *notOkError) Response() *Response { return e.resp }

func (e *notOkError) StatusCode() int {
	if e.resp == nil {
		return 0
	}
	return e.resp.StatusCode
}

type validationError struct {
	message string
	field   string
}

// NewValidationError reports a request that could not be dispatched. field
// may be empty.
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return "validation error: " + e.message
}

func (e *validationError) Type() ErrorType { return ValidationError }
func (e *validationError) Field() string   { return e.field }

type interceptorError struct {
	message string
	stage   string
	cause   error
}

// NewInterceptorError wraps a failure raised by an interceptor. stage is
// "request" or "response".
func NewInterceptorError(message, stage string, cause error) ClientError {
	return &interceptorError{message: message, stage: stage, cause: cause}
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s [%s]: %v", e.message, e.stage, e.cause)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }
func (e *interceptorError) Unwrap() error   { return e.cause }

// IsErrorType reports whether err, or anything it wraps, is a ClientError of type t.
func IsErrorType(err error, t ErrorType) bool {
	var ce ClientError
	if errors.As(err, &ce) {
		return ce.Type() == t
	}
	return false
}

// IsNotOkStatus reports whether err carries a response with the given status.
func IsNotOkStatus(err error, status int) bool {
	resp, ok := ResponseFromError(err)
	return ok && resp.StatusCode == status
}

// IsSuccessStatus reports whether status is in the 2xx range.
func IsSuccessStatus(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// ResponseFromError returns the response attached to a NotOk failure.
func ResponseFromError(err error) (*Response, bool) {
	var carrier interface{ Response() *Response }
	if errors.As(err, &carrier) && carrier.Response() != nil {
		return carrier.Response(), true
	}
	return nil, false
}

// Retryable reports whether a failure may be attempted again. Validation and
// interceptor failures are deterministic, so they end the call immediately.
func Retryable(err error) bool {
	var ce ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type() {
	case NetworkError, TimeoutError, NotOkError:
		return true
	default:
		return false
	}
}

// errorTypeOf names the class of err for logs and metric attributes.
func errorTypeOf(err error) string {
	var ce ClientError
	if errors.As(err, &ce) {
		return ce.Type().String()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline"
	}
	return "unknown"
}
