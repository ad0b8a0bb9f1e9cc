package tangguh

import (
	"errors"
	"fmt"
	"time"
)

// Error type discriminators carried by ClientError.Type.
const (
	// ErrorTypeConnection marks failures where no response was obtained
	// (dial errors, resets, broken pipes).
	ErrorTypeConnection = "Connection"

	// ErrorTypeTimeout marks phase or deadline timeouts.
	ErrorTypeTimeout = "Timeout"

	// ErrorTypeCircuitOpen marks requests rejected by the circuit breaker
	// before any network attempt.
	ErrorTypeCircuitOpen = "CircuitOpen"

	// ErrorTypeRetryExhausted marks requests that failed after the full
	// retry budget was spent; the last underlying error is the Cause.
	ErrorTypeRetryExhausted = "RetryExhausted"

	// ErrorTypeRateLimit marks requests rejected by the client-side rate limiter.
	ErrorTypeRateLimit = "RateLimit"

	// ErrorTypePlugin marks errors returned from plugin hooks. These are
	// programmer errors and are never swallowed.
	ErrorTypePlugin = "Plugin"

	// ErrorTypeValidation marks configuration or request construction errors.
	ErrorTypeValidation = "Validation"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("tangguh: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting.
	ErrRateLimited = errors.New("tangguh: rate limited")

	// ErrRetryExhausted is returned when every attempt of the retry loop failed.
	ErrRetryExhausted = errors.New("tangguh: retry exhausted")
)

// ClientError is the error type produced by the client. It carries the
// failure taxonomy (Type) plus request context for diagnostics.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Attempts   int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s (attempts %d/%d)", msg, e.Attempts, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is, and maps taxonomy types onto the
// package sentinels so errors.Is(err, ErrCircuitOpen) works on wrapped errors.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrCircuitOpen:
		return e.Type == ErrorTypeCircuitOpen
	case ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ErrRetryExhausted:
		return e.Type == ErrorTypeRetryExhausted
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsTransient determines if an error represents a transient failure that
// might succeed on retry. Returns true for connection errors, timeouts,
// breaker rejections, rate limiting and retry exhaustion; false for
// validation and plugin errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRetryExhausted) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeCircuitOpen,
			ErrorTypeRateLimit, ErrorTypeRetryExhausted:
			return true
		default:
			return false
		}
	}

	return false
}

// asClientError unwraps err into a *ClientError, if it is one.
func asClientError(err error, target **ClientError) bool {
	return errors.As(err, target)
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempts > 0 {
		info += fmt.Sprintf("Attempts: %d/%d\n", e.Attempts, e.MaxRetries+1)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
