package tangguh

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	internalbackoff "github.com/tangguhio/tangguh/internal/backoff"
)

// RetryPolicy decides whether an attempt outcome is retryable and how long
// to wait before the next attempt.
type RetryPolicy interface {
	// ShouldRetry reports whether the outcome of the given zero-based
	// attempt warrants another attempt. Exactly one of resp and err is set.
	ShouldRetry(resp *Response, err error, attempt int) bool
	// ComputeDelay returns the backoff before the retry that follows the
	// given zero-based attempt.
	ComputeDelay(attempt int) time.Duration
}

// Statuses treated as retryable: request timeout, throttling, and
// transient upstream failures.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return retryableStatuses[code]
}

// DefaultRetryPolicy retries network errors, timeouts and retryable HTTP
// statuses with exponential backoff: factor * 2^attempt, capped at
// maxDelay.
//
// Delays carry no jitter by default so that retry timing is exactly
// predictable; when many clients share one target, enable jitter with
// WithRetryJitter to decorrelate their retries.
type DefaultRetryPolicy struct {
	maxRetries int
	factor     time.Duration
	maxDelay   time.Duration
	calc       *internalbackoff.Calculator
}

// NewRetryPolicy creates the default policy: at most maxRetries retries
// after the initial attempt, exponential backoff with the given factor and
// no jitter.
func NewRetryPolicy(maxRetries int, factor time.Duration) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		maxRetries: maxRetries,
		factor:     factor,
		maxDelay:   30 * time.Second,
		calc:       internalbackoff.Exponential(),
	}
}

// NewRetryPolicyWithJitter creates the default policy with uniform jitter
// of up to fraction of the base delay added to every backoff.
func NewRetryPolicyWithJitter(maxRetries int, factor time.Duration, fraction float64) *DefaultRetryPolicy {
	p := NewRetryPolicy(maxRetries, factor)
	p.calc = internalbackoff.ExponentialJitter(fraction)
	return p
}

// WithMaxDelay caps individual backoff delays.
func (p *DefaultRetryPolicy) WithMaxDelay(max time.Duration) *DefaultRetryPolicy {
	p.maxDelay = max
	return p
}

// MaxRetries returns the retry budget after the initial attempt.
func (p *DefaultRetryPolicy) MaxRetries() int { return p.maxRetries }

// ShouldRetry implements the RetryPolicy interface. Network errors and
// timeouts are retryable; caller cancellation is not. For responses, only
// the retryable status set (408, 429, 500, 502, 503, 504) warrants a
// retry — any other status, including ordinary 4xx, is terminal.
func (p *DefaultRetryPolicy) ShouldRetry(resp *Response, err error, attempt int) bool {
	if attempt >= p.maxRetries {
		return false
	}

	if err != nil {
		// The caller giving up is terminal, whatever the wrapped error.
		if errors.Is(err, context.Canceled) {
			return false
		}
		return true
	}

	if resp != nil {
		return RetryableStatus(resp.StatusCode)
	}

	return false
}

// ComputeDelay implements the RetryPolicy interface.
func (p *DefaultRetryPolicy) ComputeDelay(attempt int) time.Duration {
	return p.calc.Delay(attempt, p.factor, p.maxDelay)
}

// delayFor returns the backoff before the retry following attempt,
// honoring a Retry-After header on throttling and unavailability
// responses when one is present.
func delayFor(policy RetryPolicy, resp *Response, attempt int) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusServiceUnavailable) {
		if d := parseRetryAfter(resp.Header("Retry-After")); d > 0 {
			return d
		}
	}
	return policy.ComputeDelay(attempt)
}

// parseRetryAfter parses the Retry-After header value. It supports both
// delay-seconds and HTTP-date formats, capping the result at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}
