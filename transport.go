package tangguh

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// TransportConfig controls the pooled connection layer and its per-phase
// timeouts. Zero values fall back to the documented defaults.
type TransportConfig struct {
	// MaxConnections caps total connections per host. Default 100.
	MaxConnections int
	// MaxKeepaliveConnections caps idle (keep-alive) connections per host.
	// Default 20.
	MaxKeepaliveConnections int
	// KeepaliveExpiry is how long an idle connection may linger in the
	// pool. Default 90s.
	KeepaliveExpiry time.Duration
	// ConnectTimeout bounds connection establishment. Default 10s.
	ConnectTimeout time.Duration
	// TLSHandshakeTimeout bounds the TLS handshake. Default 10s.
	TLSHandshakeTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is fully written. Zero means no bound beyond the request
	// timeout.
	ResponseHeaderTimeout time.Duration
	// VerifySSL disables certificate verification when false. Callers must
	// opt out explicitly via the InsecureSkipVerify field below being
	// derived from configuration; the default is to verify.
	InsecureSkipVerify bool
	// FollowRedirects controls redirect following. Default true; the
	// constructor only honors DisableRedirects.
	DisableRedirects bool
}

const maxResponseBodySize = 10 * 1024 * 1024

// Transport executes physical attempts against pooled connections and owns
// the retry loop of a logical call. It distinguishes connection
// establishment failures (no response obtained) from application-level
// error responses (a valid response with status >= 400): the former are
// Result-level failures after retries exhaust, the latter are successful
// Results carrying their status.
type Transport struct {
	client     *http.Client
	policy     RetryPolicy
	maxRetries int
	timeout    time.Duration

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig
}

// NewTransport builds a Transport with its own pooled http.Transport.
func NewTransport(cfg TransportConfig, policy RetryPolicy, maxRetries int, timeout time.Duration) *Transport {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 100
	}
	if cfg.MaxKeepaliveConnections <= 0 {
		cfg.MaxKeepaliveConnections = 20
	}
	if cfg.KeepaliveExpiry <= 0 {
		cfg.KeepaliveExpiry = 90 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.TLSHandshakeTimeout <= 0 {
		cfg.TLSHandshakeTimeout = 10 * time.Second
	}

	pooled := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxKeepaliveConnections,
		MaxIdleConnsPerHost:   cfg.MaxKeepaliveConnections,
		IdleConnTimeout:       cfg.KeepaliveExpiry,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}
	if cfg.InsecureSkipVerify {
		pooled.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicit opt-out
	}

	client := &http.Client{Transport: pooled}
	if cfg.DisableRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Transport{
		client:     client,
		policy:     policy,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

// Execute runs the full physical-attempt loop for one logical call:
// attempts 0..maxRetries inclusive, sleeping per the retry policy only
// before retries, never before the first attempt. Pending backoff sleeps
// are cancelled by ctx. The returned Result is a failure only for
// connection/timeout faults (after exhaustion) — never for an HTTP status.
func (t *Transport) Execute(ctx context.Context, req *Request) Result {
	start := time.Now()
	timeout := req.Timeout()
	if timeout <= 0 {
		timeout = t.timeout
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			if t.metrics != nil {
				t.metrics.RecordRetry(req.Method(), req.Endpoint(), attempt)
			}
			if t.debug.on(t.logger) && t.debug.LogRetries {
				t.logger.Info("retry attempt",
					"method", req.Method(), "endpoint", req.Endpoint(),
					"attempt", attempt, "maxRetries", t.maxRetries)
			}
		}

		resp, err := t.attempt(ctx, req, timeout)
		if err != nil {
			lastErr = err
			if t.policy.ShouldRetry(nil, err, attempt) {
				if sleepErr := t.sleep(ctx, delayFor(t.policy, nil, attempt)); sleepErr != nil {
					return Failure(t.wrapAttemptError(req, sleepErr, attempt+1))
				}
				continue
			}
			return Failure(t.terminalError(req, lastErr, attempt+1))
		}

		if t.policy.ShouldRetry(resp, nil, attempt) {
			if sleepErr := t.sleep(ctx, delayFor(t.policy, resp, attempt)); sleepErr != nil {
				return Failure(t.wrapAttemptError(req, sleepErr, attempt+1))
			}
			continue
		}

		resp.Attempts = attempt + 1
		resp.Elapsed = time.Since(start)
		return Success(resp)
	}

	// Unreachable: the loop always returns from within.
	return Failure(t.terminalError(req, lastErr, t.maxRetries+1))
}

// attempt performs one physical send and buffers the response body so the
// connection returns to the pool immediately.
func (t *Transport) attempt(ctx context.Context, req *Request, timeout time.Duration) (*Response, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := req.toHTTP(attemptCtx)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header.Clone(),
		Body:       body,
		Request:    req,
	}, nil
}

// sleep blocks for the backoff delay, aborting early when ctx is done so a
// cancelled caller never waits out a pending retry sleep.
func (t *Transport) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminalError wraps the final attempt error. Exhausted retries produce a
// retry-exhausted error carrying the classified last error and the attempt
// count; non-retryable faults (caller cancellation) surface directly.
func (t *Transport) terminalError(req *Request, err error, attempts int) error {
	classified := t.wrapAttemptError(req, err, attempts)
	if errors.Is(err, context.Canceled) {
		return classified
	}
	return &ClientError{
		Type:       ErrorTypeRetryExhausted,
		Message:    "all attempts failed",
		Cause:      classified,
		Method:     req.Method(),
		URL:        req.URL(),
		Endpoint:   req.Endpoint(),
		Attempts:   attempts,
		MaxRetries: t.maxRetries,
		Timestamp:  time.Now(),
	}
}

// wrapAttemptError classifies a physical attempt error into the package
// taxonomy: timeouts (deadline exceeded or net.Error timeouts) versus
// connection faults.
func (t *Transport) wrapAttemptError(req *Request, err error, attempts int) error {
	errType := ErrorTypeConnection
	message := "connection failed"

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		errType = ErrorTypeTimeout
		message = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		errType = ErrorTypeTimeout
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	}

	return &ClientError{
		Type:       errType,
		Message:    message,
		Cause:      err,
		Method:     req.Method(),
		URL:        req.URL(),
		Endpoint:   req.Endpoint(),
		Attempts:   attempts,
		MaxRetries: t.maxRetries,
		Timestamp:  time.Now(),
	}
}

// CloseIdleConnections drops pooled idle connections.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}
