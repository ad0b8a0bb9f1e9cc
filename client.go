package tangguh

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Client is a resilient outbound HTTP client. It orchestrates the plugin
// pipeline, circuit breaker and pooled transport into one logical call and
// always returns a Result: ordinary HTTP-level outcomes (any status) are
// successful Results, and only network faults, timeouts, breaker
// rejections, retry exhaustion and plugin bugs fail the Result. It is safe
// for concurrent use; in-flight requests share one connection pool, one
// breaker and one cache.
type Client struct {
	baseURL    *url.URL
	baseURLRaw string
	headers    http.Header
	timeout    time.Duration

	maxRetries      int
	backoffFactor   time.Duration
	maxBackoffDelay time.Duration
	jitterFraction  float64
	retryPolicy     RetryPolicy

	transportConfig TransportConfig
	transport       *Transport

	breaker *CircuitBreaker

	pipeline       pipeline
	plugins        []Plugin
	cachePlugin    *CachePlugin
	cacheKeyFunc   func(*Request) string
	cacheCondition CacheCondition

	limiter        *RateLimiter
	dedup          *deduplicator
	dedupCondition DeduplicationCondition

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for
// errors. An invalid client fails every call with a validation error
// instead of panicking.
func New(options ...Option) *Client {
	client := &Client{
		headers:         http.Header{},
		timeout:         30 * time.Second,
		maxRetries:      3,
		backoffFactor:   500 * time.Millisecond,
		maxBackoffDelay: 30 * time.Second,
		breaker:         NewCircuitBreaker(CircuitBreakerConfig{}),
		dedupCondition:  DefaultDeduplicationCondition,
		debug:           DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.retryPolicy == nil {
		if client.jitterFraction > 0 {
			client.retryPolicy = NewRetryPolicyWithJitter(
				client.maxRetries, client.backoffFactor, client.jitterFraction).
				WithMaxDelay(client.maxBackoffDelay)
		} else {
			client.retryPolicy = NewRetryPolicy(client.maxRetries, client.backoffFactor).
				WithMaxDelay(client.maxBackoffDelay)
		}
	}

	client.transport = NewTransport(
		client.transportConfig, client.retryPolicy, client.maxRetries, client.timeout)
	client.transport.metrics = client.metrics
	client.transport.logger = client.logger
	client.transport.debug = client.debug

	if client.cachePlugin != nil {
		client.cachePlugin.metrics = client.metrics
		if client.cacheKeyFunc != nil {
			client.cachePlugin.keyFunc = client.cacheKeyFunc
		}
		if client.cacheCondition != nil {
			client.cachePlugin.condition = client.cacheCondition
		}
	}

	// The cache plugin sits innermost so request-shaping plugins run first
	// and the stored key reflects the request that actually went out.
	client.pipeline.plugins = client.plugins
	if client.cachePlugin != nil {
		client.pipeline.plugins = append(client.pipeline.plugins, client.cachePlugin)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// CircuitBreaker exposes the breaker for inspection and manual reset.
func (c *Client) CircuitBreaker() *CircuitBreaker {
	return c.breaker
}

// CloseIdleConnections drops pooled idle connections.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// Get performs an HTTP GET.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodGet, path, opts...)
}

// Head performs an HTTP HEAD.
func (c *Client) Head(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodHead, path, opts...)
}

// Post performs an HTTP POST.
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodPost, path, opts...)
}

// Put performs an HTTP PUT.
func (c *Client) Put(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodPut, path, opts...)
}

// Patch performs an HTTP PATCH.
func (c *Client) Patch(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodPatch, path, opts...)
}

// Delete performs an HTTP DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodDelete, path, opts...)
}

// Options performs an HTTP OPTIONS.
func (c *Client) Options(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.Request(ctx, http.MethodOptions, path, opts...)
}

// Request builds a Request against the base URL and executes it.
func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) Result {
	req, err := c.newRequest(method, path, opts...)
	if err != nil {
		return Failure(err)
	}
	return c.Do(ctx, req)
}

// Do executes a prepared Request applying the full pipeline: rate limit
// gate, plugin before-hooks, breaker gate, transport retry loop, breaker
// recording per logical outcome, and after / on-error hooks.
func (c *Client) Do(ctx context.Context, req *Request) Result {
	if c.validationError != nil {
		return Failure(c.validationError)
	}

	start := time.Now()
	method := req.Method()
	endpoint := req.Endpoint()
	requestID := c.debug.requestID()

	if c.debug.on(c.logger) && c.debug.LogRequests {
		c.logger.Debug("starting request",
			"requestID", requestID, "method", method, "url", req.URL(), "endpoint", endpoint)
	}

	c.metrics.RecordRequestStart(method, endpoint)
	defer c.metrics.RecordRequestEnd(method, endpoint)

	if c.limiter != nil && !c.limiter.Allow() {
		if c.debug.on(c.logger) && c.debug.LogRateLimit {
			c.logger.Warn("rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
		}
		c.metrics.RecordRateLimited(method, endpoint)
		c.metrics.RecordError(ErrorTypeRateLimit, method, endpoint)
		return Failure(&ClientError{
			Type:      ErrorTypeRateLimit,
			Message:   "rate limit exceeded",
			RequestID: requestID,
			Method:    method,
			URL:       req.URL(),
			Endpoint:  endpoint,
			Timestamp: time.Now(),
		})
	}

	cur, terminal, err := c.pipeline.before(ctx, req)
	if err != nil {
		// Plugin bugs are fatal and bypass on-error hooks.
		c.metrics.RecordError(ErrorTypePlugin, method, endpoint)
		return Failure(err)
	}

	var result Result
	if terminal != nil {
		if c.debug.on(c.logger) && c.debug.LogCache {
			c.logger.Debug("pipeline short-circuit",
				"requestID", requestID, "method", method, "endpoint", endpoint)
		}
		result = Success(terminal)
	} else {
		result = c.execute(ctx, cur, requestID)
		if IsCircuitOpen(result.Err()) {
			c.metrics.RecordError(ErrorTypeCircuitOpen, method, endpoint)
			return result
		}
	}

	if result.IsFailure() {
		c.metrics.RecordError(errorType(result.Err()), method, endpoint)
		c.pipeline.onError(ctx, cur, result.Err())
		c.metrics.RecordRequest(method, endpoint, 0, time.Since(start))
		return result
	}

	resp, err := c.pipeline.after(ctx, cur, result.Response())
	if err != nil {
		c.metrics.RecordError(ErrorTypePlugin, method, endpoint)
		return Failure(err)
	}

	c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))
	return Success(resp)
}

// execute runs the breaker gate, the (optionally de-duplicated) transport
// call, and records exactly one logical outcome on the breaker. Waiters on
// a de-duplicated execution record nothing: the owner already did.
func (c *Client) execute(ctx context.Context, req *Request, requestID string) Result {
	run := func() Result {
		if !c.breaker.Allow() {
			if c.debug.on(c.logger) && c.debug.LogCircuit {
				c.logger.Warn("circuit breaker rejected request",
					"requestID", requestID, "endpoint", req.Endpoint(), "state", c.breaker.State().String())
			}
			return Failure(&ClientError{
				Type:      ErrorTypeCircuitOpen,
				Message:   "circuit breaker is open",
				Cause:     ErrCircuitOpen,
				RequestID: requestID,
				Method:    req.Method(),
				URL:       req.URL(),
				Endpoint:  req.Endpoint(),
				Timestamp: time.Now(),
			})
		}

		result := c.transport.Execute(ctx, req)
		c.recordOutcome(req, result, requestID)
		return result
	}

	if c.dedup == nil || !c.dedupCondition(req) {
		return run()
	}

	owned := false
	result := c.dedup.do(req.CacheKey(), func() Result {
		owned = true
		return run()
	})
	if !owned {
		c.metrics.RecordDeduplicationHit(req.Method(), req.Endpoint())
		if c.debug.on(c.logger) && c.debug.LogRequests {
			c.logger.Debug("request coalesced with in-flight execution",
				"requestID", requestID, "endpoint", req.Endpoint())
		}
		if result.IsSuccess() {
			result = Success(result.Response().clone())
		}
	}
	return result
}

// recordOutcome applies the breaker's failure classification to the final
// logical outcome: Result-level failures, HTTP >=500 and 429 count as
// failures; everything else (including ordinary 4xx) counts as success.
// Per-attempt failures inside the retry loop never reach the breaker.
func (c *Client) recordOutcome(req *Request, result Result, requestID string) {
	before := c.breaker.State()

	failed := result.IsFailure()
	if !failed {
		status := result.Response().StatusCode
		failed = status >= 500 || status == http.StatusTooManyRequests
	}

	if failed {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}

	after := c.breaker.State()
	c.metrics.RecordCircuitBreakerState("default", after)
	if before != StateOpen && after == StateOpen {
		c.metrics.RecordCircuitBreakerTrip("default")
		if c.debug.on(c.logger) && c.debug.LogCircuit {
			c.logger.Warn("circuit breaker tripped",
				"requestID", requestID, "endpoint", req.Endpoint())
		}
	}
}

func (c *Client) newRequest(method, pathOrURL string, opts ...RequestOption) (*Request, error) {
	ref, err := url.Parse(pathOrURL)
	if err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: "invalid request path",
			Cause:   err,
		}
	}

	target := pathOrURL
	if !ref.IsAbs() {
		if c.baseURL == nil {
			return nil, &ClientError{
				Type:    ErrorTypeValidation,
				Message: "relative path requires a base URL",
			}
		}
		target = c.baseURL.ResolveReference(ref).String()
	}

	all := make([]RequestOption, 0, len(opts)+1)
	if len(c.headers) > 0 {
		defaults := c.headers
		all = append(all, func(r *Request) {
			for k, vs := range defaults {
				for _, v := range vs {
					r.headers.Set(k, v)
				}
			}
		})
	}
	all = append(all, opts...)

	return NewRequest(method, target, all...)
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	return asClientError(err, &clientErr) && clientErr.Type == ErrorTypeCircuitOpen
}

func errorType(err error) string {
	var clientErr *ClientError
	if asClientError(err, &clientErr) {
		return clientErr.Type
	}
	return ErrorTypeConnection
}
