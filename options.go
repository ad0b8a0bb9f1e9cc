package tangguh

import (
	"fmt"
	"net/url"
	"time"
)

// Option represents a client configuration option.
type Option func(*Client)

// WithBaseURL sets the absolute base URL that relative request paths are
// resolved against. Must be http or https.
func WithBaseURL(rawURL string) Option {
	return func(c *Client) {
		c.baseURLRaw = rawURL
		u, err := url.Parse(rawURL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			c.baseURL = nil
			return
		}
		c.baseURL = u
	}
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries after the initial
// attempt; a logical call performs at most maxRetries+1 physical attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackoffFactor sets the base factor of the exponential backoff
// (delay = factor * 2^attempt).
func WithBackoffFactor(d time.Duration) Option {
	return func(c *Client) {
		c.backoffFactor = d
	}
}

// WithMaxBackoffDelay caps individual backoff delays.
func WithMaxBackoffDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoffDelay = d
	}
}

// WithRetryJitter adds uniform jitter of up to fraction (0..1] of the base
// delay to every backoff. Off by default.
func WithRetryJitter(fraction float64) Option {
	return func(c *Client) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		c.jitterFraction = fraction
	}
}

// WithRetryPolicy replaces the default retry policy entirely.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithDefaultHeader sets a header applied to every request; per-request
// options override it.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithDefaultHeaders merges a header map applied to every request.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithVerifySSL toggles TLS certificate verification (default true).
func WithVerifySSL(verify bool) Option {
	return func(c *Client) {
		c.transportConfig.InsecureSkipVerify = !verify
	}
}

// WithFollowRedirects toggles redirect following (default true).
func WithFollowRedirects(follow bool) Option {
	return func(c *Client) {
		c.transportConfig.DisableRedirects = !follow
	}
}

// WithConnectionPool sizes the connection pool: total connections per
// host, idle keep-alive connections, and idle expiry.
func WithConnectionPool(maxConnections, maxKeepalive int, keepaliveExpiry time.Duration) Option {
	return func(c *Client) {
		c.transportConfig.MaxConnections = maxConnections
		c.transportConfig.MaxKeepaliveConnections = maxKeepalive
		c.transportConfig.KeepaliveExpiry = keepaliveExpiry
	}
}

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.transportConfig.ConnectTimeout = d
	}
}

// WithResponseHeaderTimeout bounds the wait for response headers.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.transportConfig.ResponseHeaderTimeout = d
	}
}

// WithCircuitBreaker sets the circuit breaker configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(config)
	}
}

// WithCache enables response caching backed by a bounded in-memory store.
func WithCache(ttl time.Duration, maxSize int) Option {
	return func(c *Client) {
		c.cachePlugin = NewCachePlugin(NewMemoryCache(maxSize), ttl)
	}
}

// WithCustomCache enables response caching over a caller-supplied store.
func WithCustomCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cachePlugin = NewCachePlugin(cache, ttl)
	}
}

// WithCacheKeyFunc sets a custom cache key function.
func WithCacheKeyFunc(fn func(*Request) string) Option {
	return func(c *Client) {
		c.cacheKeyFunc = fn
	}
}

// WithCacheCondition sets a custom cache condition function.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithPlugins registers plugins. Before-hooks run in registration order;
// after-hooks and on-error hooks run in reverse, so the first registered
// plugin is outermost. The cache plugin, when enabled, is always innermost.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *Client) {
		c.plugins = append(c.plugins, plugins...)
	}
}

// WithRateLimit enables client-side rate limiting.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = NewRateLimiter(requestsPerSecond, burst)
	}
}

// WithDeduplication coalesces concurrent identical GET/HEAD requests onto
// one physical execution.
func WithDeduplication() Option {
	return func(c *Client) {
		c.dedup = &deduplicator{}
	}
}

// WithDeduplicationCondition sets which requests may be coalesced.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the structured logger used for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var errs []string

	errs = append(errs, c.validateRetryConfig()...)
	errs = append(errs, c.validateBaseURL()...)
	errs = append(errs, c.validateRateLimiterConfig()...)
	errs = append(errs, c.validateCacheConfig()...)
	errs = append(errs, c.validateCircuitBreakerConfig()...)
	errs = append(errs, c.validateDebugConfig()...)
	errs = append(errs, c.validateExtremeValues()...)

	if len(errs) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errs),
		}
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var errs []string

	if c.maxRetries < 0 {
		errs = append(errs, "maxRetries must be non-negative")
	}
	if c.backoffFactor <= 0 {
		errs = append(errs, "backoffFactor must be positive")
	}
	if c.maxBackoffDelay < c.backoffFactor {
		errs = append(errs, "maxBackoffDelay must be greater than or equal to backoffFactor")
	}
	if c.timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return errs
}

func (c *Client) validateBaseURL() []string {
	if c.baseURLRaw != "" && c.baseURL == nil {
		return []string{fmt.Sprintf("baseURL %q must be an absolute http/https URL", c.baseURLRaw)}
	}
	return nil
}

func (c *Client) validateRateLimiterConfig() []string {
	var errs []string

	if c.limiter != nil {
		if c.limiter.Limit() <= 0 {
			errs = append(errs, "rate limit must be positive")
		}
		if c.limiter.Burst() <= 0 {
			errs = append(errs, "rate limit burst must be positive")
		}
	}

	return errs
}

func (c *Client) validateCacheConfig() []string {
	var errs []string

	if c.cachePlugin != nil && c.cachePlugin.ttl <= 0 {
		errs = append(errs, "cache TTL must be positive when cache is enabled")
	}

	return errs
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var errs []string

	if c.breaker != nil {
		if c.breaker.config.FailureThreshold <= 0 {
			errs = append(errs, "circuitBreaker FailureThreshold must be positive")
		}
		if c.breaker.config.RecoveryTimeout <= 0 {
			errs = append(errs, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.breaker.config.SuccessThreshold <= 0 {
			errs = append(errs, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return errs
}

func (c *Client) validateDebugConfig() []string {
	var errs []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errs = append(errs, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errs = append(errs, "logger must be set when debug is enabled")
		}
	}

	return errs
}

func (c *Client) validateExtremeValues() []string {
	var errs []string

	if c.maxRetries > 100 {
		errs = append(errs, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.backoffFactor > 10*time.Minute {
		errs = append(errs, "backoffFactor > 10m may cause very long delays")
	}
	if c.maxBackoffDelay > time.Hour {
		errs = append(errs, "maxBackoffDelay > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		errs = append(errs, "timeout > 10m may cause requests to hang for too long")
	}
	if c.cachePlugin != nil && c.cachePlugin.ttl > 24*time.Hour {
		errs = append(errs, "cache TTL > 24h may cause stale data issues")
	}

	return errs
}
