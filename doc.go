// Package tangguh provides a resilient outbound HTTP client for
// service-to-service calls, built from composable reliability primitives:
//
//   - Retries with exponential backoff (no jitter by default, opt-in)
//   - Circuit breaker (closed / open / half-open, single recovery probe)
//   - In-memory TTL response cache with FIFO eviction, wired as a plugin
//   - Plugin pipeline for cross-cutting concerns (before / after / on-error
//     hooks composed as nested middleware)
//   - Request de-duplication (merges concurrent identical in-flight requests)
//   - Client-side rate limiting (token bucket)
//   - Prometheus metrics and structured debug logging (zerolog adapter)
//
// Design goals:
//   - Small surface area: functional options or a YAML config configure everything
//   - Explicit outcomes: every call returns a Result; ordinary HTTP error
//     statuses are successful Results carrying that status, never errors
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied plugins and pluggable cache / metrics
//
// Typical usage:
//
//	client := tangguh.New(
//	    tangguh.WithBaseURL("https://api.example.com"),
//	    tangguh.WithMaxRetries(3),
//	    tangguh.WithCache(5*time.Minute, 1000),
//	    tangguh.WithCircuitBreaker(tangguh.CircuitBreakerConfig{}),
//	    tangguh.WithRateLimit(50, 100),
//	)
//	res := client.Get(ctx, "/data")
//	if res.IsFailure() {
//	    // network / timeout / breaker / retry exhaustion
//	}
//	resp := res.Response()
//
// Only network faults, timeouts, breaker rejections and retry exhaustion
// produce failed Results; a 404 or 500 is a successful Result whose
// Response carries that status.
package tangguh
