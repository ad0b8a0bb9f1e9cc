package tangguh

import (
	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket gate applied before any other reliability
// layer. A rejected call fails immediately with ErrRateLimited and has no
// side effects: no hooks run, nothing is recorded on the breaker.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows requestsPerSecond sustained throughput with the
// given burst capacity.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Tokens reports the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Limit returns the configured sustained rate.
func (rl *RateLimiter) Limit() float64 {
	return float64(rl.limiter.Limit())
}

// Burst returns the configured burst capacity.
func (rl *RateLimiter) Burst() int {
	return rl.limiter.Burst()
}
