package tangguh

import (
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive logical failures in
	// closed state that trips the breaker. Default 5.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before admitting
	// a probe. Default 60s.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of half-open probe successes needed
	// to close the breaker. Default 2.
	SuccessThreshold int
	// OnStateChange, if set, is invoked on every transition. It is called
	// while the breaker's lock is held and must not call back into the
	// breaker.
	OnStateChange func(from, to CircuitState)
}

// CircuitBreaker is a failure-tracking state machine that fails fast when
// the downstream target is repeatedly failing. Recordings are serialized
// under a mutex so state transitions are linearizable: concurrent
// success/failure recordings observe a single global order and cannot
// double-trip or miss a reset.
//
// While half-open, at most one probe is in flight at a time; concurrent
// calls in the same window are rejected to avoid a thundering herd.
type CircuitBreaker struct {
	mu        sync.Mutex
	config    CircuitBreakerConfig
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
	probing   bool

	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker in the closed state,
// applying defaults for unset config fields.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. Open with the recovery timeout
// elapsed transitions to half-open and admits exactly one probe; open
// otherwise rejects without a network attempt. Half-open admits one probe
// at a time. Closed always allows.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.config.RecoveryTimeout {
			cb.transition(StateHalfOpen)
			cb.successes = 0
			cb.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess records one successful logical outcome. Closed resets the
// failure count; half-open counts probe successes and closes the breaker
// once SuccessThreshold is reached, resetting all counters.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probing = false
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
			cb.failures = 0
			cb.successes = 0
		}
	case StateOpen:
		// A success cannot be observed while open; nothing to do.
	}
}

// RecordFailure records one failed logical outcome. Closed trips to open
// once FailureThreshold consecutive failures accumulate; half-open re-opens
// immediately and restarts the recovery window.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.probing = false
		cb.successes = 0
		cb.openedAt = cb.now()
		cb.transition(StateOpen)
	case StateOpen:
		// Already open; the recovery window is not extended.
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the consecutive failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually forces the breaker back to closed with all counters cleared.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	cb.successes = 0
	cb.probing = false
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}
