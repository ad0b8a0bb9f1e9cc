package tangguh

import (
	"sync"
	"testing"
	"time"
)

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("expected default FailureThreshold=5, got %d", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("expected default RecoveryTimeout=60s, got %v", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("expected default SuccessThreshold=2, got %d", cb.config.SuccessThreshold)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected initial state=closed, got %v", cb.State())
	}
}

func TestCircuitBreakerAllowClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if !cb.Allow() {
		t.Error("closed breaker must allow requests")
	}
}

func TestCircuitBreakerTripsAtFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed below threshold, got %v", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open at threshold, got %v", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker must reject requests")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if cb.FailureCount() != 0 {
		t.Errorf("expected failure count reset on success, got %d", cb.FailureCount())
	}

	// Failures are consecutive: the run starts over.
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after interleaved success, got %v", cb.State())
	}
}

func TestCircuitBreakerHalfOpenAfterRecoveryTimeout(t *testing.T) {
	current := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	})
	cb.now = func() time.Time { return current }

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	current = current.Add(29 * time.Second)
	if cb.Allow() {
		t.Error("expected rejection before the recovery timeout elapses")
	}

	current = current.Add(time.Second)
	if !cb.Allow() {
		t.Fatal("expected a probe to be admitted after the recovery timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("expected half-open, got %v", cb.State())
	}
}

func TestCircuitBreakerSingleProbeWhileHalfOpen(t *testing.T) {
	current := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 2,
	})
	cb.now = func() time.Time { return current }

	cb.RecordFailure()
	current = current.Add(time.Second)

	if !cb.Allow() {
		t.Fatal("expected the first call to transition to half-open and proceed")
	}
	// A concurrent second call in the same window must be rejected.
	if cb.Allow() {
		t.Error("expected the second call to be rejected while the probe is in flight")
	}

	// The probe outcome frees the slot for the next probe.
	cb.RecordSuccess()
	if !cb.Allow() {
		t.Error("expected the next probe to be admitted after the first completed")
	}
}

func TestCircuitBreakerClosesAtSuccessThreshold(t *testing.T) {
	current := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 2,
	})
	cb.now = func() time.Time { return current }

	cb.RecordFailure()
	current = current.Add(time.Second)

	if !cb.Allow() {
		t.Fatal("expected probe admission")
	}
	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open below success threshold, got %v", cb.State())
	}

	if !cb.Allow() {
		t.Fatal("expected second probe admission")
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed at success threshold, got %v", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Errorf("expected failure count reset to 0, got %d", cb.FailureCount())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	current := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: 1,
	})
	cb.now = func() time.Time { return current }

	cb.RecordFailure()
	openedAt := cb.openedAt

	current = current.Add(10 * time.Second)
	if !cb.Allow() {
		t.Fatal("expected probe admission")
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected reopened breaker, got %v", cb.State())
	}
	if !cb.openedAt.After(openedAt) {
		t.Error("expected openedAt to be reset on half-open failure")
	}

	// The recovery window restarted: still rejecting.
	current = current.Add(9 * time.Second)
	if cb.Allow() {
		t.Error("expected rejection inside the restarted recovery window")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after Reset, got %v", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Errorf("expected cleared counters after Reset, got %d", cb.FailureCount())
	}
	if !cb.Allow() {
		t.Error("expected reset breaker to allow requests")
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Millisecond,
		SuccessThreshold: 1,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	current := time.Now()
	cb.now = func() time.Time { return current }

	cb.RecordFailure()
	current = current.Add(time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerConcurrentRecordings(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 50})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cb.RecordFailure()
				cb.RecordSuccess()
				cb.Allow()
			}
		}()
	}
	wg.Wait()

	// Every failure was followed by a success in each goroutine; with the
	// mutex serializing recordings the breaker must have ended closed or
	// open but never in a corrupted state.
	if s := cb.State(); s != StateClosed && s != StateOpen {
		t.Errorf("unexpected terminal state %v", s)
	}
}

func TestCircuitStateString(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" {
		t.Error("unexpected state names")
	}
	if CircuitState(99).String() != "unknown" {
		t.Error("expected unknown for out-of-range state")
	}
}
