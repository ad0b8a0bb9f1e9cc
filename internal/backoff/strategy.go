package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Delay returns the backoff duration before the retry following the
	// given zero-based attempt.
	Delay(attempt int, factor, max time.Duration) time.Duration
}

// ExponentialStrategy implements plain exponential backoff:
// factor * 2^attempt, capped at max. It applies no jitter so delays are
// exactly predictable; callers that need herd protection should use
// ExponentialJitterStrategy instead.
type ExponentialStrategy struct{}

// Delay implements the Strategy interface.
func (s ExponentialStrategy) Delay(attempt int, factor, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(factor) * Pow(2, attempt))
	if max > 0 && (delay < 0 || delay > max) {
		delay = max
	}
	return delay
}

// ExponentialJitterStrategy implements exponential backoff with uniform
// jitter: the base exponential delay plus up to Fraction of it, drawn
// uniformly at random.
type ExponentialJitterStrategy struct {
	// Fraction of the base delay used as the jitter bound, clamped to [0, 1].
	Fraction float64
}

// Delay implements the Strategy interface.
func (s ExponentialJitterStrategy) Delay(attempt int, factor, max time.Duration) time.Duration {
	base := ExponentialStrategy{}.Delay(attempt, factor, max)

	fraction := s.Fraction
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction == 0 {
		return base
	}

	jitter := time.Duration(float64(base) * fraction * rand.Float64())
	if max > 0 && base+jitter > max {
		return max
	}
	return base + jitter
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
