package backoff

import (
	"time"
)

// Calculator computes retry delays using a configurable strategy. It
// centralizes backoff logic shared by the retry policy and the transport
// executor.
type Calculator struct {
	strategy Strategy
}

// NewCalculator creates a calculator with the given strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{strategy: strategy}
}

// Delay computes the backoff duration for the given attempt and parameters.
func (c *Calculator) Delay(attempt int, factor, max time.Duration) time.Duration {
	return c.strategy.Delay(attempt, factor, max)
}

// Strategy returns the strategy in use.
func (c *Calculator) Strategy() Strategy {
	return c.strategy
}

// Exponential returns a calculator with plain exponential backoff, the
// package default.
func Exponential() *Calculator {
	return NewCalculator(ExponentialStrategy{})
}

// ExponentialJitter returns a calculator with jittered exponential backoff.
func ExponentialJitter(fraction float64) *Calculator {
	return NewCalculator(ExponentialJitterStrategy{Fraction: fraction})
}
