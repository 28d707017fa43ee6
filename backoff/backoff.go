// Package backoff implements the delay strategies used between supervised
// task restarts.
package backoff

import "time"

// Strategy computes the delay that precedes the next attempt of a task,
// given the number of the attempt that just failed (1-indexed: the delay
// before attempt 2 is Duration(1)).
type Strategy interface {
	Duration(attempt int) time.Duration
}

// Fixed waits the same duration before every retry.
type Fixed time.Duration

func (f Fixed) Duration(attempt int) time.Duration { return time.Duration(f) }

// Linear grows the delay by Step for every additional attempt:
// Step*attempt.
type Linear struct {
	Step time.Duration
}

func (l Linear) Duration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return l.Step * time.Duration(attempt)
}

// Exponential doubles (or Factor-multiplies) the delay every attempt,
// starting at Initial and never exceeding Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	// Factor defaults to 2 when zero.
	Factor float64
}

func (e Exponential) Duration(attempt int) time.Duration {
	factor := e.Factor
	if factor == 0 {
		factor = 2
	}
	if attempt < 1 {
		attempt = 1
	}
	d := float64(e.Initial)
	for i := 1; i < attempt; i++ {
		d *= factor
		if e.Max > 0 && d > float64(e.Max) {
			d = float64(e.Max)
			break
		}
	}
	out := time.Duration(d)
	if e.Max > 0 && out > e.Max {
		out = e.Max
	}
	return out
}

// Fibonacci grows the delay along the Fibonacci sequence scaled by
// Initial: fib(1)=1, fib(2)=1, fib(3)=2, ...
type Fibonacci struct {
	Initial time.Duration
}

func (fb Fibonacci) Duration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return fb.Initial * time.Duration(fib(attempt))
}

func fib(n int) int64 {
	if n <= 2 {
		return 1
	}
	var a, b int64 = 1, 1
	for i := 3; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

// Custom adapts an arbitrary function into a Strategy.
type Custom func(attempt int) time.Duration

func (c Custom) Duration(attempt int) time.Duration { return c(attempt) }

// DefaultExponential is the restart backoff used by a task that does not
// declare its own strategy.
func DefaultExponential() Strategy {
	return Exponential{Initial: 2 * time.Second, Max: 60 * time.Second, Factor: 2}
}
