// Package backoff computes the wait between retry attempts of a failed task.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Kind selects a delay algorithm.
type Kind int

const (
	// Exponential doubles the delay on every retry.
	Exponential Kind = iota
	// Jittered is Exponential scaled by a random factor in [1-jitter, 1+jitter].
	Jittered
	// Decorrelated picks uniformly from [initial, 3*previous], as described in
	// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
	Decorrelated
)

func (k Kind) String() string {
	switch k {
	case Exponential:
		return "exponential"
	case Jittered:
		return "jittered"
	case Decorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}

// shifts beyond this overflow time.Duration for any sane initial delay
const maxShift = 62

// Strategy returns the delay before retry number attempt (0 = first retry).
// prev is the delay returned for the previous retry of the same task, or 0.
// Implementations are stateless and safe for concurrent use.
type Strategy interface {
	Delay(attempt int, prev time.Duration) time.Duration
}

// New builds a Strategy. maxDelay caps every delay; jitter is clamped to [0, 1]
// and only used by Jittered.
func New(kind Kind, initial, maxDelay time.Duration, jitter float64) Strategy {
	if maxDelay < initial {
		maxDelay = initial
	}

	switch kind {
	case Jittered:
		return jittered{initial: initial, max: maxDelay, factor: clamp(jitter, 0, 1)}
	case Decorrelated:
		return decorrelated{initial: initial, max: maxDelay}
	default:
		return exponential{initial: initial, max: maxDelay}
	}
}

type exponential struct {
	initial, max time.Duration
}

func (e exponential) Delay(attempt int, _ time.Duration) time.Duration {
	return exponentialDelay(attempt, e.initial, e.max)
}

type jittered struct {
	initial, max time.Duration
	factor       float64
}

func (j jittered) Delay(attempt int, _ time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	base := exponentialDelay(attempt, j.initial, j.max)
	// #nosec G404 -- jitter does not need a cryptographic source
	scaled := time.Duration(float64(base) * (1 + (rand.Float64()*2-1)*j.factor))
	return clamp(scaled, 0, j.max)
}

type decorrelated struct {
	initial, max time.Duration
}

func (d decorrelated) Delay(attempt int, prev time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt == 0 || prev < d.initial {
		return d.initial
	}

	upper := min(3*prev, d.max)
	span := upper - d.initial
	if span <= 0 {
		return d.initial
	}
	// #nosec G404 -- jitter does not need a cryptographic source
	return d.initial + time.Duration(rand.Int64N(int64(span)))
}

func exponentialDelay(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt >= maxShift {
		return maxDelay
	}

	delay := initial << uint(attempt)
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}

func clamp[N int | int64 | float64 | time.Duration](v, lo, hi N) N {
	return max(lo, min(v, hi))
}
