// Package backoff computes delays between retry attempts of failed
// items. Delays grow exponentially from an initial value up to a cap,
// with optional jitter to keep concurrent retries from synchronizing.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

const maxShift = 63 // prevent overflow in delay calculation

// Strategy yields the delay to wait before a given retry attempt.
// attempt is 0-indexed: 0 is the delay before the first retry.
type Strategy interface {
	NextDelay(attempt int) time.Duration
}

// Exponential returns a strategy where the delay doubles each attempt:
// initial, 2*initial, 4*initial, ... capped at maxDelay.
func Exponential(initial, maxDelay time.Duration) Strategy {
	return &exponential{initial: initial, maxDelay: maxDelay}
}

type exponential struct {
	initial  time.Duration
	maxDelay time.Duration
}

func (e *exponential) NextDelay(attempt int) time.Duration {
	return expDelay(attempt, e.initial, e.maxDelay)
}

// Jittered wraps exponential growth with a random factor of
// 1 ± jitterFactor so simultaneous failures spread their retries out.
// jitterFactor is clamped to [0, 1].
func Jittered(initial, maxDelay time.Duration, jitterFactor float64) Strategy {
	if jitterFactor < 0 {
		jitterFactor = 0
	}
	if jitterFactor > 1 {
		jitterFactor = 1
	}
	return &jittered{
		initial:  initial,
		maxDelay: maxDelay,
		factor:   jitterFactor,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for jitter
	}
}

type jittered struct {
	initial  time.Duration
	maxDelay time.Duration
	factor   float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jittered) NextDelay(attempt int) time.Duration {
	base := expDelay(attempt, j.initial, j.maxDelay)

	j.mu.Lock()
	multiplier := 1.0 + (j.rng.Float64()*2-1)*j.factor
	j.mu.Unlock()

	delay := time.Duration(float64(base) * multiplier)
	if delay < 0 {
		return 0
	}
	if delay > j.maxDelay {
		return j.maxDelay
	}
	return delay
}

func expDelay(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt < 0 || initial <= 0 {
		return 0
	}
	if attempt >= maxShift {
		return maxDelay
	}

	delay := time.Duration(int64(1)<<uint(attempt)) * initial
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}
