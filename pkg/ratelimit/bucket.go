// Package ratelimit provides a token-bucket rate limiter, used to bound how
// often expensive diagnostics such as goroutine dumps may run.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Bucket is a single token bucket rate limiter.
// It is safe for concurrent use.
type Bucket struct {
	tokens     float64
	maxTokens  float64
	rate       float64 // tokens per second
	lastUpdate time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// BucketStats contains token bucket statistics.
type BucketStats struct {
	Available float64 `json:"available"`
	Max       float64 `json:"max"`
	Rate      float64 `json:"rate"`
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBucket creates a new token bucket with the given rate (tokens/second)
// and burst (maximum tokens). A burst below one defaults to the rate, and
// to one when the rate is below one. The bucket starts full.
func NewBucket(rate float64, burst int, opts ...Option) *Bucket {
	maxTokens := float64(burst)
	if maxTokens < 1 {
		maxTokens = math.Max(rate, 1)
	}
	b := &Bucket{
		maxTokens: maxTokens,
		rate:      rate,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = maxTokens
	b.lastUpdate = b.now()
	return b
}

// refill adds tokens based on elapsed time. Caller must hold b.mu.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.tokens+elapsed*b.rate, b.maxTokens)
	}
	b.lastUpdate = now
}

// Allow tries to consume one token. Returns true if a token was available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.now())

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter returns how long until the next token is available; zero when
// one is available now.
func (b *Bucket) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.now())
	if b.tokens >= 1 {
		return 0
	}
	if b.rate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Available returns the current number of tokens (including time-based refill).
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.now())
	return b.tokens
}

// Stats returns the current bucket statistics.
func (b *Bucket) Stats() BucketStats {
	return BucketStats{
		Available: b.Available(),
		Max:       b.maxTokens,
		Rate:      b.rate,
	}
}
