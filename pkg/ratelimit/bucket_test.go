package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewBucket_CorrectRateAndBurst(t *testing.T) {
	t.Parallel()
	b := NewBucket(50, 10)

	stats := b.Stats()
	if stats.Rate != 50 {
		t.Errorf("expected rate 50, got %v", stats.Rate)
	}
	if stats.Max != 10 {
		t.Errorf("expected max 10, got %v", stats.Max)
	}
	// Bucket should start full.
	if stats.Available < 9.9 {
		t.Errorf("expected bucket to start full (~10), got %v", stats.Available)
	}
}

func TestNewBucket_BurstDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 25.0, NewBucket(25, 0).Stats().Max)
	assert.Equal(t, 1.0, NewBucket(0.2, 0).Stats().Max)
}

func TestAllow_FailsWhenEmpty(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	b := NewBucket(1, 1, WithClock(clock.Now))

	if !b.Allow() {
		t.Fatal("first Allow should succeed")
	}
	if b.Allow() {
		t.Error("expected Allow to return false when bucket is empty")
	}
}

func TestAllow_TokenRefillOverTime(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	b := NewBucket(2, 2, WithClock(clock.Now))

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	clock.Advance(500 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	clock.Advance(time.Hour)
	assert.InDelta(t, 2.0, b.Available(), 1e-9, "refill is capped at burst")
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	b := NewBucket(0.5, 1, WithClock(clock.Now))

	assert.Zero(t, b.RetryAfter())
	assert.True(t, b.Allow())
	assert.Equal(t, 2*time.Second, b.RetryAfter())

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, b.RetryAfter())
}

func TestAllow_Concurrent(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	b := NewBucket(1, 10, WithClock(clock.Now))

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}
