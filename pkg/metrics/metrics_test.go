package metrics

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func TestCounter(t *testing.T) {
	t.Run("inc and add", func(t *testing.T) {
		c := NewCounter()
		c.Inc()
		c.Inc()
		require.NoError(t, c.Add(3))

		assert.Equal(t, int64(5), c.Count())
		assert.Equal(t, KindCounter, c.Kind())
	})

	t.Run("negative add returns error", func(t *testing.T) {
		c := NewCounter()
		err := c.Add(-1)
		if !errors.Is(err, ErrNegativeCounterValue) {
			t.Errorf("expected ErrNegativeCounterValue, got %v", err)
		}
		assert.Equal(t, int64(0), c.Count())
	})
}

func TestGauge(t *testing.T) {
	t.Run("stored value", func(t *testing.T) {
		g := NewGauge(nil)
		g.Set(10)
		g.Add(-2.5)

		v, err := g.Value()
		require.NoError(t, err)
		assert.InDelta(t, 7.5, v, 1e-9)
	})

	t.Run("function value", func(t *testing.T) {
		n := 0.0
		g := NewGauge(func() (float64, error) {
			n++
			return n, nil
		})

		v1, _ := g.Value()
		v2, _ := g.Value()
		assert.Equal(t, 1.0, v1)
		assert.Equal(t, 2.0, v2, "gauge functions are evaluated on every read")
	})

	t.Run("function error", func(t *testing.T) {
		boom := errors.New("backend unavailable")
		g := NewGauge(func() (float64, error) { return 0, boom })

		_, err := g.Value()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		g := NewGauge(func() (float64, error) {
			var m map[string]int
			m["x"] = 1 // nil map write
			return 0, nil
		})

		v, err := g.Value()
		assert.ErrorIs(t, err, ErrGaugePanic)
		assert.Equal(t, 0.0, v)
	})
}

func TestHistogram(t *testing.T) {
	t.Run("summary statistics", func(t *testing.T) {
		h := NewHistogram(nil)
		for i := int64(1); i <= 100; i++ {
			h.Update(i)
		}

		snap := h.Snapshot()
		assert.Equal(t, int64(100), snap.Count)
		assert.Equal(t, 1.0, snap.Min)
		assert.Equal(t, 100.0, snap.Max)
		assert.InDelta(t, 50.5, snap.Mean, 1e-9)
		assert.InDelta(t, 29.0115, snap.StdDev, 1e-3)
		assert.InDelta(t, 50.5, snap.P50, 1e-9)
		assert.InDelta(t, 99.99, snap.P99, 1e-9)
		assert.Equal(t, 100.0, snap.P999)
		assert.Len(t, snap.Values, 100)
	})

	t.Run("empty histogram", func(t *testing.T) {
		snap := NewHistogram(nil).Snapshot()
		assert.Equal(t, HistogramSnapshot{}, snap)
	})

	t.Run("single value", func(t *testing.T) {
		h := NewHistogram(nil)
		h.Update(7)

		snap := h.Snapshot()
		assert.Equal(t, 7.0, snap.P50)
		assert.Equal(t, 7.0, snap.P999)
		assert.Equal(t, 0.0, snap.StdDev)
	})

	t.Run("reservoir is bounded", func(t *testing.T) {
		h := NewHistogram(NewUniformSample(10))
		for i := int64(0); i < 1000; i++ {
			h.Update(i)
		}

		snap := h.Snapshot()
		assert.Equal(t, int64(1000), snap.Count)
		assert.Len(t, snap.Values, 10)
	})

	t.Run("fixed sample ignores updates", func(t *testing.T) {
		want := HistogramSnapshot{Count: 3, Max: 9, P50: 4}
		h := NewHistogram(NewFixedSample(want))
		h.Update(100)

		assert.Equal(t, want, h.Snapshot())
	})
}

func TestMeter(t *testing.T) {
	clock := newFakeClock()
	m := NewMeter(clock)

	m.Mark(300)
	clock.Advance(6 * time.Second)

	snap := m.Snapshot()
	assert.Equal(t, int64(300), snap.Count)
	assert.InDelta(t, 60.0, snap.Rate1, 1e-9)
	assert.InDelta(t, 60.0, snap.Rate5, 1e-9)
	assert.InDelta(t, 60.0, snap.Rate15, 1e-9)
	assert.InDelta(t, 50.0, snap.RateMean, 1e-9)

	// One idle minute decays the 1-minute rate by a factor of e.
	clock.Advance(60 * time.Second)
	snap = m.Snapshot()
	assert.InDelta(t, 60*math.Exp(-1), snap.Rate1, 1e-6)
	assert.Less(t, snap.Rate1, snap.Rate5)
	assert.Less(t, snap.Rate5, snap.Rate15)
}

func TestMeter_NoEvents(t *testing.T) {
	clock := newFakeClock()
	m := NewMeter(clock)
	clock.Advance(time.Minute)

	assert.Equal(t, MeterSnapshot{}, m.Snapshot())
}

func TestTimer(t *testing.T) {
	clock := newFakeClock()
	tm := NewTimer(clock)

	tm.Update(10 * time.Millisecond)
	tm.Update(30 * time.Millisecond)
	tm.Update(-time.Second)
	tm.Time(func() { clock.Advance(20 * time.Millisecond) })

	snap := tm.Snapshot()
	assert.Equal(t, int64(3), tm.Count())
	assert.Equal(t, int64(3), snap.Histogram.Count)
	assert.Equal(t, int64(3), snap.Meter.Count)
	assert.Equal(t, float64(10*time.Millisecond), snap.Histogram.Min)
	assert.Equal(t, float64(30*time.Millisecond), snap.Histogram.Max)
	assert.InDelta(t, float64(20*time.Millisecond), snap.Histogram.Mean, 1)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindCounter, "counter"},
		{KindGauge, "gauge"},
		{KindHistogram, "histogram"},
		{KindMeter, "meter"},
		{KindTimer, "timer"},
		{Kind(42), "kind(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}
