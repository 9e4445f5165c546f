package metrics

import "time"

// Histogram tracks the distribution of observed values.
type Histogram struct {
	sample Sample
}

// NewHistogram creates an unregistered histogram backed by s.
// A nil sample means a uniform sample of DefaultReservoirSize values.
func NewHistogram(s Sample) *Histogram {
	if s == nil {
		s = NewUniformSample(DefaultReservoirSize)
	}
	return &Histogram{sample: s}
}

// Kind returns KindHistogram.
func (h *Histogram) Kind() Kind { return KindHistogram }

func (h *Histogram) metric() {}

// Update records v.
func (h *Histogram) Update(v int64) {
	h.sample.Update(v)
}

// Snapshot returns the current distribution.
func (h *Histogram) Snapshot() HistogramSnapshot {
	return h.sample.Snapshot()
}

// TimerSnapshot is a point-in-time view of a Timer. Histogram values are
// nanoseconds.
type TimerSnapshot struct {
	Histogram HistogramSnapshot
	Meter     MeterSnapshot
}

// Timer measures durations and the rate at which they occur.
type Timer struct {
	clock     Clock
	histogram *Histogram
	meter     *Meter
}

// NewTimer creates an unregistered timer. A nil clock means SystemClock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	return &Timer{
		clock:     clock,
		histogram: NewHistogram(nil),
		meter:     NewMeter(clock),
	}
}

// Kind returns KindTimer.
func (t *Timer) Kind() Kind { return KindTimer }

func (t *Timer) metric() {}

// Update records a duration. Negative durations are ignored.
func (t *Timer) Update(d time.Duration) {
	if d < 0 {
		return
	}
	t.histogram.Update(int64(d))
	t.meter.Mark(1)
}

// UpdateSince records the time elapsed since start.
func (t *Timer) UpdateSince(start time.Time) {
	t.Update(t.clock.Now().Sub(start))
}

// Time runs fn and records how long it took.
func (t *Timer) Time(fn func()) {
	start := t.clock.Now()
	defer t.UpdateSince(start)
	fn()
}

// Count returns the number of recorded durations.
func (t *Timer) Count() int64 {
	return t.meter.Count()
}

// Snapshot returns the duration distribution and rates.
func (t *Timer) Snapshot() TimerSnapshot {
	return TimerSnapshot{
		Histogram: t.histogram.Snapshot(),
		Meter:     t.meter.Snapshot(),
	}
}
