package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// Clock supplies the current time to meters and timers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// tickInterval is the period at which the moving averages decay.
const tickInterval = 5 * time.Second

// ewma is an exponentially weighted moving average of a per-second rate.
type ewma struct {
	alpha       float64
	uncounted   atomic.Int64
	rate        atomicFloat64
	initialized atomic.Bool
}

func newEWMA(minutes float64) *ewma {
	return &ewma{alpha: 1 - math.Exp(-tickInterval.Seconds()/60/minutes)}
}

func (e *ewma) update(n int64) {
	e.uncounted.Add(n)
}

func (e *ewma) tick() {
	count := e.uncounted.Swap(0)
	instant := float64(count) / tickInterval.Seconds()
	if e.initialized.Load() {
		r := e.rate.Load()
		e.rate.Store(r + e.alpha*(instant-r))
		return
	}
	e.rate.Store(instant)
	e.initialized.Store(true)
}

// MeterSnapshot is a point-in-time view of a Meter. Rates are per second.
type MeterSnapshot struct {
	Count    int64
	Rate1    float64
	Rate5    float64
	Rate15   float64
	RateMean float64
}

// Meter measures the rate of events over 1, 5 and 15 minute windows.
// The averages decay lazily on Mark and Snapshot; no goroutine is started.
type Meter struct {
	clock    Clock
	start    time.Time
	lastTick atomic.Int64
	count    atomic.Int64
	m1       *ewma
	m5       *ewma
	m15      *ewma
}

// NewMeter creates an unregistered meter. A nil clock means SystemClock.
func NewMeter(clock Clock) *Meter {
	if clock == nil {
		clock = SystemClock
	}
	now := clock.Now()
	m := &Meter{
		clock: clock,
		start: now,
		m1:    newEWMA(1),
		m5:    newEWMA(5),
		m15:   newEWMA(15),
	}
	m.lastTick.Store(now.UnixNano())
	return m
}

// Kind returns KindMeter.
func (m *Meter) Kind() Kind { return KindMeter }

func (m *Meter) metric() {}

// Mark records n events.
func (m *Meter) Mark(n int64) {
	m.tickIfNecessary()
	m.count.Add(n)
	m.m1.update(n)
	m.m5.update(n)
	m.m15.update(n)
}

// Count returns the number of events recorded.
func (m *Meter) Count() int64 {
	return m.count.Load()
}

// Snapshot returns the current count and rates.
func (m *Meter) Snapshot() MeterSnapshot {
	m.tickIfNecessary()
	snap := MeterSnapshot{
		Count:  m.count.Load(),
		Rate1:  m.m1.rate.Load(),
		Rate5:  m.m5.rate.Load(),
		Rate15: m.m15.rate.Load(),
	}
	if elapsed := m.clock.Now().Sub(m.start).Seconds(); snap.Count > 0 && elapsed > 0 {
		snap.RateMean = float64(snap.Count) / elapsed
	}
	return snap
}

func (m *Meter) tickIfNecessary() {
	old := m.lastTick.Load()
	now := m.clock.Now().UnixNano()
	age := now - old
	if age <= int64(tickInterval) {
		return
	}
	if !m.lastTick.CompareAndSwap(old, now-age%int64(tickInterval)) {
		// Another caller is applying these ticks.
		return
	}
	for range age / int64(tickInterval) {
		m.m1.tick()
		m.m5.tick()
		m.m15.tick()
	}
}
