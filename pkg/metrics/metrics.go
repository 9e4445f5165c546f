package metrics

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// ErrInvalidName is returned when registering a metric with an empty name.
var ErrInvalidName = errors.New("invalid metric name")

// ErrKindMismatch is returned when a name is already registered as a different kind of metric.
var ErrKindMismatch = errors.New("metric kind mismatch")

// ErrGaugePanic is returned by Gauge.Value when the gauge function panicked.
var ErrGaugePanic = errors.New("gauge function panicked")

// atomicFloat64 provides atomic operations for float64 values.
// It stores the bits of the float64 as a uint64 for atomic access.
type atomicFloat64 struct {
	bits atomic.Uint64
}

// Load atomically loads and returns the float64 value.
func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

// Store atomically stores the float64 value.
func (a *atomicFloat64) Store(val float64) {
	a.bits.Store(math.Float64bits(val))
}

// Add atomically adds delta to the float64 value using CAS loop.
func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		newVal := math.Float64frombits(old) + delta
		if a.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return
		}
	}
}

// Kind identifies the variant of a Metric.
type Kind int

const (
	KindCounter Kind = iota + 1
	KindGauge
	KindHistogram
	KindMeter
	KindTimer
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindMeter:
		return "meter"
	case KindTimer:
		return "timer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Metric is a named measurement held by a Registry. It is one of *Counter,
// *Gauge, *Histogram, *Meter or *Timer; the set is closed.
type Metric interface {
	// Kind returns the variant tag.
	Kind() Kind

	metric()
}

// ============================================================================
// Counter
// ============================================================================

// Counter is a monotonically increasing integer.
type Counter struct {
	count atomic.Int64
}

// NewCounter creates an unregistered counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Kind returns KindCounter.
func (c *Counter) Kind() Kind { return KindCounter }

func (c *Counter) metric() {}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.count.Add(1)
}

// Add adds delta to the counter.
// Returns an error if delta is negative.
func (c *Counter) Add(delta int64) error {
	if delta < 0 {
		return ErrNegativeCounterValue
	}
	c.count.Add(delta)
	return nil
}

// Count returns the current value.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// ============================================================================
// Gauge
// ============================================================================

// GaugeFunc computes a gauge value on read.
type GaugeFunc func() (float64, error)

// Gauge is a value that is either set explicitly or computed on each read.
type Gauge struct {
	fn    GaugeFunc
	value atomicFloat64
}

// NewGauge creates an unregistered gauge. If fn is nil the gauge holds the
// last value passed to Set.
func NewGauge(fn GaugeFunc) *Gauge {
	return &Gauge{fn: fn}
}

// Kind returns KindGauge.
func (g *Gauge) Kind() Kind { return KindGauge }

func (g *Gauge) metric() {}

// Set stores v. It has no effect on the result of Value for function gauges.
func (g *Gauge) Set(v float64) {
	g.value.Store(v)
}

// Add adds delta to the stored value.
func (g *Gauge) Add(delta float64) {
	g.value.Add(delta)
}

// Value reads the gauge. A panic inside the gauge function is returned as an
// error wrapping ErrGaugePanic.
func (g *Gauge) Value() (v float64, err error) {
	if g.fn == nil {
		return g.value.Load(), nil
	}
	defer func() {
		if r := recover(); r != nil {
			v = 0
			err = fmt.Errorf("%w: %v", ErrGaugePanic, r)
		}
	}()
	return g.fn()
}
