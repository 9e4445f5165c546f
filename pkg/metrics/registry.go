package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNilMetric is returned when registering a nil metric.
var ErrNilMetric = errors.New("nil metric")

// Reader is a read-only view over a set of named metrics.
type Reader interface {
	// Each calls fn for every metric, in name order. Implementations must be
	// safe to call concurrently with updates to the metrics.
	Each(fn func(name string, m Metric))
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(fn func(name string, m Metric))

// Each calls f(fn).
func (f ReaderFunc) Each(fn func(name string, m Metric)) { f(fn) }

// Readers merges several readers into one. They are visited in argument
// order; nil readers are skipped.
func Readers(rs ...Reader) Reader {
	return ReaderFunc(func(fn func(name string, m Metric)) {
		for _, r := range rs {
			if r != nil {
				r.Each(fn)
			}
		}
	})
}

// Registry holds named metrics. Lookups and iteration are lock-free; each
// metric guards its own state.
type Registry struct {
	metrics sync.Map // string -> Metric
	clock   Clock
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the clock used by meters and timers created by the registry.
func WithClock(c Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{clock: SystemClock}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds m under name.
func (r *Registry) Register(name string, m Metric) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if m == nil {
		return fmt.Errorf("%w: %s", ErrNilMetric, name)
	}
	if _, loaded := r.metrics.LoadOrStore(name, m); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, name)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, m Metric) {
	if err := r.Register(name, m); err != nil {
		panic(err.Error())
	}
}

// Get returns the metric registered under name.
func (r *Registry) Get(name string) (Metric, bool) {
	m, ok := r.metrics.Load(name)
	if !ok {
		return nil, false
	}
	return m.(Metric), true
}

// Unregister removes name. It reports whether a metric was removed.
func (r *Registry) Unregister(name string) bool {
	_, ok := r.metrics.LoadAndDelete(name)
	return ok
}

// Counter returns the counter registered under name, creating it if needed.
// It panics if name is registered as another kind.
func (r *Registry) Counter(name string) *Counter {
	return getOrRegister(r, name, NewCounter)
}

// Gauge returns the gauge registered under name, creating it with fn if
// needed. fn is ignored when the gauge already exists.
func (r *Registry) Gauge(name string, fn GaugeFunc) *Gauge {
	return getOrRegister(r, name, func() *Gauge { return NewGauge(fn) })
}

// Histogram returns the histogram registered under name, creating it with a
// uniform sample if needed.
func (r *Registry) Histogram(name string) *Histogram {
	return getOrRegister(r, name, func() *Histogram { return NewHistogram(nil) })
}

// Meter returns the meter registered under name, creating it if needed.
func (r *Registry) Meter(name string) *Meter {
	return getOrRegister(r, name, func() *Meter { return NewMeter(r.clock) })
}

// Timer returns the timer registered under name, creating it if needed.
func (r *Registry) Timer(name string) *Timer {
	return getOrRegister(r, name, func() *Timer { return NewTimer(r.clock) })
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.metrics.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of registered metrics.
func (r *Registry) Len() int {
	n := 0
	r.metrics.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Each calls fn for every metric in name order. Metrics registered or
// removed during the call may or may not be visited.
func (r *Registry) Each(fn func(name string, m Metric)) {
	type entry struct {
		name string
		m    Metric
	}
	var entries []entry
	r.metrics.Range(func(k, v any) bool {
		entries = append(entries, entry{name: k.(string), m: v.(Metric)})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		fn(e.name, e.m)
	}
}

func getOrRegister[T Metric](r *Registry, name string, create func() T) T {
	if name == "" {
		panic(fmt.Sprintf("%s: empty name", ErrInvalidName))
	}
	if existing, ok := r.metrics.Load(name); ok {
		return mustBe[T](name, existing)
	}
	actual, _ := r.metrics.LoadOrStore(name, create())
	return mustBe[T](name, actual)
}

func mustBe[T Metric](name string, v any) T {
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("%s: %s is a %s", ErrKindMismatch, name, v.(Metric).Kind()))
	}
	return t
}
