package metrics

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

// DefaultReservoirSize is the number of values kept by a uniform sample.
const DefaultReservoirSize = 1028

// Sample is the value store behind a Histogram.
type Sample interface {
	// Update records a value.
	Update(v int64)
	// Snapshot returns the current distribution.
	Snapshot() HistogramSnapshot
}

// HistogramSnapshot is a point-in-time view of a distribution.
type HistogramSnapshot struct {
	Count  int64
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	P50    float64
	P75    float64
	P95    float64
	P98    float64
	P99    float64
	P999   float64

	// Values holds the sorted reservoir contents. It is nil for samples that
	// do not retain raw values.
	Values []int64
}

// UniformSample keeps a uniformly random subset of all recorded values
// (Vitter's algorithm R).
type UniformSample struct {
	mu     sync.Mutex
	size   int
	count  int64
	values []int64
}

// NewUniformSample creates a sample holding at most size values.
func NewUniformSample(size int) *UniformSample {
	if size <= 0 {
		size = DefaultReservoirSize
	}
	return &UniformSample{
		size:   size,
		values: make([]int64, 0, min(size, 64)),
	}
}

// Update records v.
func (s *UniformSample) Update(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if len(s.values) < s.size {
		s.values = append(s.values, v)
		return
	}
	if r := rand.Int64N(s.count); r < int64(s.size) {
		s.values[r] = v
	}
}

// Snapshot returns the distribution of the retained values.
func (s *UniformSample) Snapshot() HistogramSnapshot {
	s.mu.Lock()
	count := s.count
	values := slices.Clone(s.values)
	s.mu.Unlock()

	return snapshotOf(count, values)
}

// FixedSample is a read-only sample that always reports the same snapshot.
// It is used to surface distributions computed elsewhere.
type FixedSample struct {
	snap HistogramSnapshot
}

// NewFixedSample wraps snap.
func NewFixedSample(snap HistogramSnapshot) *FixedSample {
	return &FixedSample{snap: snap}
}

// Update is a no-op.
func (s *FixedSample) Update(int64) {}

// Snapshot returns the wrapped snapshot.
func (s *FixedSample) Snapshot() HistogramSnapshot {
	return s.snap
}

// snapshotOf sorts values in place and derives the summary statistics.
func snapshotOf(count int64, values []int64) HistogramSnapshot {
	snap := HistogramSnapshot{Count: count}
	n := len(values)
	if n == 0 {
		return snap
	}
	slices.Sort(values)

	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / float64(n)

	var variance float64
	if n > 1 {
		for _, v := range values {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(n - 1)
	}

	snap.Min = float64(values[0])
	snap.Max = float64(values[n-1])
	snap.Mean = mean
	snap.StdDev = math.Sqrt(variance)
	snap.P50 = quantile(values, 0.5)
	snap.P75 = quantile(values, 0.75)
	snap.P95 = quantile(values, 0.95)
	snap.P98 = quantile(values, 0.98)
	snap.P99 = quantile(values, 0.99)
	snap.P999 = quantile(values, 0.999)
	snap.Values = values
	return snap
}

// quantile interpolates between the two closest ranks of sorted.
func quantile(sorted []int64, q float64) float64 {
	n := len(sorted)
	pos := q * float64(n+1)
	switch {
	case pos < 1:
		return float64(sorted[0])
	case pos >= float64(n):
		return float64(sorted[n-1])
	}
	lower := float64(sorted[int(pos)-1])
	upper := float64(sorted[int(pos)])
	return lower + (pos-math.Floor(pos))*(upper-lower)
}
