package promsource

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techop/httpmetrics/pkg/metrics"
)

func collect(t *testing.T, r metrics.Reader) (map[string]metrics.Metric, []string) {
	t.Helper()
	out := make(map[string]metrics.Metric)
	var names []string
	r.Each(func(name string, m metrics.Metric) {
		out[name] = m
		names = append(names, name)
	})
	return out, names
}

func TestSource_CountersAndGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	requests := prometheus.NewCounter(prometheus.CounterOpts{Name: "http_requests_total", Help: "requests"})
	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "queue_depth", Help: "depth"}, []string{"queue", "az"})
	reg.MustRegister(requests, depth)

	requests.Add(42)
	depth.WithLabelValues("orders", "eu-1").Set(7.5)

	got, names := collect(t, New(reg, WithPrefix("prom.")))

	c, ok := got["prom.http_requests_total"].(*metrics.Counter)
	require.True(t, ok, "counter family should surface as *metrics.Counter")
	assert.Equal(t, int64(42), c.Count())

	g, ok := got[`prom.queue_depth{az="eu-1",queue="orders"}`].(*metrics.Gauge)
	require.True(t, ok, "gauge family should surface as *metrics.Gauge, got %v", names)
	v, err := g.Value()
	require.NoError(t, err)
	assert.Equal(t, 7.5, v)

	assert.IsIncreasing(t, names)
}

func TestSource_Histogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "request_seconds",
		Help:    "latency",
		Buckets: []float64{1, 2, 5},
	})
	reg.MustRegister(h)
	for _, v := range []float64{0.5, 1.5, 1.5, 3} {
		h.Observe(v)
	}

	got, _ := collect(t, New(reg))
	hist, ok := got["request_seconds"].(*metrics.Histogram)
	require.True(t, ok)

	snap := hist.Snapshot()
	assert.Equal(t, int64(4), snap.Count)
	assert.InDelta(t, 1.625, snap.Mean, 1e-9)
	assert.Equal(t, 0.0, snap.Min)
	assert.Equal(t, 5.0, snap.Max)
	assert.InDelta(t, 1.5, snap.P50, 1e-9)
	assert.Nil(t, snap.Values)
}

func TestSource_HistogramOverflowKeepsMaxConsistent(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_wait_seconds",
		Help:    "wait",
		Buckets: []float64{1, 5, 10},
	})
	reg.MustRegister(h)
	for _, v := range []float64{2, 3, 4, 50, 60} {
		h.Observe(v)
	}

	got, _ := collect(t, New(reg))
	hist, ok := got["queue_wait_seconds"].(*metrics.Histogram)
	require.True(t, ok)

	snap := hist.Snapshot()
	assert.Equal(t, int64(5), snap.Count)
	assert.Equal(t, 10.0, snap.Max, "observations above the top bucket report its bound")
	for _, p := range []float64{snap.P50, snap.P75, snap.P95, snap.P99, snap.P999} {
		assert.LessOrEqual(t, p, snap.Max)
	}
	assert.LessOrEqual(t, snap.Min, snap.P50)
}

func TestCounterValue(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		expected int64
	}{
		{"fraction rounds up", 0.75, 1},
		{"fraction rounds down", 41.4, 41},
		{"whole", 42, 42},
		{"negative", -3, 0},
		{"nan", math.NaN(), 0},
		{"beyond int64", 1e30, math.MaxInt64},
		{"positive infinity", math.Inf(1), math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, counterValue(tt.in))
		})
	}
}

func TestSource_Summary(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := prometheus.NewSummary(prometheus.SummaryOpts{
		Name:       "payload_bytes",
		Help:       "payload size",
		Objectives: map[float64]float64{0.5: 0.05, 0.99: 0.001},
	})
	reg.MustRegister(s)
	for i := 1; i <= 100; i++ {
		s.Observe(float64(i))
	}

	got, _ := collect(t, New(reg))
	hist, ok := got["payload_bytes"].(*metrics.Histogram)
	require.True(t, ok)

	snap := hist.Snapshot()
	assert.Equal(t, int64(100), snap.Count)
	assert.InDelta(t, 50.5, snap.Mean, 1e-9)
	assert.InDelta(t, 50, snap.P50, 5)
	assert.InDelta(t, 99, snap.P99, 1)
	assert.True(t, math.IsNaN(snap.P75), "objectives that were not configured are unknown")
}

func TestSource_GatherErrorIsFailSoft(t *testing.T) {
	t.Parallel()

	boom := errors.New("collector exploded")
	g := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		name := "up"
		typ := dto.MetricType_GAUGE
		one := 1.0
		return []*dto.MetricFamily{{
			Name:   &name,
			Type:   &typ,
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &one}}},
		}}, boom
	})

	got, _ := collect(t, New(g))
	require.Len(t, got, 2)

	errGauge, ok := got[GatherErrorsName].(*metrics.Gauge)
	require.True(t, ok)
	_, err := errGauge.Value()
	assert.ErrorIs(t, err, boom)

	up, ok := got["up"].(*metrics.Gauge)
	require.True(t, ok)
	v, err := up.Value()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestBucketQuantile(t *testing.T) {
	bucket := func(upper float64, cum uint64) *dto.Bucket {
		return &dto.Bucket{UpperBound: &upper, CumulativeCount: &cum}
	}
	buckets := []*dto.Bucket{bucket(10, 10), bucket(20, 20), bucket(math.Inf(1), 30)}

	tests := []struct {
		name     string
		q        float64
		expected float64
	}{
		{"first bucket", 0.1, 3},
		{"second bucket", 0.5, 15},
		{"inf bucket reports largest finite bound", 0.9, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, bucketQuantile(tt.q, 30, buckets), 1e-9)
		})
	}
}
