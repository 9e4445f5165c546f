package metricsjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techop/httpmetrics/pkg/metrics"
	"github.com/techop/httpmetrics/pkg/vitals"
)

var fixedVitals = vitals.ProviderFunc(func() (*vitals.Snapshot, error) {
	return &vitals.Snapshot{GoroutineCount: 4, ThreadCount: 2, CurrentTime: 1700000000000}, nil
})

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	require.True(t, json.Valid(body), "body must be valid JSON: %s", body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func entry(t *testing.T, doc map[string]any, category, name string) map[string]any {
	t.Helper()
	cat, ok := doc[category].(map[string]any)
	require.True(t, ok, "category %s missing", category)
	e, ok := cat[name].(map[string]any)
	require.True(t, ok, "%s/%s missing", category, name)
	return e
}

func TestSerialize_EmptyRegistryHasAllCategories(t *testing.T) {
	t.Parallel()

	body, err := New(WithVitals(fixedVitals)).Serialize(metrics.NewRegistry(), Options{})
	require.NoError(t, err)

	doc := decode(t, body)
	assert.Equal(t, FormatVersion, doc["version"])
	for _, key := range []string{"counters", "gauges", "histograms", "meters", "timers"} {
		assert.Equal(t, map[string]any{}, doc[key], key)
	}
	vm, ok := doc["vm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), vm["goroutine_count"])
}

func TestSerialize_NilReader(t *testing.T) {
	t.Parallel()

	body, err := New(WithVitals(fixedVitals)).Serialize(nil, Options{})
	require.NoError(t, err)
	assert.Contains(t, decode(t, body), "timers")
}

func TestSerialize_AllKinds(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Counter("requests").Inc()
	reg.Counter("requests").Inc()
	reg.Gauge("queue.depth", func() (float64, error) { return 12.5, nil })
	for i := int64(1); i <= 100; i++ {
		reg.Histogram("payload").Update(i)
	}
	reg.Meter("events").Mark(3)
	reg.Timer("latency").Update(20 * time.Millisecond)

	body, err := New(WithVitals(fixedVitals)).Serialize(reg, Options{})
	require.NoError(t, err)
	doc := decode(t, body)

	assert.Equal(t, float64(2), entry(t, doc, "counters", "requests")["count"])
	assert.Equal(t, 12.5, entry(t, doc, "gauges", "queue.depth")["value"])

	h := entry(t, doc, "histograms", "payload")
	assert.Equal(t, float64(100), h["count"])
	assert.Equal(t, float64(1), h["min"])
	assert.Equal(t, float64(100), h["max"])
	assert.InDelta(t, 50.5, h["mean"], 1e-9)
	assert.InDelta(t, 29.0115, h["stddev"], 1e-4)
	for _, k := range []string{"p50", "p75", "p95", "p98", "p99", "p999"} {
		assert.Contains(t, h, k)
	}
	assert.NotContains(t, h, "values")

	m := entry(t, doc, "meters", "events")
	assert.Equal(t, float64(3), m["count"])
	assert.Equal(t, MeterUnits, m["units"])
	for _, k := range []string{"mean_rate", "m1_rate", "m5_rate", "m15_rate"} {
		assert.Contains(t, m, k)
	}

	tm := entry(t, doc, "timers", "latency")
	assert.Equal(t, float64(1), tm["count"])
	assert.InDelta(t, 20.0, tm["max"], 1e-9)
	assert.InDelta(t, 20.0, tm["p99"], 1e-9)
	assert.Equal(t, RateUnits, tm["rate_units"])
	assert.Equal(t, DurationUnits, tm["duration_units"])
}

func TestSerialize_GaugeFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Gauge("broken", func() (float64, error) { return 0, errors.New("backend offline") })
	reg.Gauge("panics", func() (float64, error) { panic("boom") })
	reg.Gauge("healthy", func() (float64, error) { return 1, nil })

	body, err := New(WithVitals(fixedVitals)).Serialize(reg, Options{})
	require.NoError(t, err)
	doc := decode(t, body)

	assert.Equal(t, "backend offline", entry(t, doc, "gauges", "broken")["error"])
	assert.NotContains(t, entry(t, doc, "gauges", "broken"), "value")
	assert.Contains(t, entry(t, doc, "gauges", "panics")["error"], "panicked")
	assert.Equal(t, float64(1), entry(t, doc, "gauges", "healthy")["value"])
}

func TestSerialize_NonFiniteValuesStayValidJSON(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Gauge("nan", func() (float64, error) { return math.NaN(), nil })
	reg.Gauge("posinf", func() (float64, error) { return math.Inf(1), nil })
	reg.Gauge("neginf", func() (float64, error) { return math.Inf(-1), nil })

	body, err := New(WithVitals(fixedVitals)).Serialize(reg, Options{})
	require.NoError(t, err)
	doc := decode(t, body)

	assert.Equal(t, "NaN", entry(t, doc, "gauges", "nan")["value"])
	assert.Equal(t, "+Inf", entry(t, doc, "gauges", "posinf")["value"])
	assert.Equal(t, "-Inf", entry(t, doc, "gauges", "neginf")["value"])
}

func TestSerialize_PrettyChangesWhitespaceOnly(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Counter("a").Inc()
	reg.Histogram("b").Update(7)
	s := New(WithVitals(fixedVitals))

	plain, err := s.Serialize(reg, Options{})
	require.NoError(t, err)
	pretty, err := s.Serialize(reg, Options{Pretty: true})
	require.NoError(t, err)

	assert.NotEqual(t, plain, pretty)
	assert.Contains(t, string(pretty), "\n  ")

	var compacted bytes.Buffer
	require.NoError(t, json.Compact(&compacted, pretty))
	assert.Equal(t, string(bytes.TrimSpace(plain)), compacted.String())
}

func TestSerialize_FullSamples(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Histogram("sizes").Update(3)
	reg.Histogram("sizes").Update(1)
	reg.Timer("calls").Update(2 * time.Millisecond)

	body, err := New(WithVitals(fixedVitals)).Serialize(reg, Options{FullSamples: true})
	require.NoError(t, err)
	doc := decode(t, body)

	assert.Equal(t, []any{float64(1), float64(3)}, entry(t, doc, "histograms", "sizes")["values"])
	assert.Equal(t, []any{float64(2)}, entry(t, doc, "timers", "calls")["values"])
}

func TestSerialize_FilterAndExclude(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Counter("http.requests").Inc()
	reg.Counter("http.errors").Inc()
	reg.Counter("db.queries").Inc()
	reg.Counter("db/pool/open").Inc()

	s := New(WithVitals(fixedVitals), WithExclude("http.errors"))

	doc, err := s.Document(reg, Options{Filter: "http.*"})
	require.NoError(t, err)
	assert.Equal(t, map[string]Counter{"http.requests": {Count: 1}}, doc.Counters)
	assert.NotNil(t, doc.VM, "vitals are reported regardless of the filter")

	doc, err = s.Document(reg, Options{Filter: "db/**"})
	require.NoError(t, err)
	assert.Equal(t, map[string]Counter{"db/pool/open": {Count: 1}}, doc.Counters)

	_, err = s.Serialize(reg, Options{Filter: "http.[a"})
	assert.ErrorIs(t, err, ErrBadFilter)
}

func TestSerialize_VitalsFailure(t *testing.T) {
	t.Parallel()

	failing := vitals.ProviderFunc(func() (*vitals.Snapshot, error) {
		return nil, errors.New("procfs unavailable")
	})
	body, err := New(WithVitals(failing)).Serialize(metrics.NewRegistry(), Options{})
	require.NoError(t, err)

	doc := decode(t, body)
	assert.Equal(t, map[string]any{"error": "procfs unavailable"}, doc["vm"])
}

func TestSerialize_VitalsPanicKeepsMetrics(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	require.NoError(t, reg.Counter("requests.total").Add(42))
	panicking := vitals.ProviderFunc(func() (*vitals.Snapshot, error) {
		panic("vitals broke")
	})

	var body []byte
	require.NotPanics(t, func() {
		var err error
		body, err = New(WithVitals(panicking)).Serialize(reg, Options{})
		require.NoError(t, err)
	})

	doc := decode(t, body)
	vm, ok := doc["vm"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, vm["error"], "vitals broke")
	assert.Equal(t, float64(42), entry(t, doc, "counters", "requests.total")["count"])
}

func TestSerialize_EmptyErrorMessagesStillMarked(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Gauge("silent", func() (float64, error) { return 0, errors.New("") })
	silentVitals := vitals.ProviderFunc(func() (*vitals.Snapshot, error) {
		return nil, errors.New("")
	})

	body, err := New(WithVitals(silentVitals)).Serialize(reg, Options{})
	require.NoError(t, err)
	doc := decode(t, body)

	assert.Equal(t, map[string]any{"error": "gauge read failed"}, entry(t, doc, "gauges", "silent"))
	assert.Equal(t, map[string]any{"error": "vitals read failed"}, doc["vm"])
}

func TestSerialize_DoesNotMutateRegistry(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	reg.Counter("c").Inc()
	reg.Timer("t").Update(time.Second)
	before := reg.Names()

	_, err := New(WithVitals(fixedVitals)).Serialize(reg, Options{FullSamples: true})
	require.NoError(t, err)

	assert.Equal(t, before, reg.Names())
	assert.Equal(t, int64(1), reg.Counter("c").Count())
	assert.Equal(t, int64(1), reg.Timer("t").Count())
}

func TestSerialize_ConcurrentWithUpdates(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	s := New(WithVitals(fixedVitals))
	stop := make(chan struct{})

	var writers sync.WaitGroup
	for i := 0; i < 4; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					reg.Counter("hits").Inc()
					reg.Histogram("sizes").Update(42)
					reg.Timer("latency").Update(time.Millisecond)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		body, err := s.Serialize(reg, Options{FullSamples: i%2 == 0})
		require.NoError(t, err)
		require.True(t, json.Valid(body))
	}
	close(stop)
	writers.Wait()
}

func TestFloat_RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.5, -3, math.NaN(), math.Inf(1), math.Inf(-1)} {
		b, err := json.Marshal(Float(v))
		require.NoError(t, err)

		var got Float
		require.NoError(t, json.Unmarshal(b, &got))
		if math.IsNaN(v) {
			assert.True(t, math.IsNaN(float64(got)))
			continue
		}
		assert.Equal(t, v, float64(got))
	}
}
