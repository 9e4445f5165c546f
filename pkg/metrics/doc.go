// Package metrics provides the in-process metrics registry exposed by httpmetrics.
//
// Supported metric types:
//   - Counter: monotonically increasing integer (e.g., request counts)
//   - Gauge: value set explicitly or computed on each read (e.g., queue depth)
//   - Histogram: distribution of values with percentiles (e.g., payload sizes)
//   - Meter: event rate over 1, 5 and 15 minute moving windows
//   - Timer: a Histogram of durations combined with a Meter
//
// The variants form a closed set behind the Metric interface; consumers switch
// on the concrete type. All metrics are safe for concurrent use. The Registry
// stores them in a sync.Map, so reading the registry never blocks writers.
//
// Gauge reads return an explicit error. A gauge function that panics is
// reported as ErrGaugePanic instead of unwinding into the caller.
//
// # Usage
//
//	registry := metrics.Default()
//
//	registry.Counter("requests.total").Inc()
//	registry.Meter("requests.rate").Mark(1)
//	registry.Timer("requests.latency").Update(12 * time.Millisecond)
//	registry.Gauge("queue.depth", func() (float64, error) {
//	    return float64(queue.Len()), nil
//	})
//
// Metrics owned by other registries can be merged with Readers:
//
//	reader := metrics.Readers(registry, promsource.New(prometheus.DefaultGatherer))
package metrics
