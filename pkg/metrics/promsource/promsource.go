// Package promsource exposes a Prometheus registry as a metrics.Reader, so a
// host that already instruments itself with client_golang can serve those
// metrics through the JSON endpoint.
package promsource

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/techop/httpmetrics/pkg/metrics"
)

// GatherErrorsName is the gauge reported when gathering fails.
const GatherErrorsName = "prometheus_gather_errors"

// Source reads a prometheus.Gatherer on every Each call.
type Source struct {
	gatherer prometheus.Gatherer
	prefix   string
}

// Option configures a Source.
type Option func(*Source)

// WithPrefix prepends prefix to every metric name.
func WithPrefix(prefix string) Option {
	return func(s *Source) {
		s.prefix = prefix
	}
}

// New creates a Source over g. A nil gatherer means prometheus.DefaultGatherer.
func New(g prometheus.Gatherer, opts ...Option) *Source {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	s := &Source{gatherer: g}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Each gathers once and converts every sample:
//   - COUNTER becomes a *metrics.Counter
//   - GAUGE and UNTYPED become a *metrics.Gauge
//   - SUMMARY and HISTOGRAM become a *metrics.Histogram
//
// A gather error is reported as a gauge whose read returns that error; the
// families gathered before the error are still visited.
func (s *Source) Each(fn func(name string, m metrics.Metric)) {
	families, err := s.gatherer.Gather()

	type entry struct {
		name string
		m    metrics.Metric
	}
	var entries []entry
	if err != nil {
		gatherErr := err
		entries = append(entries, entry{
			name: s.prefix + GatherErrorsName,
			m: metrics.NewGauge(func() (float64, error) {
				return 0, fmt.Errorf("gather prometheus metrics: %w", gatherErr)
			}),
		})
	}

	for _, mf := range families {
		for _, pm := range mf.GetMetric() {
			m := convert(mf.GetType(), pm)
			if m == nil {
				continue
			}
			entries = append(entries, entry{name: s.prefix + sampleName(mf.GetName(), pm.GetLabel()), m: m})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	for _, e := range entries {
		fn(e.name, e.m)
	}
}

func convert(t dto.MetricType, pm *dto.Metric) metrics.Metric {
	switch t {
	case dto.MetricType_COUNTER:
		c := metrics.NewCounter()
		_ = c.Add(counterValue(pm.GetCounter().GetValue()))
		return c
	case dto.MetricType_GAUGE:
		g := metrics.NewGauge(nil)
		g.Set(pm.GetGauge().GetValue())
		return g
	case dto.MetricType_UNTYPED:
		g := metrics.NewGauge(nil)
		g.Set(pm.GetUntyped().GetValue())
		return g
	case dto.MetricType_SUMMARY:
		return metrics.NewHistogram(metrics.NewFixedSample(summarySnapshot(pm.GetSummary())))
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		return metrics.NewHistogram(metrics.NewFixedSample(histogramSnapshot(pm.GetHistogram())))
	default:
		return nil
	}
}

// counterValue rounds a float counter to the nearest integer, clamped to
// [0, math.MaxInt64]. NaN reads as zero.
func counterValue(v float64) int64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(math.Round(v))
}

// sampleName renders name{k="v",...} with labels sorted by name.
func sampleName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, lp := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func summarySnapshot(s *dto.Summary) metrics.HistogramSnapshot {
	count := s.GetSampleCount()
	snap := metrics.HistogramSnapshot{
		Count: int64(count),
		Min:   math.NaN(),
		Max:   math.NaN(),
		Mean:  math.NaN(),
		P50:   math.NaN(),
		P75:   math.NaN(),
		P95:   math.NaN(),
		P98:   math.NaN(),
		P99:   math.NaN(),
		P999:  math.NaN(),
	}
	if count > 0 {
		snap.Mean = s.GetSampleSum() / float64(count)
	}
	for _, q := range s.GetQuantile() {
		v := q.GetValue()
		switch q.GetQuantile() {
		case 0:
			snap.Min = v
		case 0.5:
			snap.P50 = v
		case 0.75:
			snap.P75 = v
		case 0.95:
			snap.P95 = v
		case 0.98:
			snap.P98 = v
		case 0.99:
			snap.P99 = v
		case 0.999:
			snap.P999 = v
		case 1:
			snap.Max = v
		}
	}
	return snap
}

func histogramSnapshot(h *dto.Histogram) metrics.HistogramSnapshot {
	count := h.GetSampleCount()
	snap := metrics.HistogramSnapshot{Count: int64(count)}
	if count == 0 {
		return snap
	}
	buckets := h.GetBucket()
	snap.Mean = h.GetSampleSum() / float64(count)
	snap.Min = bucketMin(buckets)
	snap.Max = bucketMax(count, buckets)
	snap.P50 = bucketQuantile(0.5, count, buckets)
	snap.P75 = bucketQuantile(0.75, count, buckets)
	snap.P95 = bucketQuantile(0.95, count, buckets)
	snap.P98 = bucketQuantile(0.98, count, buckets)
	snap.P99 = bucketQuantile(0.99, count, buckets)
	snap.P999 = bucketQuantile(0.999, count, buckets)
	return snap
}

// bucketQuantile interpolates linearly inside the bucket holding rank q*count,
// assuming the lowest bucket starts at zero. Ranks in the implicit +Inf bucket
// report the largest finite upper bound.
func bucketQuantile(q float64, count uint64, buckets []*dto.Bucket) float64 {
	rank := q * float64(count)
	lower, prevCount := 0.0, 0.0
	for _, b := range buckets {
		upper := b.GetUpperBound()
		cum := float64(b.GetCumulativeCount())
		if math.IsInf(upper, 1) {
			return lower
		}
		if cum >= rank {
			if cum == prevCount {
				return upper
			}
			return lower + (upper-lower)*(rank-prevCount)/(cum-prevCount)
		}
		lower, prevCount = upper, cum
	}
	return lower
}

// bucketMin returns the lower bound of the first non-empty bucket.
func bucketMin(buckets []*dto.Bucket) float64 {
	lower := 0.0
	for _, b := range buckets {
		if b.GetCumulativeCount() > 0 {
			return lower
		}
		lower = b.GetUpperBound()
	}
	return lower
}

// bucketMax returns the upper bound of the bucket holding the last of count
// observations. Observations in the implicit +Inf bucket report the largest
// finite bound, matching bucketQuantile.
func bucketMax(count uint64, buckets []*dto.Bucket) float64 {
	maxBound := 0.0
	for _, b := range buckets {
		upper := b.GetUpperBound()
		if math.IsInf(upper, 1) {
			break
		}
		maxBound = upper
		if b.GetCumulativeCount() >= count {
			break
		}
	}
	return maxBound
}
