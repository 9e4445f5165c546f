// Package metricsjson renders a metrics registry and the process vitals as
// a single JSON document.
package metricsjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/techop/httpmetrics/pkg/logging"
	"github.com/techop/httpmetrics/pkg/metrics"
	"github.com/techop/httpmetrics/pkg/vitals"
)

// ErrBadFilter is returned for a malformed name filter.
var ErrBadFilter = errors.New("invalid metric filter")

// Markers used when a failure carries no message of its own.
const (
	gaugeFailedMarker  = "gauge read failed"
	vitalsFailedMarker = "vitals read failed"
)

// Options control a single rendering.
type Options struct {
	// Pretty indents the output. It affects whitespace only.
	Pretty bool
	// FullSamples adds the raw reservoir values to histograms and timers.
	FullSamples bool
	// Filter is a glob matched against metric names; empty selects all.
	// '*' matches any run of characters except '/', '**' also crosses '/'.
	Filter string
}

// Serializer converts a metrics.Reader into a Document.
type Serializer struct {
	vitals  vitals.Provider
	exclude []string
	log     *slog.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithVitals sets the provider reported under "vm".
func WithVitals(p vitals.Provider) Option {
	return func(s *Serializer) {
		if p != nil {
			s.vitals = p
		}
	}
}

// WithExclude drops metrics whose names match any of the globs.
func WithExclude(patterns ...string) Option {
	return func(s *Serializer) {
		s.exclude = append(s.exclude, patterns...)
	}
}

// WithLogger sets the logger for gauge and vitals read failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Serializer) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Serializer. Without WithVitals the current process is
// described by a vitals.RuntimeProvider.
func New(opts ...Option) *Serializer {
	s := &Serializer{log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.vitals == nil {
		s.vitals = vitals.NewRuntimeProvider(vitals.WithLogger(s.log))
	}
	return s
}

// ValidatePatterns reports the first malformed glob.
func ValidatePatterns(patterns ...string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrBadFilter, p)
		}
	}
	return nil
}

// Serialize renders r. It only reads r; a failing gauge or vitals provider
// becomes an error marker in place of the value.
func (s *Serializer) Serialize(r metrics.Reader, opts Options) ([]byte, error) {
	doc, err := s.Document(r, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	return buf.Bytes(), nil
}

// Document builds the structure Serialize encodes. When r yields the same
// name twice, the later metric wins.
func (s *Serializer) Document(r metrics.Reader, opts Options) (*Document, error) {
	if opts.Filter != "" {
		if err := ValidatePatterns(opts.Filter); err != nil {
			return nil, err
		}
	}

	doc := &Document{
		Version:    FormatVersion,
		VM:         s.readVitals(),
		Counters:   map[string]Counter{},
		Gauges:     map[string]Gauge{},
		Histograms: map[string]Histogram{},
		Meters:     map[string]Meter{},
		Timers:     map[string]Timer{},
	}
	if r == nil {
		return doc, nil
	}

	r.Each(func(name string, m metrics.Metric) {
		if !s.selected(name, opts.Filter) {
			return
		}
		switch m := m.(type) {
		case *metrics.Counter:
			doc.Counters[name] = Counter{Count: m.Count()}
		case *metrics.Gauge:
			doc.Gauges[name] = s.gauge(name, m)
		case *metrics.Histogram:
			doc.Histograms[name] = histogram(m.Snapshot(), opts.FullSamples)
		case *metrics.Meter:
			doc.Meters[name] = meter(m.Snapshot())
		case *metrics.Timer:
			doc.Timers[name] = timer(m.Snapshot(), opts.FullSamples)
		}
	})
	return doc, nil
}

// readVitals never panics; a panicking provider is reported like a failing one.
func (s *Serializer) readVitals() (out any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("process vitals provider panicked", "panic", r)
			out = ErrorMarker{Error: fmt.Sprintf("vitals provider panicked: %v", r)}
		}
	}()

	snap, err := s.vitals.Vitals()
	if err != nil {
		s.log.Debug("process vitals unavailable", "error", err)
		return ErrorMarker{Error: errorText(err, vitalsFailedMarker)}
	}
	if snap == nil {
		return ErrorMarker{Error: "no vitals reported"}
	}
	return snap
}

func (s *Serializer) selected(name, filter string) bool {
	if filter != "" && !doublestar.MatchUnvalidated(filter, name) {
		return false
	}
	for _, p := range s.exclude {
		if doublestar.MatchUnvalidated(p, name) {
			return false
		}
	}
	return true
}

func (s *Serializer) gauge(name string, g *metrics.Gauge) Gauge {
	v, err := g.Value()
	if err != nil {
		s.log.Debug("gauge read failed", "metric", name, "error", err)
		return Gauge{Error: errorText(err, gaugeFailedMarker)}
	}
	f := Float(v)
	return Gauge{Value: &f}
}

// errorText returns the message of err, or fallback when it is empty.
func errorText(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

func histogram(h metrics.HistogramSnapshot, full bool) Histogram {
	out := Histogram{
		Count:  h.Count,
		Min:    Float(h.Min),
		Max:    Float(h.Max),
		Mean:   Float(h.Mean),
		StdDev: Float(h.StdDev),
		P50:    Float(h.P50),
		P75:    Float(h.P75),
		P95:    Float(h.P95),
		P98:    Float(h.P98),
		P99:    Float(h.P99),
		P999:   Float(h.P999),
	}
	if full {
		out.Values = h.Values
	}
	return out
}

func meter(m metrics.MeterSnapshot) Meter {
	return Meter{
		Count:    m.Count,
		MeanRate: Float(m.RateMean),
		M1Rate:   Float(m.Rate1),
		M5Rate:   Float(m.Rate5),
		M15Rate:  Float(m.Rate15),
		Units:    MeterUnits,
	}
}

// nsPerMs converts the nanosecond durations of a timer to milliseconds.
const nsPerMs = float64(time.Millisecond)

func timer(t metrics.TimerSnapshot, full bool) Timer {
	h := t.Histogram
	out := Timer{
		Count:         t.Meter.Count,
		Min:           Float(h.Min / nsPerMs),
		Max:           Float(h.Max / nsPerMs),
		Mean:          Float(h.Mean / nsPerMs),
		StdDev:        Float(h.StdDev / nsPerMs),
		P50:           Float(h.P50 / nsPerMs),
		P75:           Float(h.P75 / nsPerMs),
		P95:           Float(h.P95 / nsPerMs),
		P98:           Float(h.P98 / nsPerMs),
		P99:           Float(h.P99 / nsPerMs),
		P999:          Float(h.P999 / nsPerMs),
		MeanRate:      Float(t.Meter.RateMean),
		M1Rate:        Float(t.Meter.Rate1),
		M5Rate:        Float(t.Meter.Rate5),
		M15Rate:       Float(t.Meter.Rate15),
		RateUnits:     RateUnits,
		DurationUnits: DurationUnits,
	}
	if full && len(h.Values) > 0 {
		out.Values = make([]Float, len(h.Values))
		for i, v := range h.Values {
			out.Values[i] = Float(float64(v) / nsPerMs)
		}
	}
	return out
}
