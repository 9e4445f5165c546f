package metricsjson

import (
	"encoding/json"
	"math"
	"strconv"
)

// FormatVersion identifies the layout of Document.
const FormatVersion = "1.0.0"

// Unit labels written alongside rates and durations.
const (
	MeterUnits    = "events/second"
	RateUnits     = "calls/second"
	DurationUnits = "milliseconds"
)

// Float is a float64 that encodes NaN and the infinities as the strings
// "NaN", "+Inf" and "-Inf", keeping the document valid JSON.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts both numbers and the strings MarshalJSON produces.
func (f *Float) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Document is the JSON body served at /metrics. Every category is present
// even when empty.
type Document struct {
	Version    string               `json:"version"`
	VM         any                  `json:"vm"`
	Counters   map[string]Counter   `json:"counters"`
	Gauges     map[string]Gauge     `json:"gauges"`
	Histograms map[string]Histogram `json:"histograms"`
	Meters     map[string]Meter     `json:"meters"`
	Timers     map[string]Timer     `json:"timers"`
}

// ErrorMarker replaces a value that could not be read.
type ErrorMarker struct {
	Error string `json:"error"`
}

// Counter is the encoded form of a metrics.Counter.
type Counter struct {
	Count int64 `json:"count"`
}

// Gauge holds either a value or the read error.
type Gauge struct {
	Value *Float `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Histogram is the encoded form of a metrics.Histogram.
type Histogram struct {
	Count  int64   `json:"count"`
	Min    Float   `json:"min"`
	Max    Float   `json:"max"`
	Mean   Float   `json:"mean"`
	StdDev Float   `json:"stddev"`
	P50    Float   `json:"p50"`
	P75    Float   `json:"p75"`
	P95    Float   `json:"p95"`
	P98    Float   `json:"p98"`
	P99    Float   `json:"p99"`
	P999   Float   `json:"p999"`
	Values []int64 `json:"values,omitempty"`
}

// Meter is the encoded form of a metrics.Meter.
type Meter struct {
	Count    int64  `json:"count"`
	MeanRate Float  `json:"mean_rate"`
	M1Rate   Float  `json:"m1_rate"`
	M5Rate   Float  `json:"m5_rate"`
	M15Rate  Float  `json:"m15_rate"`
	Units    string `json:"units"`
}

// Timer is the encoded form of a metrics.Timer. Durations are milliseconds.
type Timer struct {
	Count         int64   `json:"count"`
	Min           Float   `json:"min"`
	Max           Float   `json:"max"`
	Mean          Float   `json:"mean"`
	StdDev        Float   `json:"stddev"`
	P50           Float   `json:"p50"`
	P75           Float   `json:"p75"`
	P95           Float   `json:"p95"`
	P98           Float   `json:"p98"`
	P99           Float   `json:"p99"`
	P999          Float   `json:"p999"`
	Values        []Float `json:"values,omitempty"`
	MeanRate      Float   `json:"mean_rate"`
	M1Rate        Float   `json:"m1_rate"`
	M5Rate        Float   `json:"m5_rate"`
	M15Rate       Float   `json:"m15_rate"`
	RateUnits     string  `json:"rate_units"`
	DurationUnits string  `json:"duration_units"`
}
