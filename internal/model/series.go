package model

import (
	"fmt"
	"strings"
	"time"
)

// Sample is one metered demand reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	PowerKW   float64   `json:"power_kw"`
}

// TimeSeries is an ordered run of samples. Ordering is the caller's
// responsibility; the engine does not re-sort.
type TimeSeries []Sample

// timestampLayouts lists the ISO-8601 forms exporters produce, most specific first.
// Layouts without an offset are read as wall-clock time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// NewTimeSeries pairs ISO-8601 timestamps with power readings one-to-one.
func NewTimeSeries(timestamps []string, powerKW []float64) (TimeSeries, error) {
	if len(timestamps) != len(powerKW) {
		return nil, Invalid("timestamps", "got %d timestamps for %d power samples", len(timestamps), len(powerKW))
	}
	out := make(TimeSeries, 0, len(timestamps))
	for i, raw := range timestamps {
		t, err := ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out = append(out, Sample{Timestamp: t, PowerKW: powerKW[i]})
	}
	return out, nil
}

// MaxPower is the all-time observed peak, used as the contracted demand.
func (ts TimeSeries) MaxPower() float64 {
	maxv := 0.0
	for i, s := range ts {
		if i == 0 || s.PowerKW > maxv {
			maxv = s.PowerKW
		}
	}
	return maxv
}

// Span returns the first and last timestamps, zero for an empty series.
func (ts TimeSeries) Span() (time.Time, time.Time) {
	if len(ts) == 0 {
		return time.Time{}, time.Time{}
	}
	return ts[0].Timestamp, ts[len(ts)-1].Timestamp
}
