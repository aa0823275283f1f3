package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

var ErrEmptySeries = errors.New("series has no samples")

const (
	peakHourThreshold   = 0.90
	valleyHourThreshold = 0.50
)

// LoadCurve is a facility-level summary of a demand series. It does not
// depend on a battery size; ShavingPotentialKW is the gap between the
// all-time peak and the mean.
type LoadCurve struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`

	MaxKW  float64 `json:"max_kw"`
	MinKW  float64 `json:"min_kw"`
	MeanKW float64 `json:"mean_kw"`
	P05KW  float64 `json:"p05_kw"`
	P95KW  float64 `json:"p95_kw"`

	VariationFactor float64         `json:"variation_factor"`
	HourlyMeanKW    map[int]float64 `json:"hourly_mean_kw"`

	// PeakHours have an hourly mean at or above 90% of MaxKW,
	// ValleyHours at or below 50%.
	PeakHours   []int `json:"peak_hours"`
	ValleyHours []int `json:"valley_hours"`

	ShavingPotentialKW float64  `json:"shaving_potential_kw"`
	Warnings           []string `json:"warnings,omitempty"`
}

func AnalyzeLoadCurve(series model.TimeSeries) (LoadCurve, error) {
	if len(series) == 0 {
		return LoadCurve{}, ErrEmptySeries
	}
	c := LoadCurve{Count: len(series)}
	c.Start, c.End = series.Span()

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	vals := make([]float64, 0, len(series))
	for _, s := range series {
		v := s.PowerKW
		vals = append(vals, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	sort.Float64s(vals)
	c.MinKW = minv
	c.MaxKW = maxv
	c.MeanKW = sum / float64(len(vals))
	c.P05KW = percentileSorted(vals, 0.05)
	c.P95KW = percentileSorted(vals, 0.95)
	c.ShavingPotentialKW = c.MaxKW - c.MeanKW

	vf, err := VariationFactor(c.MaxKW, c.MeanKW)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("variation factor undefined: %v", err))
	}
	c.VariationFactor = vf

	c.HourlyMeanKW = HourlyProfile(series)
	c.PeakHours = []int{}
	c.ValleyHours = []int{}
	for h := 0; h < 24; h++ {
		m := c.HourlyMeanKW[h]
		if m >= c.MaxKW*peakHourThreshold {
			c.PeakHours = append(c.PeakHours, h)
		}
		if m <= c.MaxKW*valleyHourThreshold {
			c.ValleyHours = append(c.ValleyHours, h)
		}
	}
	return c, nil
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
