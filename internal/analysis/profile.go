package analysis

import (
	"errors"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// ErrZeroMean is returned when a ratio over mean demand is undefined.
var ErrZeroMean = errors.New("mean demand is zero")

// HourlyProfile maps every hour 0-23 to the mean power observed at that hour
// of day. Hours with no samples map to 0.
func HourlyProfile(series model.TimeSeries) map[int]float64 {
	var sums [24]float64
	var counts [24]int
	for _, s := range series {
		h := s.Timestamp.Hour()
		sums[h] += s.PowerKW
		counts[h]++
	}
	out := make(map[int]float64, 24)
	for h := 0; h < 24; h++ {
		if counts[h] > 0 {
			out[h] = sums[h] / float64(counts[h])
		} else {
			out[h] = 0
		}
	}
	return out
}

// BandStats is all-zero when the band has no samples.
type BandStats struct {
	TotalKW float64 `json:"total_kw"`
	MeanKW  float64 `json:"mean_kw"`
	MaxKW   float64 `json:"max_kw"`
	MinKW   float64 `json:"min_kw"`
	Count   int     `json:"count"`
}

type BandBreakdown struct {
	Peak         BandStats `json:"peak"`
	Intermediate BandStats `json:"intermediate"`
	OffPeak      BandStats `json:"off_peak"`
	TotalPoints  int       `json:"total_points"`
}

// ClassifyByBand splits series by tariff band and summarizes each part.
func ClassifyByBand(series model.TimeSeries, schedule tariff.Schedule) BandBreakdown {
	byBand := map[tariff.Band]*BandStats{
		tariff.BandPeak:         {},
		tariff.BandIntermediate: {},
		tariff.BandOffPeak:      {},
	}
	for _, s := range series {
		st := byBand[schedule.Classify(s.Timestamp)]
		if st.Count == 0 || s.PowerKW > st.MaxKW {
			st.MaxKW = s.PowerKW
		}
		if st.Count == 0 || s.PowerKW < st.MinKW {
			st.MinKW = s.PowerKW
		}
		st.TotalKW += s.PowerKW
		st.Count++
	}
	for _, st := range byBand {
		if st.Count > 0 {
			st.MeanKW = st.TotalKW / float64(st.Count)
		}
	}
	return BandBreakdown{
		Peak:         *byBand[tariff.BandPeak],
		Intermediate: *byBand[tariff.BandIntermediate],
		OffPeak:      *byBand[tariff.BandOffPeak],
		TotalPoints:  len(series),
	}
}

// VariationFactor is (max-mean)/mean.
func VariationFactor(maxKW, meanKW float64) (float64, error) {
	if meanKW == 0 {
		return 0, ErrZeroMean
	}
	return (maxKW - meanKW) / meanKW, nil
}
