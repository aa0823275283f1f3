package analysis

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// PeakStats summarizes the samples that fall in the peak tariff window.
// A zero MaxKW means there is no peak signal to size against.
type PeakStats struct {
	Samples model.TimeSeries `json:"-"`
	MaxKW   float64          `json:"peak_max_kw"`
	MeanKW  float64          `json:"peak_mean_kw"`
	Count   int              `json:"peak_count"`
}

// ExtractPeakSamples filters series to the peak window. An empty result is
// not an error: it yields no samples and zero max/mean.
func ExtractPeakSamples(series model.TimeSeries, schedule tariff.Schedule) PeakStats {
	var acc peakAcc
	var samples model.TimeSeries
	for _, s := range series {
		if schedule.Classify(s.Timestamp) != tariff.BandPeak {
			continue
		}
		samples = append(samples, s)
		acc.add(s.PowerKW)
	}
	out := acc.stats()
	out.Samples = samples
	return out
}

// PeakStatsConcurrent computes the same max/mean/count as ExtractPeakSamples
// by reducing chunks of the series in parallel. Samples is left empty.
func PeakStatsConcurrent(ctx context.Context, series model.TimeSeries, schedule tariff.Schedule, workers int) (PeakStats, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(series) {
		workers = max(1, len(series))
	}
	chunk := (len(series) + workers - 1) / workers
	partials := make([]peakAcc, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunk
		hi := min(lo+chunk, len(series))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for i, s := range series[lo:hi] {
				if i%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if schedule.Classify(s.Timestamp) == tariff.BandPeak {
					partials[w].add(s.PowerKW)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PeakStats{}, err
	}

	var total peakAcc
	for _, p := range partials {
		total.merge(p)
	}
	return total.stats(), nil
}

// peakAcc is an order-independent accumulator, so partial results can be
// merged in any order.
type peakAcc struct {
	sum   float64
	max   float64
	count int
}

func (a *peakAcc) add(v float64) {
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *peakAcc) merge(o peakAcc) {
	if o.count == 0 {
		return
	}
	if a.count == 0 || o.max > a.max {
		a.max = o.max
	}
	a.sum += o.sum
	a.count += o.count
}

func (a peakAcc) stats() PeakStats {
	if a.count == 0 {
		return PeakStats{}
	}
	return PeakStats{
		MaxKW:  math.Max(0, a.max),
		MeanKW: a.sum / float64(a.count),
		Count:  a.count,
	}
}
