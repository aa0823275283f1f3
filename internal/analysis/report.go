package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// Report bundles every battery-independent view of a series.
type Report struct {
	Peak      PeakStats     `json:"peak"`
	LoadCurve LoadCurve     `json:"load_curve"`
	Bands     BandBreakdown `json:"bands"`
}

// Analyze runs the peak, load-curve and band summaries concurrently.
func Analyze(ctx context.Context, series model.TimeSeries, schedule tariff.Schedule, workers int) (Report, error) {
	if len(series) == 0 {
		return Report{}, ErrEmptySeries
	}
	if err := schedule.Validate(); err != nil {
		return Report{}, err
	}

	var r Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		peak, err := PeakStatsConcurrent(gctx, series, schedule, workers)
		r.Peak = peak
		return err
	})
	g.Go(func() error {
		curve, err := AnalyzeLoadCurve(series)
		r.LoadCurve = curve
		return err
	})
	g.Go(func() error {
		r.Bands = ClassifyByBand(series, schedule)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return r, nil
}
