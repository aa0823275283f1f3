package sizing

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// Variation is one reduction target of a sweep.
type Variation struct {
	Name   string `json:"name"`
	Report Report `json:"report"`
}

// Compare dimensions series once per reduction target, keeping base for
// everything else. Targets that fail are skipped and logged.
func (d *Dimensioner) Compare(series model.TimeSeries, base Params, reductions []float64) []Variation {
	out := make([]Variation, 0, len(reductions))
	for _, pct := range reductions {
		p := base
		p.ReductionPercent = pct
		res := d.Dimension(series, p)
		if !res.OK() {
			d.logger.Debug("skipping reduction target",
				zap.String("op", "sizing.Compare"),
				zap.Float64("reduction_percent", pct),
				zap.String("reason", res.Reason()),
			)
			continue
		}
		out = append(out, Variation{
			Name:   fmt.Sprintf("%g%%", pct),
			Report: res.Value(),
		})
	}
	return RankByROI(out)
}

// RankByROI sorts feasible variations first, then descending by 10-year ROI.
// Without an investment cost there is no ROI and annual savings decide.
func RankByROI(vs []Variation) []Variation {
	sort.SliceStable(vs, func(i, j int) bool {
		fi, fj := feasible(vs[i]), feasible(vs[j])
		if fi != fj {
			return fi
		}
		return score(vs[i]) > score(vs[j])
	})
	return vs
}

func feasible(v Variation) bool {
	return v.Report.Payback == nil || v.Report.Payback.Feasible
}

func score(v Variation) float64 {
	if v.Report.Payback != nil {
		return v.Report.Payback.ROIPercent10y
	}
	return v.Report.Economics.TotalSavingsAnnual
}
