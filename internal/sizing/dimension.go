package sizing

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/analysis"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/mathutil"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// Params are the sizing knobs. Zero values are not defaults; callers fill
// them from config.Default().
type Params struct {
	ReductionPercent float64 `json:"reduction_percent"`
	CyclesPerDay     float64 `json:"cycles_per_day"`
	Utilization      float64 `json:"utilization"`
	InvestmentCost   float64 `json:"investment_cost"`
}

func (p Params) Validate() error {
	if p.ReductionPercent < 0 || p.ReductionPercent > 100 {
		return model.Invalid("reduction_percent", "must be within [0, 100], got %v", p.ReductionPercent)
	}
	if p.CyclesPerDay <= 0 {
		return model.Invalid("cycles_per_day", "must be > 0, got %v", p.CyclesPerDay)
	}
	if p.Utilization <= 0 || p.Utilization > 1 {
		return model.Invalid("utilization", "must be within (0, 1], got %v", p.Utilization)
	}
	if p.InvestmentCost < 0 {
		return model.Invalid("investment_cost", "must be >= 0, got %v", p.InvestmentCost)
	}
	return nil
}

// Sizing is the recommended battery for one reduction target.
type Sizing struct {
	PowerKW            float64 `json:"power_kw"`
	CapacityKWh        float64 `json:"capacity_kwh"`
	ContractedDemandKW float64 `json:"contracted_demand_kw"`
	PeakMaxKW          float64 `json:"peak_max_kw"`
	PeakMeanKW         float64 `json:"peak_mean_kw"`
	PeakSampleCount    int     `json:"peak_sample_count"`
	ReductionPercent   float64 `json:"reduction_percent"`
}

func (s Sizing) Battery() model.BatteryParams {
	return model.BatteryParams{PowerKW: s.PowerKW, CapacityKWh: s.CapacityKWh}
}

// Report is the full dimensioning outcome. Payback is present only when an
// investment cost was supplied.
type Report struct {
	Sizing    Sizing    `json:"sizing"`
	Economics Economics `json:"economics"`
	Payback   *Payback  `json:"payback,omitempty"`

	InvestmentCost float64 `json:"investment_cost"`
	CostPerKWh     float64 `json:"cost_per_kwh"`
	CostPerKW      float64 `json:"cost_per_kw"`
}

// Dimensioner sizes batteries against one tariff.
type Dimensioner struct {
	schedule tariff.Schedule
	logger   *zap.Logger
}

func New(schedule tariff.Schedule, logger *zap.Logger) *Dimensioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dimensioner{schedule: schedule, logger: logger}
}

// Dimension sizes a battery for series. It fails only when the peak window
// holds no usable signal, on invalid parameters, or on an unexpected fault.
func (d *Dimensioner) Dimension(series model.TimeSeries, p Params) model.Result[Report] {
	return model.Guard("dimension", func() model.Result[Report] {
		report, err := d.dimension(series, p)
		if err != nil {
			d.logger.Warn("dimensioning failed",
				zap.String("op", "sizing.Dimension"),
				zap.Float64("reduction_percent", p.ReductionPercent),
				zap.Error(err),
			)
			return model.Fail[Report](err.Error())
		}
		d.logger.Info("dimensioned battery",
			zap.String("op", "sizing.Dimension"),
			zap.Float64("power_kw", report.Sizing.PowerKW),
			zap.Float64("capacity_kwh", report.Sizing.CapacityKWh),
			zap.Float64("total_savings_annual", report.Economics.TotalSavingsAnnual),
		)
		return model.Succeed(report)
	})
}

var errNoPeakData = errors.New("no peak data: no demand samples fall in the peak tariff window")

func (d *Dimensioner) dimension(series model.TimeSeries, p Params) (Report, error) {
	if err := d.schedule.Validate(); err != nil {
		return Report{}, err
	}
	if err := p.Validate(); err != nil {
		return Report{}, err
	}

	peak := analysis.ExtractPeakSamples(series, d.schedule)
	power := RequiredPower(peak.MaxKW, p.ReductionPercent)
	if power <= 0 {
		if peak.Count == 0 || peak.MaxKW <= 0 {
			return Report{}, errNoPeakData
		}
		return Report{}, fmt.Errorf("zero required power: %d peak samples up to %.2f kW at %g%% reduction",
			peak.Count, peak.MaxKW, p.ReductionPercent)
	}
	capacity := RequiredCapacity(power, p.CyclesPerDay, d.schedule.PeakDurationHours())

	r := Report{
		Sizing: Sizing{
			PowerKW:            power,
			CapacityKWh:        capacity,
			ContractedDemandKW: mathutil.Round2(series.MaxPower()),
			PeakMaxKW:          mathutil.Round2(peak.MaxKW),
			PeakMeanKW:         mathutil.Round2(peak.MeanKW),
			PeakSampleCount:    peak.Count,
			ReductionPercent:   p.ReductionPercent,
		},
		Economics:      AnnualSavings(power, p.Utilization, d.schedule),
		InvestmentCost: p.InvestmentCost,
		CostPerKWh:     mathutil.Round2(mathutil.SafeDiv(p.InvestmentCost, capacity)),
		CostPerKW:      mathutil.Round2(mathutil.SafeDiv(p.InvestmentCost, power)),
	}
	if p.InvestmentCost > 0 {
		pb := CalculatePayback(p.InvestmentCost, r.Economics.TotalSavingsAnnual)
		r.Payback = &pb
	}
	return r, nil
}
