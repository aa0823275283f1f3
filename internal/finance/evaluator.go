// Package finance replays a whole demand series through the dispatch
// simulator and turns the daily outcomes into an annual estimate.
package finance

import (
	"errors"

	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/mathutil"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

const daysPerYear = 365

// Summary aggregates a simulated period. Money fields are rounded to cents.
type Summary struct {
	DaysSimulated             int     `json:"days_simulated"`
	StartDate                 string  `json:"start_date"`
	EndDate                   string  `json:"end_date"`
	Strategy                  string  `json:"strategy"`
	ContractedDemandKW        float64 `json:"contracted_demand_kw"`
	TotalSavingsPeriod        float64 `json:"total_savings_period"`
	AnnualizedSavings         float64 `json:"annualized_savings"`
	MeanDemandReductionKW     float64 `json:"mean_demand_reduction"`
	DemandChargeSavingsAnnual float64 `json:"demand_charge_savings_annual"`
	TotalAnnualSavings        float64 `json:"total_annual_savings"`
	EnergyChargedKWh          float64 `json:"energy_charged_kwh"`
	EnergyDischargedKWh       float64 `json:"energy_discharged_kwh"`
	TotalChargeCost           float64 `json:"total_charge_cost"`
	FinalSOCPercent           float64 `json:"final_soc_percent"`

	// Payback is set when the evaluator knows the investment cost.
	Payback *sizing.Payback `json:"payback,omitempty"`
}

// PeriodResult is the per-day trace plus its summary.
type PeriodResult struct {
	Summary Summary                `json:"summary"`
	Days    []dispatch.DailyResult `json:"daily_records"`
}

// Evaluator runs whole-period simulations for one tariff and battery.
type Evaluator struct {
	schedule tariff.Schedule
	params   dispatch.Params
	logger   *zap.Logger

	// InvestmentCost, when positive, adds a payback evaluation to the summary.
	InvestmentCost float64
	// OnDay, when set, receives each day as soon as it is simulated.
	OnDay func(dispatch.DailyResult)
}

func New(schedule tariff.Schedule, params dispatch.Params, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{schedule: schedule, params: params, logger: logger}
}

var errEmptySeries = errors.New("no demand samples to simulate")

// SimulatePeriod groups series by calendar date and replays every day in
// chronological order, carrying the battery state from one day to the next.
func (e *Evaluator) SimulatePeriod(series model.TimeSeries) model.Result[PeriodResult] {
	return model.Guard("simulate period", func() model.Result[PeriodResult] {
		out, err := e.simulate(series)
		if err != nil {
			e.logger.Warn("simulation failed",
				zap.String("op", "finance.SimulatePeriod"),
				zap.Int("samples", len(series)),
				zap.Error(err),
			)
			return model.Fail[PeriodResult](err.Error())
		}
		e.logger.Info("simulated period",
			zap.String("op", "finance.SimulatePeriod"),
			zap.Int("days", out.Summary.DaysSimulated),
			zap.Float64("total_annual_savings", out.Summary.TotalAnnualSavings),
		)
		return model.Succeed(out)
	})
}

func (e *Evaluator) simulate(series model.TimeSeries) (PeriodResult, error) {
	if len(series) == 0 {
		return PeriodResult{}, errEmptySeries
	}
	contracted := series.MaxPower()
	sim, err := dispatch.New(e.schedule, e.params, contracted, e.logger)
	if err != nil {
		return PeriodResult{}, err
	}

	days := dispatch.GroupDays(series)
	records := make([]dispatch.DailyResult, 0, len(days))
	state := sim.InitialState()
	for _, day := range days {
		var rec dispatch.DailyResult
		rec, state = sim.SimulateDay(state, day)
		records = append(records, rec)
		if e.OnDay != nil {
			e.OnDay(rec)
		}
	}

	sum := e.summarize(records)
	sum.Strategy = string(sim.Strategy())
	sum.ContractedDemandKW = mathutil.Round2(contracted)
	sum.FinalSOCPercent = mathutil.Round1(state.SOCPercent())
	return PeriodResult{Summary: sum, Days: records}, nil
}

func (e *Evaluator) summarize(days []dispatch.DailyResult) Summary {
	s := Summary{DaysSimulated: len(days)}
	if len(days) == 0 {
		return s
	}
	s.StartDate = days[0].Date
	s.EndDate = days[len(days)-1].Date

	var total, reduction, charged, discharged, cost float64
	for _, d := range days {
		total += d.NetEconomy
		reduction += d.ReductionKW
		charged += d.EnergyChargedKWh
		discharged += d.EnergyDischargedKWh
		cost += d.ChargeCost
	}
	n := float64(len(days))
	annualized := total * daysPerYear / n
	meanReduction := reduction / n
	demandSavings := meanReduction * e.schedule.DemandChargePerKWMonth * sizing.MonthsPerYear

	s.TotalSavingsPeriod = mathutil.Round2(total)
	s.AnnualizedSavings = mathutil.Round2(annualized)
	s.MeanDemandReductionKW = mathutil.Round2(meanReduction)
	s.DemandChargeSavingsAnnual = mathutil.Round2(demandSavings)
	s.TotalAnnualSavings = mathutil.Round2(annualized + demandSavings)
	s.EnergyChargedKWh = mathutil.Round2(charged)
	s.EnergyDischargedKWh = mathutil.Round2(discharged)
	s.TotalChargeCost = mathutil.Round2(cost)

	if e.InvestmentCost > 0 {
		pb := sizing.CalculatePayback(e.InvestmentCost, s.TotalAnnualSavings)
		s.Payback = &pb
	}
	return s
}
