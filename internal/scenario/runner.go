// Package scenario runs a full configured scenario: optional dimensioning
// followed by a whole-period dispatch simulation.
package scenario

import (
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/finance"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
)

// Outcome is what a scenario run produces. Dimensioning is set only when
// the battery was sized from the series rather than given explicitly.
type Outcome struct {
	Dimensioning *sizing.Report       `json:"dimensioning,omitempty"`
	Battery      model.BatteryParams  `json:"battery"`
	Period       finance.PeriodResult `json:"period"`
}

type Runner struct {
	logger *zap.Logger

	// OnDay is forwarded to the evaluator.
	OnDay func(dispatch.DailyResult)
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run expects cfg to have defaults applied. A zero battery in cfg means
// "dimension first and simulate the recommended size".
func (r *Runner) Run(cfg *config.Config, series model.TimeSeries) model.Result[Outcome] {
	return model.Guard("scenario", func() model.Result[Outcome] {
		sched, err := cfg.Tariff.ToSchedule()
		if err != nil {
			return model.Fail[Outcome](err.Error())
		}

		var out Outcome
		battery := cfg.Battery.ToModelParams()
		if cfg.Battery.IsZero() {
			res := sizing.New(sched, r.logger).Dimension(series, cfg.ToSizingParams())
			if !res.OK() {
				return model.Fail[Outcome](res.Reason())
			}
			report := res.Value()
			out.Dimensioning = &report
			battery = report.Sizing.Battery()
		}
		out.Battery = battery

		ev := finance.New(sched, cfg.ToDispatchParams(battery), r.logger)
		ev.InvestmentCost = cfg.Sizing.InvestmentCost
		ev.OnDay = r.OnDay
		period := ev.SimulatePeriod(series)
		if !period.OK() {
			return model.Fail[Outcome](period.Reason())
		}
		out.Period = period.Value()

		r.logger.Debug("scenario complete",
			zap.String("op", "scenario.Run"),
			zap.Bool("dimensioned", out.Dimensioning != nil),
			zap.Float64("power_kw", battery.PowerKW),
			zap.Float64("capacity_kwh", battery.CapacityKWh),
		)
		return model.Succeed(out)
	})
}
