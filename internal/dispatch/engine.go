// Package dispatch replays a demand series hour by hour against a sized
// battery, charging by policy and shaving the peak tariff window.
package dispatch

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/strategy"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// Params configure one simulation run.
type Params struct {
	Battery           model.BatteryParams
	Strategy          strategy.Name
	StrategyParams    strategy.Params
	InitialSOCPercent float64
	// DischargeFloorFraction caps shaving: discharge never pulls an hour
	// below this fraction of the contracted demand. A fixed 0.7 by default;
	// it is a tuning knob, not a derived optimum.
	DischargeFloorFraction float64
}

func (p Params) Validate() error {
	if err := p.Battery.Validate(); err != nil {
		return err
	}
	if _, err := strategy.ParseName(string(p.Strategy)); err != nil {
		return err
	}
	if p.InitialSOCPercent < 0 || p.InitialSOCPercent > 100 {
		return model.Invalid("dispatch.initial_soc_percent", "must be within [0, 100], got %v", p.InitialSOCPercent)
	}
	if p.DischargeFloorFraction < 0 || p.DischargeFloorFraction > 1 {
		return model.Invalid("dispatch.discharge_floor_fraction", "must be within [0, 1], got %v", p.DischargeFloorFraction)
	}
	return nil
}

// Simulator steps a battery through calendar days. It holds no battery
// state itself: SimulateDay takes the state in and hands the next one back.
type Simulator struct {
	schedule     tariff.Schedule
	policy       strategy.ChargePolicy
	params       Params
	contractedKW float64
	initial      model.BatteryState
	logger       *zap.Logger
}

// New builds a simulator. contractedDemandKW is the all-time observed peak
// the discharge floor is measured against.
func New(schedule tariff.Schedule, params Params, contractedDemandKW float64, logger *zap.Logger) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	policy, err := strategy.New(params.Strategy, params.StrategyParams)
	if err != nil {
		return nil, err
	}
	initial, err := model.NewBatteryState(params.Battery, params.InitialSOCPercent)
	if err != nil {
		return nil, fmt.Errorf("initial battery state: %w", err)
	}
	return &Simulator{
		schedule:     schedule,
		policy:       policy,
		params:       params,
		contractedKW: contractedDemandKW,
		initial:      initial,
		logger:       logger,
	}, nil
}

// InitialState is the battery at the start of the first simulated day.
func (s *Simulator) InitialState() model.BatteryState { return s.initial }

func (s *Simulator) Strategy() strategy.Name { return s.policy.Name() }

// SimulateDay runs hours 0-23 of day in order, starting from state, and
// returns the day's record with the end-of-day state to carry forward.
func (s *Simulator) SimulateDay(state model.BatteryState, day Day) (DailyResult, model.BatteryState) {
	original := day.HourlyPower()
	floorKW := s.params.DischargeFloorFraction * s.contractedKW

	res := DailyResult{
		Date:            day.Key(),
		OriginalKW:      make([]float64, 24),
		ShavedKW:        make([]float64, 24),
		SOCPercent:      make([]float64, 0, 25),
		Hours:           make([]HourRecord, 0, 24),
		StartSOCPercent: state.SOCPercent(),
	}
	res.SOCPercent = append(res.SOCPercent, state.SOCPercent())

	for h := 0; h < 24; h++ {
		ts := day.At(h)
		band := s.schedule.Classify(ts)
		rec := HourRecord{
			Hour:        h,
			Timestamp:   ts,
			Band:        band,
			OriginalKW:  original[h],
			SOCStartKWh: state.SOCKWh,
		}

		req := s.policy.Decide(strategy.Context{Hour: h, Timestamp: ts, Battery: state})
		state, rec.ChargedKWh = state.Charge(req.EnergyKWh)
		if req.FromGrid {
			rec.ChargeCost = rec.ChargedKWh * s.schedule.Price(ts)
		}

		rec.ShavedKW = original[h]
		if band == tariff.BandPeak {
			excess := math.Max(0, original[h]-floorKW)
			state, rec.DischargedKWh = state.Discharge(excess)
			rec.ShavedKW -= rec.DischargedKWh
			rec.DischargeSavings = rec.DischargedKWh * s.schedule.Peak.PricePerKWh
		}

		rec.SOCEndKWh = state.SOCKWh
		rec.Action = model.ActionFromEnergy(rec.ChargedKWh, rec.DischargedKWh)

		res.OriginalKW[h] = rec.OriginalKW
		res.ShavedKW[h] = rec.ShavedKW
		res.SOCPercent = append(res.SOCPercent, state.SOCPercent())
		res.Hours = append(res.Hours, rec)

		res.EnergyChargedKWh += rec.ChargedKWh
		res.EnergyDischargedKWh += rec.DischargedKWh
		res.ChargeCost += rec.ChargeCost
		res.DischargeSavings += rec.DischargeSavings
	}

	res.PeakOriginalKW = maxOf(res.OriginalKW)
	res.PeakShavedKW = maxOf(res.ShavedKW)
	res.ReductionKW = res.PeakOriginalKW - res.PeakShavedKW
	res.NetEconomy = res.DischargeSavings - res.ChargeCost
	res.EndSOCPercent = state.SOCPercent()

	s.logger.Debug("simulated day",
		zap.String("op", "dispatch.SimulateDay"),
		zap.String("date", res.Date),
		zap.Int("samples", len(day.Samples)),
		zap.Float64("reduction_kw", res.ReductionKW),
		zap.Float64("net_economy", res.NetEconomy),
		zap.Float64("end_soc_percent", res.EndSOCPercent),
	)
	return res, state
}

func maxOf(xs []float64) float64 {
	m := 0.0
	for i, x := range xs {
		if i == 0 || x > m {
			m = x
		}
	}
	return m
}
