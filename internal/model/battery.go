package model

import "math"

// BatteryParams defines the sized ratings of the battery.
// Units:
// - PowerKW: kW (charge and discharge limit, symmetric)
// - CapacityKWh: kWh of usable energy
type BatteryParams struct {
	PowerKW     float64 `json:"power_kw" yaml:"power_kw"`
	CapacityKWh float64 `json:"capacity_kwh" yaml:"capacity_kwh"`
}

func (p BatteryParams) Validate() error {
	if p.PowerKW < 0 || math.IsNaN(p.PowerKW) {
		return Invalid("battery.power_kw", "must be >= 0, got %v", p.PowerKW)
	}
	if p.CapacityKWh < 0 || math.IsNaN(p.CapacityKWh) {
		return Invalid("battery.capacity_kwh", "must be >= 0, got %v", p.CapacityKWh)
	}
	return nil
}

// BatteryState is the battery at an hourly boundary.
//
// It is a plain value. Charge and Discharge return the next state instead of
// mutating the receiver, so whoever steps the battery owns the sequence.
// The simulator steps one hour at a time, which makes kW and kWh per step
// interchangeable.
type BatteryState struct {
	SOCKWh       float64 `json:"soc_kwh"`
	CapacityKWh  float64 `json:"capacity_kwh"`
	PowerLimitKW float64 `json:"power_limit_kw"`
}

// NewBatteryState builds the starting state at initialSOCPercent of capacity.
func NewBatteryState(params BatteryParams, initialSOCPercent float64) (BatteryState, error) {
	if err := params.Validate(); err != nil {
		return BatteryState{}, err
	}
	if initialSOCPercent < 0 || initialSOCPercent > 100 || math.IsNaN(initialSOCPercent) {
		return BatteryState{}, Invalid("initial_soc_percent", "must be within [0, 100], got %v", initialSOCPercent)
	}
	return BatteryState{
		SOCKWh:       params.CapacityKWh * initialSOCPercent / 100,
		CapacityKWh:  params.CapacityKWh,
		PowerLimitKW: params.PowerKW,
	}, nil
}

// Headroom is the energy that can still be stored.
func (s BatteryState) Headroom() float64 {
	return math.Max(0, s.CapacityKWh-s.SOCKWh)
}

// SOCPercent is 0 for a zero-capacity battery.
func (s BatteryState) SOCPercent() float64 {
	if s.CapacityKWh <= 0 {
		return 0
	}
	return s.SOCKWh / s.CapacityKWh * 100
}

// Charge stores up to requestedKWh over one hour, clipped by the power limit
// and the remaining headroom. It returns the next state and the energy stored.
func (s BatteryState) Charge(requestedKWh float64) (BatteryState, float64) {
	e := math.Min(requestedKWh, s.PowerLimitKW)
	e = math.Min(e, s.Headroom())
	if e <= 0 || math.IsNaN(e) {
		return s, 0
	}
	s.SOCKWh = clamp(s.SOCKWh+e, 0, s.CapacityKWh)
	return s, e
}

// Discharge withdraws up to requestedKWh over one hour, clipped by the power
// limit and the stored energy. It returns the next state and the energy delivered.
func (s BatteryState) Discharge(requestedKWh float64) (BatteryState, float64) {
	e := math.Min(requestedKWh, s.PowerLimitKW)
	e = math.Min(e, s.SOCKWh)
	if e <= 0 || math.IsNaN(e) {
		return s, 0
	}
	s.SOCKWh = clamp(s.SOCKWh-e, 0, s.CapacityKWh)
	return s, e
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
