package strategy

import (
	"strings"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// Name identifies a charge policy. Values are stable; they appear in configs
// and API requests.
type Name string

const (
	Solar       Name = "solar"
	GridOffPeak Name = "grid-offpeak"
)

// Names lists the supported policies in display order.
func Names() []Name {
	return []Name{Solar, GridOffPeak}
}

func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Names() {
		if n == known {
			return n, nil
		}
	}
	return "", model.Invalid("strategy", "unknown strategy %q (want one of %v)", s, Names())
}

// Context is what a policy sees for one simulated hour.
type Context struct {
	Hour      int
	Timestamp time.Time
	Battery   model.BatteryState
}

// Charge is the energy a policy wants to store this hour. FromGrid marks
// energy bought from the utility, which the simulator prices at the tariff.
type Charge struct {
	EnergyKWh float64
	FromGrid  bool
}

// ChargePolicy decides how much to charge each hour. Policies are selected
// once per simulation and hold no per-run state.
type ChargePolicy interface {
	Name() Name
	Decide(ctx Context) Charge
}

// Params tune the built-in policies.
type Params struct {
	// SolarScale is the share of battery power the PV array can deliver at noon.
	SolarScale float64
	// GridChargeStartHour and GridChargeEndHour bound the grid-offpeak window [start, end).
	GridChargeStartHour int
	GridChargeEndHour   int
}

func DefaultParams() Params {
	return Params{SolarScale: 0.8, GridChargeStartHour: 0, GridChargeEndHour: 6}
}

// New selects the policy for name.
func New(name Name, p Params) (ChargePolicy, error) {
	switch name {
	case Solar:
		if p.SolarScale < 0 {
			return nil, model.Invalid("dispatch.solar_scale", "must be >= 0, got %v", p.SolarScale)
		}
		return &SolarStrategy{Scale: p.SolarScale}, nil
	case GridOffPeak:
		s, err := NewScheduleStrategy(p.GridChargeStartHour, p.GridChargeEndHour)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, model.Invalid("strategy", "unknown strategy %q", name)
	}
}
