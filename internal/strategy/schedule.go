package strategy

import (
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// ScheduleStrategy implements grid-offpeak charging: charge at full battery
// power from the grid during [ChargeStartHour, ChargeEndHour), otherwise
// stay idle. Hours are local to the series timestamps.
type ScheduleStrategy struct {
	ChargeStartHour int
	ChargeEndHour   int
}

func NewScheduleStrategy(start, end int) (*ScheduleStrategy, error) {
	if start < 0 || start > 24 || end < 0 || end > 24 {
		return nil, model.Invalid("dispatch.grid_charge_hours", "must be within [0, 24], got [%d, %d)", start, end)
	}
	return &ScheduleStrategy{ChargeStartHour: start, ChargeEndHour: end}, nil
}

func (s *ScheduleStrategy) Name() Name { return GridOffPeak }

func (s *ScheduleStrategy) Decide(ctx Context) Charge {
	if !inWindow(ctx.Hour, s.ChargeStartHour, s.ChargeEndHour) {
		return Charge{}
	}
	return Charge{EnergyKWh: ctx.Battery.PowerLimitKW, FromGrid: true}
}

// inWindow checks whether hour is in [start, end) on a 24h clock.
// If start == end, the window is empty (always false).
// If start < end, it's a normal same-day window.
// If start > end, it wraps across midnight.
func inWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	// wrap
	return hour >= start || hour < end
}
