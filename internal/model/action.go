package model

// Action is a human-friendly operating mode for a simulated hour.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
)

// ActionFromEnergy labels an hour by what the battery did. Discharge wins
// when a custom window lets both happen in the same hour.
func ActionFromEnergy(chargedKWh, dischargedKWh float64) Action {
	switch {
	case dischargedKWh > 0:
		return ActionDischarging
	case chargedKWh > 0:
		return ActionCharging
	default:
		return ActionIdle
	}
}
