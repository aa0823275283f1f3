package strategy

import "math"

const (
	solarFirstHour = 6
	solarLastHour  = 18 // exclusive
	solarNoon      = 12
	solarSigma     = 3
)

// SolarFactor is a bell-shaped generation estimate over [6, 18) peaking at
// 1.0 at noon and zero outside the window.
func SolarFactor(hour int) float64 {
	if hour < solarFirstHour || hour >= solarLastHour {
		return 0
	}
	d := float64(hour - solarNoon)
	return math.Exp(-(d * d) / (2 * solarSigma * solarSigma))
}

// SolarStrategy charges from on-site PV. Energy is free; the amount follows
// SolarFactor scaled to Scale times battery power.
type SolarStrategy struct {
	Scale float64
}

func (s *SolarStrategy) Name() Name { return Solar }

func (s *SolarStrategy) Decide(ctx Context) Charge {
	available := SolarFactor(ctx.Hour) * s.Scale * ctx.Battery.PowerLimitKW
	if available <= 0 {
		return Charge{}
	}
	return Charge{EnergyKWh: available}
}
