// Package sizing recommends battery power and capacity for a peak-shaving
// target and evaluates the investment.
package sizing

import (
	"encoding/json"
	"math"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/mathutil"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

const (
	// SafetyMargin oversizes capacity by 20%.
	SafetyMargin        = 1.2
	BusinessDaysPerYear = 252
	MonthsPerYear       = 12
	HorizonYears        = 10
)

// RequiredPower is the discharge power that removes reductionPercent of the
// peak-window maximum. It is 0 when there is no peak signal.
func RequiredPower(peakMaxKW, reductionPercent float64) float64 {
	if peakMaxKW <= 0 || reductionPercent <= 0 {
		return 0
	}
	return mathutil.Round1(peakMaxKW * reductionPercent / 100)
}

// RequiredCapacity is the energy needed to hold powerKW through the peak
// window cyclesPerDay times, plus the safety margin.
func RequiredCapacity(powerKW, cyclesPerDay, peakDurationHours float64) float64 {
	if powerKW <= 0 || cyclesPerDay <= 0 || peakDurationHours <= 0 {
		return 0
	}
	return mathutil.Round1(powerKW * peakDurationHours * cyclesPerDay * SafetyMargin)
}

type Economics struct {
	DemandSavingsAnnual       float64 `json:"demand_savings_annual"`
	EnergySavingsAnnual       float64 `json:"energy_savings_annual"`
	TotalSavingsAnnual        float64 `json:"total_savings_annual"`
	DemandReductionKW         float64 `json:"demand_reduction_kw"`
	EnergyDischargedAnnualKWh float64 `json:"energy_discharged_annual_kwh"`
}

// AnnualSavings estimates yearly savings for a battery discharging powerKW
// through the peak window on business days. Discharged energy is valued at
// the peak price and its recharge is charged at the off-peak price.
func AnnualSavings(powerKW, utilization float64, schedule tariff.Schedule) Economics {
	if powerKW <= 0 {
		return Economics{}
	}
	demandReduction := powerKW * utilization
	demandSavings := demandReduction * schedule.DemandChargePerKWMonth * MonthsPerYear

	dailyKWh := powerKW * schedule.PeakDurationHours() * utilization
	annualKWh := dailyKWh * BusinessDaysPerYear
	energySavings := annualKWh*schedule.Peak.PricePerKWh - annualKWh*schedule.OffPeakPrice

	return Economics{
		DemandSavingsAnnual:       mathutil.Round2(demandSavings),
		EnergySavingsAnnual:       mathutil.Round2(energySavings),
		TotalSavingsAnnual:        mathutil.Round2(demandSavings + energySavings),
		DemandReductionKW:         mathutil.Round2(demandReduction),
		EnergyDischargedAnnualKWh: mathutil.Round2(annualKWh),
	}
}

// Payback evaluates an investment over a fixed 10-year horizon.
// PaybackYears is +Inf when the savings never cover the investment.
type Payback struct {
	PaybackYears  float64 `json:"payback_years"`
	ROIPercent10y float64 `json:"roi_percent_10y"`
	Profit10y     float64 `json:"profit_10y"`
	Feasible      bool    `json:"feasible"`
}

func CalculatePayback(investment, annualSavings float64) Payback {
	if annualSavings <= 0 {
		return Payback{
			PaybackYears: math.Inf(1),
			Profit10y:    mathutil.Round2(-investment),
		}
	}
	years := investment / annualSavings
	profit := annualSavings*HorizonYears - investment
	roi := 0.0
	if investment > 0 {
		roi = profit / investment * 100
	}
	return Payback{
		PaybackYears:  mathutil.Round1(years),
		ROIPercent10y: mathutil.Round1(roi),
		Profit10y:     mathutil.Round2(profit),
		Feasible:      years <= HorizonYears,
	}
}

// MarshalJSON writes an infinite payback as null; JSON has no infinity.
func (p Payback) MarshalJSON() ([]byte, error) {
	type alias Payback
	var years *float64
	if !math.IsInf(p.PaybackYears, 0) && !math.IsNaN(p.PaybackYears) {
		years = &p.PaybackYears
	}
	return json.Marshal(struct {
		alias
		PaybackYears *float64 `json:"payback_years"`
	}{alias(p), years})
}

// UnmarshalJSON reads a null payback back as +Inf.
func (p *Payback) UnmarshalJSON(raw []byte) error {
	type alias Payback
	var aux struct {
		alias
		PaybackYears *float64 `json:"payback_years"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	*p = Payback(aux.alias)
	p.PaybackYears = math.Inf(1)
	if aux.PaybackYears != nil {
		p.PaybackYears = *aux.PaybackYears
	}
	return nil
}
