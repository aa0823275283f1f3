package dispatch

import (
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// HourRecord is one simulated hour.
// This is the primary artifact for "what happened" in a simulation.
type HourRecord struct {
	Hour      int          `json:"hour"`
	Timestamp time.Time    `json:"timestamp"`
	Band      tariff.Band  `json:"band"`
	Action    model.Action `json:"action"`

	OriginalKW float64 `json:"original_kw"`
	ShavedKW   float64 `json:"shaved_kw"`

	ChargedKWh    float64 `json:"charged_kwh"`
	DischargedKWh float64 `json:"discharged_kwh"`

	SOCStartKWh float64 `json:"soc_start_kwh"`
	SOCEndKWh   float64 `json:"soc_end_kwh"`

	ChargeCost       float64 `json:"charge_cost"`
	DischargeSavings float64 `json:"discharge_savings"`
}

// DailyResult is the immutable record of one simulated calendar day.
// SOCPercent has 25 points: the start of each hour plus the end of the day.
type DailyResult struct {
	Date string `json:"date"`

	OriginalKW []float64    `json:"original_kw"`
	ShavedKW   []float64    `json:"shaved_kw"`
	SOCPercent []float64    `json:"soc_percent"`
	Hours      []HourRecord `json:"hours"`

	PeakOriginalKW float64 `json:"peak_original_kw"`
	PeakShavedKW   float64 `json:"peak_shaved_kw"`
	ReductionKW    float64 `json:"reduction_kw"`

	EnergyChargedKWh    float64 `json:"energy_charged_kwh"`
	EnergyDischargedKWh float64 `json:"energy_discharged_kwh"`
	ChargeCost          float64 `json:"charge_cost"`
	DischargeSavings    float64 `json:"discharge_savings"`
	NetEconomy          float64 `json:"net_economy"`

	StartSOCPercent float64 `json:"start_soc_percent"`
	EndSOCPercent   float64 `json:"end_soc_percent"`
}
