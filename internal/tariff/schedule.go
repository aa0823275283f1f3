// Package tariff classifies timestamps into time-of-use bands and prices them.
package tariff

import (
	"fmt"
	"strings"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// Band is a tariff period. Values are stable; they appear in JSON and CSV output.
type Band string

const (
	BandPeak         Band = "peak"
	BandIntermediate Band = "intermediate"
	BandOffPeak      Band = "off_peak"
)

// Window is the hour range [StartHour, EndHour) on the listed weekdays.
// An empty Weekdays list matches every day.
type Window struct {
	StartHour   int            `json:"start_hour"`
	EndHour     int            `json:"end_hour"`
	Weekdays    []time.Weekday `json:"weekdays,omitempty"`
	PricePerKWh float64        `json:"price_per_kwh"`
}

func (w Window) Contains(t time.Time) bool {
	if !w.onDay(t.Weekday()) {
		return false
	}
	h := t.Hour()
	return h >= w.StartHour && h < w.EndHour
}

func (w Window) onDay(d time.Weekday) bool {
	if len(w.Weekdays) == 0 {
		return true
	}
	for _, wd := range w.Weekdays {
		if wd == d {
			return true
		}
	}
	return false
}

func (w Window) DurationHours() float64 {
	if w.EndHour <= w.StartHour {
		return 0
	}
	return float64(w.EndHour - w.StartHour)
}

func (w Window) validate(name string) error {
	if w.StartHour < 0 || w.StartHour > 24 || w.EndHour < 0 || w.EndHour > 24 {
		return model.Invalid(name, "hours must be within [0, 24], got [%d, %d)", w.StartHour, w.EndHour)
	}
	if w.StartHour > w.EndHour {
		return model.Invalid(name, "start hour %d is after end hour %d", w.StartHour, w.EndHour)
	}
	if w.PricePerKWh < 0 {
		return model.Invalid(name, "price must be >= 0, got %v", w.PricePerKWh)
	}
	return nil
}

// Schedule is a two-window time-of-use tariff plus a monthly demand charge.
// Windows are checked in priority order: peak, intermediate, else off-peak.
type Schedule struct {
	Peak                   Window  `json:"peak"`
	Intermediate           Window  `json:"intermediate"`
	OffPeakPrice           float64 `json:"off_peak_price_per_kwh"`
	DemandChargePerKWMonth float64 `json:"demand_charge_per_kw_month"`
	// OverageTolerancePercent is carried for reporting; dispatch does not use it.
	OverageTolerancePercent float64 `json:"overage_tolerance_percent"`
}

// BusinessDays is Monday through Friday.
func BusinessDays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// Default returns the reference tariff: peak 18-21h and intermediate 17-22h on
// business days.
func Default() Schedule {
	return Schedule{
		Peak:                    Window{StartHour: 18, EndHour: 21, Weekdays: BusinessDays(), PricePerKWh: 1.71},
		Intermediate:            Window{StartHour: 17, EndHour: 22, Weekdays: BusinessDays(), PricePerKWh: 1.12},
		OffPeakPrice:            0.72,
		DemandChargePerKWMonth:  50,
		OverageTolerancePercent: 20,
	}
}

func (s Schedule) Validate() error {
	if err := s.Peak.validate("tariff.peak"); err != nil {
		return err
	}
	if err := s.Intermediate.validate("tariff.intermediate"); err != nil {
		return err
	}
	if s.OffPeakPrice < 0 {
		return model.Invalid("tariff.off_peak_price", "must be >= 0, got %v", s.OffPeakPrice)
	}
	if s.DemandChargePerKWMonth < 0 {
		return model.Invalid("tariff.demand_charge", "must be >= 0, got %v", s.DemandChargePerKWMonth)
	}
	return nil
}

// Classify places t in exactly one band.
func (s Schedule) Classify(t time.Time) Band {
	switch {
	case s.Peak.Contains(t):
		return BandPeak
	case s.Intermediate.Contains(t):
		return BandIntermediate
	default:
		return BandOffPeak
	}
}

func (s Schedule) Price(t time.Time) float64 {
	return s.PriceFor(s.Classify(t))
}

func (s Schedule) PriceFor(b Band) float64 {
	switch b {
	case BandPeak:
		return s.Peak.PricePerKWh
	case BandIntermediate:
		return s.Intermediate.PricePerKWh
	default:
		return s.OffPeakPrice
	}
}

// PeakDurationHours is peak end minus peak start.
func (s Schedule) PeakDurationHours() float64 {
	return s.Peak.DurationHours()
}

// ParseWeekday accepts English names or their three-letter prefixes.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if n == full || n == full[:3] {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
