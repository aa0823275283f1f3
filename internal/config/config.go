package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/strategy"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

// Config is the on-disk scenario configuration (YAML).
type Config struct {
	// Optional: load tariff parameters from a preset file (e.g. tariffs/*.yaml).
	// Fields set in Tariff override the ones from TariffFile.
	TariffFile string         `yaml:"tariff_file" json:"tariff_file,omitempty"`
	Tariff     TariffConfig   `yaml:"tariff" json:"tariff"`
	Battery    BatteryConfig  `yaml:"battery" json:"battery"`
	Dispatch   DispatchConfig `yaml:"dispatch" json:"dispatch"`
	Sizing     SizingConfig   `yaml:"sizing" json:"sizing"`
	Logging    LoggingConfig  `yaml:"logging" json:"-"`
}

// TariffConfig describes a time-of-use tariff. Hour fields are pointers
// because 0 is a valid hour; nil means "use the default".
type TariffConfig struct {
	Name string `yaml:"name" json:"name,omitempty"`

	PeakStartHour         *int `yaml:"peak_start_hour" json:"peak_start_hour,omitempty"`
	PeakEndHour           *int `yaml:"peak_end_hour" json:"peak_end_hour,omitempty"`
	IntermediateStartHour *int `yaml:"intermediate_start_hour" json:"intermediate_start_hour,omitempty"`
	IntermediateEndHour   *int `yaml:"intermediate_end_hour" json:"intermediate_end_hour,omitempty"`
	// Weekdays the peak and intermediate windows apply on, e.g. ["mon", "tue"].
	// Empty means Monday to Friday.
	Weekdays []string `yaml:"weekdays" json:"weekdays,omitempty"`

	PeakPrice               float64 `yaml:"peak_price" json:"peak_price,omitempty"`
	IntermediatePrice       float64 `yaml:"intermediate_price" json:"intermediate_price,omitempty"`
	OffPeakPrice            float64 `yaml:"off_peak_price" json:"off_peak_price,omitempty"`
	DemandCharge            float64 `yaml:"demand_charge" json:"demand_charge,omitempty"`
	OverageTolerancePercent float64 `yaml:"overage_tolerance_percent" json:"overage_tolerance_percent,omitempty"`
}

// BatteryConfig is an explicit battery. Zero power and capacity mean "use
// the sized battery" for commands that dimension first.
type BatteryConfig struct {
	PowerKW     float64 `yaml:"power_kw" json:"power_kw"`
	CapacityKWh float64 `yaml:"capacity_kwh" json:"capacity_kwh"`
}

func (b BatteryConfig) IsZero() bool { return b.PowerKW == 0 && b.CapacityKWh == 0 }

func (b BatteryConfig) ToModelParams() model.BatteryParams {
	return model.BatteryParams{PowerKW: b.PowerKW, CapacityKWh: b.CapacityKWh}
}

type DispatchConfig struct {
	Strategy               string   `yaml:"strategy" json:"strategy,omitempty"`
	InitialSOCPercent      *float64 `yaml:"initial_soc_percent" json:"initial_soc_percent,omitempty"`
	DischargeFloorFraction *float64 `yaml:"discharge_floor_fraction" json:"discharge_floor_fraction,omitempty"`
	SolarScale             *float64 `yaml:"solar_scale" json:"solar_scale,omitempty"`
	GridChargeStartHour    *int     `yaml:"grid_charge_start_hour" json:"grid_charge_start_hour,omitempty"`
	GridChargeEndHour      *int     `yaml:"grid_charge_end_hour" json:"grid_charge_end_hour,omitempty"`
}

type SizingConfig struct {
	ReductionPercent float64 `yaml:"reduction_percent" json:"reduction_percent,omitempty"`
	CyclesPerDay     float64 `yaml:"cycles_per_day" json:"cycles_per_day,omitempty"`
	Utilization      float64 `yaml:"utilization" json:"utilization,omitempty"`
	InvestmentCost   float64 `yaml:"investment_cost" json:"investment_cost,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// Default is the complete default scenario. Every default the engine knows
// about lives here.
func Default() *Config {
	sched := tariff.Default()
	sp := strategy.DefaultParams()
	return &Config{
		Tariff: TariffConfig{
			Name:                    "default",
			PeakStartHour:           ptr(sched.Peak.StartHour),
			PeakEndHour:             ptr(sched.Peak.EndHour),
			IntermediateStartHour:   ptr(sched.Intermediate.StartHour),
			IntermediateEndHour:     ptr(sched.Intermediate.EndHour),
			Weekdays:                []string{"mon", "tue", "wed", "thu", "fri"},
			PeakPrice:               sched.Peak.PricePerKWh,
			IntermediatePrice:       sched.Intermediate.PricePerKWh,
			OffPeakPrice:            sched.OffPeakPrice,
			DemandCharge:            sched.DemandChargePerKWMonth,
			OverageTolerancePercent: sched.OverageTolerancePercent,
		},
		Dispatch: DispatchConfig{
			Strategy:               string(strategy.Solar),
			InitialSOCPercent:      ptr(50.0),
			DischargeFloorFraction: ptr(0.7),
			SolarScale:             ptr(sp.SolarScale),
			GridChargeStartHour:    ptr(sp.GridChargeStartHour),
			GridChargeEndHour:      ptr(sp.GridChargeEndHour),
		},
		Sizing: SizingConfig{
			ReductionPercent: 20,
			CyclesPerDay:     1,
			Utilization:      0.8,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not apply defaults or
// validate it. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.TariffFile != "" {
		tariffPath := c.TariffFile
		if !filepath.IsAbs(tariffPath) {
			// Relative to the config file first, then to the cwd.
			cand := filepath.Join(filepath.Dir(path), tariffPath)
			if _, err := os.Stat(cand); err == nil {
				tariffPath = cand
			}
		}
		loaded, err := LoadTariffFile(tariffPath)
		if err != nil {
			return nil, err
		}
		c.Tariff = MergeTariff(loaded, c.Tariff)
	}
	return &c, nil
}

// ApplyDefaults fills every unset field from Default().
func (c *Config) ApplyDefaults() {
	d := Default()
	c.Tariff = MergeTariff(d.Tariff, c.Tariff)

	if c.Dispatch.Strategy == "" {
		c.Dispatch.Strategy = d.Dispatch.Strategy
	}
	fill(&c.Dispatch.InitialSOCPercent, d.Dispatch.InitialSOCPercent)
	fill(&c.Dispatch.DischargeFloorFraction, d.Dispatch.DischargeFloorFraction)
	fill(&c.Dispatch.SolarScale, d.Dispatch.SolarScale)
	fill(&c.Dispatch.GridChargeStartHour, d.Dispatch.GridChargeStartHour)
	fill(&c.Dispatch.GridChargeEndHour, d.Dispatch.GridChargeEndHour)

	if c.Sizing.ReductionPercent == 0 {
		c.Sizing.ReductionPercent = d.Sizing.ReductionPercent
	}
	if c.Sizing.CyclesPerDay == 0 {
		c.Sizing.CyclesPerDay = d.Sizing.CyclesPerDay
	}
	if c.Sizing.Utilization == 0 {
		c.Sizing.Utilization = d.Sizing.Utilization
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	sched, err := c.Tariff.ToSchedule()
	if err != nil {
		return err
	}
	if err := sched.Validate(); err != nil {
		return err
	}
	if err := c.ToSizingParams().Validate(); err != nil {
		return err
	}
	if err := c.ToDispatchParams(c.Battery.ToModelParams()).Validate(); err != nil {
		return err
	}
	return nil
}

// ToSchedule converts the tariff section. Unset fields fall back to the
// built-in defaults so a partial config still yields a usable schedule.
func (t TariffConfig) ToSchedule() (tariff.Schedule, error) {
	full := MergeTariff(Default().Tariff, t)
	days := make([]time.Weekday, 0, len(full.Weekdays))
	for _, name := range full.Weekdays {
		wd, err := tariff.ParseWeekday(name)
		if err != nil {
			return tariff.Schedule{}, err
		}
		days = append(days, wd)
	}
	return tariff.Schedule{
		Peak: tariff.Window{
			StartHour:   *full.PeakStartHour,
			EndHour:     *full.PeakEndHour,
			Weekdays:    days,
			PricePerKWh: full.PeakPrice,
		},
		Intermediate: tariff.Window{
			StartHour:   *full.IntermediateStartHour,
			EndHour:     *full.IntermediateEndHour,
			Weekdays:    days,
			PricePerKWh: full.IntermediatePrice,
		},
		OffPeakPrice:            full.OffPeakPrice,
		DemandChargePerKWMonth:  full.DemandCharge,
		OverageTolerancePercent: full.OverageTolerancePercent,
	}, nil
}

// ToDispatchParams builds simulator parameters for battery. Call after
// ApplyDefaults.
func (c *Config) ToDispatchParams(battery model.BatteryParams) dispatch.Params {
	d := c.Dispatch
	return dispatch.Params{
		Battery:  battery,
		Strategy: strategy.Name(d.Strategy),
		StrategyParams: strategy.Params{
			SolarScale:          deref(d.SolarScale),
			GridChargeStartHour: deref(d.GridChargeStartHour),
			GridChargeEndHour:   deref(d.GridChargeEndHour),
		},
		InitialSOCPercent:      deref(d.InitialSOCPercent),
		DischargeFloorFraction: deref(d.DischargeFloorFraction),
	}
}

func (c *Config) ToSizingParams() sizing.Params {
	return sizing.Params{
		ReductionPercent: c.Sizing.ReductionPercent,
		CyclesPerDay:     c.Sizing.CyclesPerDay,
		Utilization:      c.Sizing.Utilization,
		InvestmentCost:   c.Sizing.InvestmentCost,
	}
}

type tariffFileWrapper struct {
	Tariff TariffConfig `yaml:"tariff"`
}

// LoadTariffFile reads a preset holding a top-level "tariff:" section.
func LoadTariffFile(path string) (TariffConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TariffConfig{}, err
	}
	var w tariffFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return TariffConfig{}, fmt.Errorf("parse tariff %s: %w", path, err)
	}
	return w.Tariff, nil
}

// MergeTariff overlays set fields from override onto base.
// This is used when loading a tariff preset and then applying overrides from the request.
func MergeTariff(base, override TariffConfig) TariffConfig {
	out := base
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.PeakStartHour != nil {
		out.PeakStartHour = override.PeakStartHour
	}
	if override.PeakEndHour != nil {
		out.PeakEndHour = override.PeakEndHour
	}
	if override.IntermediateStartHour != nil {
		out.IntermediateStartHour = override.IntermediateStartHour
	}
	if override.IntermediateEndHour != nil {
		out.IntermediateEndHour = override.IntermediateEndHour
	}
	if len(override.Weekdays) > 0 {
		out.Weekdays = append([]string(nil), override.Weekdays...)
	}
	// Prices of 0 are indistinguishable from "unset" here; a free tariff band
	// is not a case we model.
	if override.PeakPrice != 0 {
		out.PeakPrice = override.PeakPrice
	}
	if override.IntermediatePrice != 0 {
		out.IntermediatePrice = override.IntermediatePrice
	}
	if override.OffPeakPrice != 0 {
		out.OffPeakPrice = override.OffPeakPrice
	}
	if override.DemandCharge != 0 {
		out.DemandCharge = override.DemandCharge
	}
	if override.OverageTolerancePercent != 0 {
		out.OverageTolerancePercent = override.OverageTolerancePercent
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func fill[T any](dst **T, def *T) {
	if *dst == nil && def != nil {
		v := *def
		*dst = &v
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
