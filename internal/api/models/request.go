package models

import (
	"errors"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// ScenarioConfig is the request-side scenario. Unset fields fall back to a
// tariff preset (TariffFile) and then to the built-in defaults.
type ScenarioConfig struct {
	// Preset id under the tariff directory, e.g. "early_evening".
	TariffFile string                `json:"tariff_file,omitempty"`
	Tariff     config.TariffConfig   `json:"tariff,omitempty"`
	Battery    config.BatteryConfig  `json:"battery,omitempty"`
	Dispatch   config.DispatchConfig `json:"dispatch,omitempty"`
	Sizing     config.SizingConfig   `json:"sizing,omitempty"`
}

// SeriesInput is either an inline series or a reference to a stored upload.
type SeriesInput struct {
	Timestamps []string  `json:"timestamps,omitempty"`
	PowerKW    []float64 `json:"power_kw,omitempty"`
	UploadID   string    `json:"upload_id,omitempty"`
}

var ErrNoSeries = errors.New("series requires timestamps and power_kw, or upload_id")

// Inline converts the inline form. Callers check UploadID first.
func (s SeriesInput) Inline() (model.TimeSeries, error) {
	if len(s.Timestamps) == 0 && len(s.PowerKW) == 0 {
		return nil, ErrNoSeries
	}
	return model.NewTimeSeries(s.Timestamps, s.PowerKW)
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Series SeriesInput    `json:"series"`
	Config ScenarioConfig `json:"config,omitempty"`
	// Workers bounds the concurrent peak reduction; 0 means one per CPU.
	Workers int `json:"workers,omitempty"`
}

// DimensionRequest is the body of POST /api/v1/dimension.
type DimensionRequest struct {
	Series SeriesInput    `json:"series"`
	Config ScenarioConfig `json:"config,omitempty"`
}

// CompareRequest sizes the same series once per reduction target.
type CompareRequest struct {
	Series     SeriesInput    `json:"series"`
	Config     ScenarioConfig `json:"config,omitempty"`
	Reductions []float64      `json:"reductions" binding:"required,min=1"`
}

// SimulateRequest is the body of POST /api/v1/simulate. A zero battery
// means "dimension first".
type SimulateRequest struct {
	Series  SeriesInput     `json:"series"`
	Config  ScenarioConfig  `json:"config,omitempty"`
	Options SimulateOptions `json:"options,omitempty"`
}

type SimulateOptions struct {
	IncludeDays bool `json:"include_days,omitempty"` // default: false
	Persist     bool `json:"persist,omitempty"`
}

// StreamStart is the first message a stream client sends.
type StreamStart struct {
	Config ScenarioConfig `json:"config,omitempty"`
}

// SaveTariffRequest is the body of POST /api/v1/tariffs.
type SaveTariffRequest struct {
	Name   string              `json:"name" binding:"required"`
	Tariff config.TariffConfig `json:"tariff"`
}
