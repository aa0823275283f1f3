package models

import (
	"encoding/json"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/analysis"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/finance"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
)

// AnalyzeResponse describes a series without reference to any battery.
type AnalyzeResponse struct {
	Info   data.SeriesInfo `json:"info"`
	Report analysis.Report `json:"report"`
}

// CompareResponse lists the feasible variations first, best ROI on top.
type CompareResponse struct {
	Variations []sizing.Variation `json:"variations"`
}

// SimulateResponse is a successful simulation. Days is only filled when
// requested; a persisted run can be fetched again by ID.
type SimulateResponse struct {
	ID           string                 `json:"id,omitempty"`
	Dimensioning *sizing.Report         `json:"dimensioning,omitempty"`
	Battery      model.BatteryParams    `json:"battery"`
	Summary      finance.Summary        `json:"summary"`
	Days         []dispatch.DailyResult `json:"daily_records,omitempty"`
}

// RunResponse is a stored simulation without its daily records.
type RunResponse struct {
	ID        string          `json:"id"`
	UploadID  string          `json:"upload_id,omitempty"`
	Strategy  string          `json:"strategy"`
	Request   json.RawMessage `json:"request,omitempty"`
	Summary   finance.Summary `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
}

// UploadResponse is returned after a vendor file is ingested.
type UploadResponse struct {
	ID       string          `json:"id"`
	Filename string          `json:"filename"`
	Info     data.SeriesInfo `json:"info"`
	Warnings []data.Warning  `json:"warnings"`
}

// TariffInfo represents a tariff preset or a saved tariff.
type TariffInfo struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	File   string              `json:"file,omitempty"`
	Tariff config.TariffConfig `json:"tariff"`
}

// StrategyInfo represents information about a strategy
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
