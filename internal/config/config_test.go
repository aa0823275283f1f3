package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/strategy"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultMatchesEngineDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	sched, err := c.Tariff.ToSchedule()
	require.NoError(t, err)
	assert.Equal(t, tariff.Default(), sched)

	p := c.ToDispatchParams(model.BatteryParams{PowerKW: 10, CapacityKWh: 20})
	assert.Equal(t, strategy.Solar, p.Strategy)
	assert.Equal(t, 50.0, p.InitialSOCPercent)
	assert.Equal(t, 0.7, p.DischargeFloorFraction)
	assert.Equal(t, strategy.DefaultParams(), p.StrategyParams)

	sp := c.ToSizingParams()
	assert.Equal(t, 20.0, sp.ReductionPercent)
	assert.Equal(t, 1.0, sp.CyclesPerDay)
	assert.Equal(t, 0.8, sp.Utilization)
}

func TestLoadAppliesDefaultsAndTariffFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "preset.yaml", `
tariff:
  name: preset
  peak_start_hour: 17
  peak_end_hour: 20
  peak_price: 2.0
  demand_charge: 40
`)
	path := writeFile(t, dir, "scenario.yaml", `
tariff_file: preset.yaml
tariff:
  demand_charge: 55
dispatch:
  strategy: grid-offpeak
  initial_soc_percent: 0
sizing:
  investment_cost: 1000
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "preset", c.Tariff.Name)
	assert.Equal(t, 55.0, c.Tariff.DemandCharge)
	assert.Equal(t, 2.0, c.Tariff.PeakPrice)
	assert.Equal(t, 0.72, c.Tariff.OffPeakPrice, "unset fields fall back to defaults")

	sched, err := c.Tariff.ToSchedule()
	require.NoError(t, err)
	assert.Equal(t, 3.0, sched.PeakDurationHours())
	assert.Equal(t, tariff.BandPeak, sched.Classify(time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)))

	p := c.ToDispatchParams(c.Battery.ToModelParams())
	assert.Equal(t, strategy.GridOffPeak, p.Strategy)
	assert.Equal(t, 0.0, p.InitialSOCPercent, "explicit zero SOC survives defaults")
	assert.Equal(t, 1000.0, c.ToSizingParams().InvestmentCost)
	assert.Equal(t, 20.0, c.Sizing.ReductionPercent)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"unknown strategy", "dispatch:\n  strategy: diesel\n"},
		{"bad hours", "tariff:\n  peak_start_hour: 22\n  peak_end_hour: 20\n"},
		{"bad weekday", "tariff:\n  weekdays: [funday]\n"},
		{"negative battery", "battery:\n  power_kw: -1\n"},
		{"soc out of range", "dispatch:\n  initial_soc_percent: 120\n"},
		{"reduction out of range", "sizing:\n  reduction_percent: 150\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "c.yaml", tt.body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMergeTariff(t *testing.T) {
	h := 7
	base := Default().Tariff
	out := MergeTariff(base, TariffConfig{PeakStartHour: &h, Weekdays: []string{"sat"}})
	assert.Equal(t, 7, *out.PeakStartHour)
	assert.Equal(t, *base.PeakEndHour, *out.PeakEndHour)
	assert.Equal(t, []string{"sat"}, out.Weekdays)
	assert.Equal(t, base.PeakPrice, out.PeakPrice)
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("API_PORT", "9191")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173,https://bess.example")

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "9191", s.Port)
	assert.Equal(t, ":9191", s.Addr())
	assert.Equal(t, 30*time.Second, s.CacheTTL)
	assert.Equal(t, "./tariffs", s.TariffDir)
	assert.False(t, s.IsProduction())
	assert.Equal(t, []string{"http://localhost:5173", "https://bess.example"}, s.CORSOrigins)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Format: "console"}, "debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "loud"}, "")
	assert.Error(t, err)
	_, err = NewLogger(LoggingConfig{Format: "xml"}, "")
	assert.Error(t, err)
}
