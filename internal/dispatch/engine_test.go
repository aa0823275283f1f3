package dispatch

import (
	"bytes"
	"encoding/csv"
	"math"
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

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func params(name strategy.Name, powerKW, capacityKWh, initialSOC float64) Params {
	return Params{
		Battery:                model.BatteryParams{PowerKW: powerKW, CapacityKWh: capacityKWh},
		Strategy:               name,
		StrategyParams:         strategy.DefaultParams(),
		InitialSOCPercent:      initialSOC,
		DischargeFloorFraction: 0.7,
	}
}

func flatDay(start time.Time, kw func(h int) float64) Day {
	d := Day{Date: start}
	for h := 0; h < 24; h++ {
		d.Samples = append(d.Samples, model.Sample{Timestamp: start.Add(time.Duration(h) * time.Hour), PowerKW: kw(h)})
	}
	return d
}

func TestGridOffPeakChargesUntilFull(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.GridOffPeak, 50, 100, 0), 100, nil)
	require.NoError(t, err)

	day := flatDay(monday, func(int) float64 { return 0 })
	res, end := sim.SimulateDay(sim.InitialState(), day)

	assert.InDelta(t, 50.0, res.Hours[0].ChargedKWh, 1e-9)
	assert.InDelta(t, 50.0, res.Hours[1].ChargedKWh, 1e-9)
	assert.InDelta(t, 100.0, res.Hours[1].SOCEndKWh, 1e-9)
	for h := 2; h < 6; h++ {
		assert.Zero(t, res.Hours[h].ChargedKWh, "hour %d", h)
		assert.Equal(t, model.ActionIdle, res.Hours[h].Action)
	}
	assert.Equal(t, model.ActionCharging, res.Hours[0].Action)
	assert.InDelta(t, 100*0.72, res.ChargeCost, 1e-9)
	assert.InDelta(t, -100*0.72, res.NetEconomy, 1e-9)
	assert.InDelta(t, 100.0, end.SOCKWh, 1e-9)
	assert.InDelta(t, 0.0, res.StartSOCPercent, 1e-9)
	assert.InDelta(t, 100.0, res.EndSOCPercent, 1e-9)
}

func TestSolarChargesAlongCurve(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.Solar, 50, 1000, 0), 100, nil)
	require.NoError(t, err)

	res, _ := sim.SimulateDay(sim.InitialState(), flatDay(monday, func(int) float64 { return 0 }))
	assert.InDelta(t, 1.0*0.8*50, res.Hours[12].ChargedKWh, 1e-9)
	assert.Zero(t, res.Hours[0].ChargedKWh)
	assert.Zero(t, res.Hours[23].ChargedKWh)
	assert.Zero(t, res.ChargeCost, "solar energy is free")
}

func TestDischargeOnlyInPeakWindowAboveFloor(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.Solar, 40, 144, 100), 200, nil)
	require.NoError(t, err)

	kw := func(h int) float64 {
		if h >= 18 && h < 21 {
			return 200
		}
		return 100
	}
	res, _ := sim.SimulateDay(sim.InitialState(), flatDay(monday, kw))

	for h, r := range res.Hours {
		if h >= 18 && h < 21 {
			assert.InDelta(t, 40.0, r.DischargedKWh, 1e-9, "hour %d", h)
			assert.InDelta(t, 160.0, r.ShavedKW, 1e-9)
			assert.InDelta(t, 40*1.71, r.DischargeSavings, 1e-9)
		} else {
			assert.Zero(t, r.DischargedKWh, "hour %d", h)
		}
	}
	assert.InDelta(t, 200.0, res.PeakOriginalKW, 1e-9)
	assert.InDelta(t, 160.0, res.PeakShavedKW, 1e-9)
	assert.InDelta(t, 40.0, res.ReductionKW, 1e-9)
}

func TestNoDischargeOnWeekend(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.Solar, 40, 144, 100), 200, nil)
	require.NoError(t, err)
	saturday := monday.AddDate(0, 0, 5)
	res, _ := sim.SimulateDay(sim.InitialState(), flatDay(saturday, func(int) float64 { return 200 }))
	assert.Zero(t, res.EnergyDischargedKWh)
	assert.Zero(t, res.ReductionKW)
}

func TestFloorLimitsDischarge(t *testing.T) {
	// Contracted 200 kW puts the floor at 140 kW; a 150 kW peak hour can only shed 10 kW.
	sim, err := New(tariff.Default(), params(strategy.Solar, 100, 500, 100), 200, nil)
	require.NoError(t, err)
	res, _ := sim.SimulateDay(sim.InitialState(), flatDay(monday, func(int) float64 { return 150 }))
	assert.InDelta(t, 10.0, res.Hours[18].DischargedKWh, 1e-9)
	assert.InDelta(t, 140.0, res.Hours[18].ShavedKW, 1e-9)
}

func TestInvariantsOverTwoWeeks(t *testing.T) {
	const contracted = 420.0
	for _, name := range strategy.Names() {
		sim, err := New(tariff.Default(), params(name, 75, 180, 50), contracted, nil)
		require.NoError(t, err)

		state := sim.InitialState()
		for d := 0; d < 14; d++ {
			day := flatDay(monday.AddDate(0, 0, d), func(h int) float64 {
				return 250 + 170*math.Sin(float64(h+d)/3.0)
			})
			var res DailyResult
			res, state = sim.SimulateDay(state, day)

			require.Len(t, res.SOCPercent, 25)
			for _, r := range res.Hours {
				assert.GreaterOrEqual(t, r.SOCEndKWh, 0.0)
				assert.LessOrEqual(t, r.SOCEndKWh, 180.0+1e-9)
				assert.LessOrEqual(t, r.ChargedKWh, 75.0+1e-9)
				assert.LessOrEqual(t, r.DischargedKWh, 75.0+1e-9)
				if r.DischargedKWh > 0 {
					assert.Equal(t, tariff.BandPeak, r.Band)
					assert.GreaterOrEqual(t, r.ShavedKW, 0.7*contracted-1e-9)
				}
			}
		}
	}
}

func TestSOCCarriesAcrossDays(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.GridOffPeak, 50, 100, 0), 100, nil)
	require.NoError(t, err)
	first, state := sim.SimulateDay(sim.InitialState(), flatDay(monday, func(int) float64 { return 0 }))
	second, _ := sim.SimulateDay(state, flatDay(monday.AddDate(0, 0, 1), func(int) float64 { return 0 }))
	assert.InDelta(t, first.EndSOCPercent, second.StartSOCPercent, 1e-9)
	assert.Zero(t, second.EnergyChargedKWh, "battery already full")
}

func TestMissingHoursAreZeroFilledAndSubHourlyAveraged(t *testing.T) {
	day := Day{Date: monday, Samples: model.TimeSeries{
		{Timestamp: monday.Add(18 * time.Hour), PowerKW: 100},
		{Timestamp: monday.Add(18*time.Hour + 30*time.Minute), PowerKW: 300},
		{Timestamp: monday.Add(2 * time.Hour), PowerKW: 80},
	}}
	hp := day.HourlyPower()
	assert.InDelta(t, 200.0, hp[18], 1e-9)
	assert.InDelta(t, 80.0, hp[2], 1e-9)
	assert.Zero(t, hp[5])

	sim, err := New(tariff.Default(), params(strategy.Solar, 10, 20, 50), 300, nil)
	require.NoError(t, err)
	res, _ := sim.SimulateDay(sim.InitialState(), day)
	assert.Len(t, res.OriginalKW, 24)
	assert.Len(t, res.Hours, 24)
	assert.Zero(t, res.OriginalKW[0])
}

func TestZeroBatteryDoesNothing(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.GridOffPeak, 0, 0, 50), 0, nil)
	require.NoError(t, err)
	res, _ := sim.SimulateDay(sim.InitialState(), flatDay(monday, func(int) float64 { return 0 }))
	for _, r := range res.Hours {
		assert.Zero(t, r.ChargedKWh)
		assert.Zero(t, r.DischargedKWh)
	}
	for _, p := range res.SOCPercent {
		assert.Zero(t, p)
	}
	assert.Zero(t, res.NetEconomy)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	_, err := New(tariff.Default(), params("diesel", 10, 10, 50), 100, nil)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = New(tariff.Default(), params(strategy.Solar, -5, 10, 50), 100, nil)
	assert.ErrorAs(t, err, &verr)

	_, err = New(tariff.Default(), params(strategy.Solar, 5, 10, 150), 100, nil)
	assert.ErrorAs(t, err, &verr)
}

func TestGroupDaysChronological(t *testing.T) {
	series := model.TimeSeries{
		{Timestamp: monday.AddDate(0, 0, 1).Add(3 * time.Hour), PowerKW: 2},
		{Timestamp: monday.Add(5 * time.Hour), PowerKW: 1},
		{Timestamp: monday.AddDate(0, 0, 1).Add(1 * time.Hour), PowerKW: 3},
	}
	days := GroupDays(series)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-01", days[0].Key())
	assert.Equal(t, "2024-01-02", days[1].Key())
	assert.Len(t, days[1].Samples, 2)
	assert.Empty(t, GroupDays(nil))
}

func TestWriteDailyCSV(t *testing.T) {
	sim, err := New(tariff.Default(), params(strategy.GridOffPeak, 50, 100, 0), 100, nil)
	require.NoError(t, err)
	res, _ := sim.SimulateDay(sim.InitialState(), flatDay(monday, func(int) float64 { return 0 }))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []DailyResult{res}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 25)
	assert.Equal(t, "date", rows[0][0])
	assert.Equal(t, "CHARGING", rows[1][4])
	assert.Equal(t, "-72.000000", rows[24][13])

	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, WriteDailyCSV(path, []DailyResult{res}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "soc_end_kwh")
}
