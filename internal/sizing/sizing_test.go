package sizing

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/tariff"
)

func weekSeries(peakKW, baseKW float64) model.TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	out := make(model.TimeSeries, 0, 7*24)
	for i := 0; i < 7*24; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		p := baseKW
		if ts.Weekday() != time.Saturday && ts.Weekday() != time.Sunday && ts.Hour() >= 18 && ts.Hour() < 21 {
			p = peakKW
		}
		out = append(out, model.Sample{Timestamp: ts, PowerKW: p})
	}
	return out
}

func defaultParams() Params {
	return Params{ReductionPercent: 20, CyclesPerDay: 1, Utilization: 0.8}
}

func TestRequiredPowerAndCapacity(t *testing.T) {
	assert.Equal(t, 40.0, RequiredPower(200, 20))
	assert.Equal(t, 144.0, RequiredCapacity(40, 1, 3))
	assert.Equal(t, 0.0, RequiredPower(0, 20))
	assert.Equal(t, 12.3, RequiredPower(123.45, 10))
	assert.Equal(t, 0.0, RequiredCapacity(0, 1, 3))
}

func TestSizingMonotonicity(t *testing.T) {
	prev := 0.0
	for pct := 0.0; pct <= 100; pct += 2.5 {
		p := RequiredPower(187.3, pct)
		assert.GreaterOrEqual(t, p, prev, "pct=%v", pct)
		prev = p
	}
	prev = 0
	for power := 0.0; power <= 500; power += 7.3 {
		c := RequiredCapacity(power, 1, 3)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
	assert.GreaterOrEqual(t, RequiredCapacity(40, 2, 3), RequiredCapacity(40, 1, 3))
	assert.GreaterOrEqual(t, RequiredCapacity(40, 1, 4), RequiredCapacity(40, 1, 3))
}

func TestAnnualSavings(t *testing.T) {
	e := AnnualSavings(40, 0.8, tariff.Default())
	assert.InDelta(t, 32.0, e.DemandReductionKW, 1e-9)
	assert.InDelta(t, 19200.0, e.DemandSavingsAnnual, 1e-9)
	assert.InDelta(t, 24192.0, e.EnergyDischargedAnnualKWh, 1e-9)
	assert.InDelta(t, 23950.08, e.EnergySavingsAnnual, 1e-9)
	assert.InDelta(t, 43150.08, e.TotalSavingsAnnual, 1e-9)

	assert.Equal(t, Economics{}, AnnualSavings(0, 0.8, tariff.Default()))
}

func TestCalculatePayback(t *testing.T) {
	p := CalculatePayback(100000, 5000)
	assert.Equal(t, 20.0, p.PaybackYears)
	assert.False(t, p.Feasible)

	p = CalculatePayback(20000, 5000)
	assert.Equal(t, 4.0, p.PaybackYears)
	assert.True(t, p.Feasible)
	assert.Equal(t, 150.0, p.ROIPercent10y)
	assert.Equal(t, 30000.0, p.Profit10y)

	for _, savings := range []float64{0, -10} {
		p = CalculatePayback(1000, savings)
		assert.True(t, math.IsInf(p.PaybackYears, 1))
		assert.Zero(t, p.ROIPercent10y)
		assert.False(t, p.Feasible)
	}
}

func TestFeasibilityBoundary(t *testing.T) {
	for inv := 1000.0; inv <= 200000; inv += 3700 {
		p := CalculatePayback(inv, 7500)
		if p.PaybackYears > HorizonYears {
			assert.False(t, p.Feasible, "investment=%v", inv)
		}
	}
}

func TestPaybackJSON(t *testing.T) {
	raw, err := json.Marshal(CalculatePayback(1000, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"payback_years":null,"roi_percent_10y":0,"profit_10y":-1000,"feasible":false}`, string(raw))

	var back Payback
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, math.IsInf(back.PaybackYears, 1))

	raw, err = json.Marshal(CalculatePayback(20000, 5000))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"payback_years":4`)
}

func TestDimensionScenario(t *testing.T) {
	d := New(tariff.Default(), nil)
	p := defaultParams()
	p.InvestmentCost = 144000

	res := d.Dimension(weekSeries(200, 100), p)
	require.True(t, res.OK(), res.Reason())
	r := res.Value()

	assert.Equal(t, 40.0, r.Sizing.PowerKW)
	assert.Equal(t, 144.0, r.Sizing.CapacityKWh)
	assert.Equal(t, 200.0, r.Sizing.PeakMaxKW)
	assert.Equal(t, 200.0, r.Sizing.ContractedDemandKW)
	assert.Equal(t, 15, r.Sizing.PeakSampleCount)
	assert.Equal(t, 1000.0, r.CostPerKWh)
	assert.Equal(t, 3600.0, r.CostPerKW)
	require.NotNil(t, r.Payback)
	assert.True(t, r.Payback.Feasible)
}

func TestDimensionWithoutInvestmentOmitsPayback(t *testing.T) {
	res := New(tariff.Default(), nil).Dimension(weekSeries(200, 100), defaultParams())
	require.True(t, res.OK())
	assert.Nil(t, res.Value().Payback)
	assert.Zero(t, res.Value().CostPerKWh)
}

func TestDimensionNoPeakData(t *testing.T) {
	res := New(tariff.Default(), nil).Dimension(weekSeries(0, 0), defaultParams())
	assert.False(t, res.OK())
	assert.Contains(t, res.Reason(), "no peak data")

	res = New(tariff.Default(), nil).Dimension(nil, defaultParams())
	assert.False(t, res.OK())
}

func TestDimensionZeroReductionWithPeakSignal(t *testing.T) {
	p := defaultParams()
	p.ReductionPercent = 0
	res := New(tariff.Default(), nil).Dimension(weekSeries(200, 100), p)
	require.False(t, res.OK())
	assert.NotContains(t, res.Reason(), "no peak data")
	assert.Contains(t, res.Reason(), "zero required power")
	assert.Contains(t, res.Reason(), "15 peak samples")
}

func TestDimensionRejectsInvalidParams(t *testing.T) {
	p := defaultParams()
	p.Utilization = 1.5
	res := New(tariff.Default(), nil).Dimension(weekSeries(200, 100), p)
	assert.False(t, res.OK())
	assert.Contains(t, res.Reason(), "utilization")
}

func TestCompareRanksByROI(t *testing.T) {
	p := defaultParams()
	p.InvestmentCost = 100000
	vs := New(tariff.Default(), nil).Compare(weekSeries(200, 100), p, []float64{10, 0, 30, 20})
	require.Len(t, vs, 3, "0% target is skipped")
	assert.Equal(t, "30%", vs[0].Name)
	assert.Equal(t, "20%", vs[1].Name)
	assert.Equal(t, "10%", vs[2].Name)
}

func TestRankByROIPutsInfeasibleLast(t *testing.T) {
	vs := []Variation{
		{Name: "a", Report: Report{Payback: &Payback{ROIPercent10y: 500, Feasible: false}}},
		{Name: "b", Report: Report{Payback: &Payback{ROIPercent10y: 10, Feasible: true}}},
	}
	ranked := RankByROI(vs)
	assert.Equal(t, "b", ranked[0].Name)
}
