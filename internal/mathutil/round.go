// Package mathutil provides rounding and guarded arithmetic for reported figures.
package mathutil

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to places decimals, half away from zero, on the decimal
// representation of v (so 0.05 rounds to 0.1). Infinities and NaN pass through.
func Round(v float64, places int32) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round1 rounds to one decimal, used for kW, kWh and years.
func Round1(v float64) float64 { return Round(v, 1) }

// Round2 rounds to two decimals, i.e. to represent currency.
func Round2(v float64) float64 { return Round(v, 2) }

// SafeDiv returns 0 instead of faulting when the divisor is zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
