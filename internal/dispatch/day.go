package dispatch

import (
	"sort"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// Day holds the samples of one calendar date.
type Day struct {
	// Date is midnight of the day in the samples' location.
	Date    time.Time
	Samples model.TimeSeries
}

func (d Day) Key() string { return d.Date.Format(time.DateOnly) }

// HourlyPower buckets samples by hour of day. Several samples in one hour
// are averaged; hours without samples are zero-filled.
func (d Day) HourlyPower() [24]float64 {
	var sums [24]float64
	var counts [24]int
	for _, s := range d.Samples {
		h := s.Timestamp.Hour()
		sums[h] += s.PowerKW
		counts[h]++
	}
	var out [24]float64
	for h := range out {
		if counts[h] > 0 {
			out[h] = sums[h] / float64(counts[h])
		}
	}
	return out
}

// At is the start of hour h on this day.
func (d Day) At(h int) time.Time {
	y, m, dd := d.Date.Date()
	return time.Date(y, m, dd, h, 0, 0, 0, d.Date.Location())
}

// GroupDays splits series into calendar days, returned in chronological order.
func GroupDays(series model.TimeSeries) []Day {
	type dayKey struct {
		Year  int
		Month time.Month
		Day   int
	}
	idx := map[dayKey]int{}
	var days []Day
	for _, s := range series {
		y, m, d := s.Timestamp.Date()
		k := dayKey{y, m, d}
		i, ok := idx[k]
		if !ok {
			i = len(days)
			idx[k] = i
			days = append(days, Day{Date: time.Date(y, m, d, 0, 0, 0, 0, s.Timestamp.Location())})
		}
		days[i].Samples = append(days[i].Samples, s)
	}
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	return days
}
