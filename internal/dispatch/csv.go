package dispatch

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

// WriteDailyCSV writes one row per simulated hour across all days.
func WriteDailyCSV(path string, days []DailyResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteCSV(f, days)
}

func WriteCSV(out io.Writer, days []DailyResult) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"date",
		"hour",
		"timestamp",
		"band",
		"action",
		"original_kw",
		"shaved_kw",
		"charged_kwh",
		"discharged_kwh",
		"soc_start_kwh",
		"soc_end_kwh",
		"charge_cost",
		"discharge_savings",
		"cum_net_economy",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	cum := 0.0
	for _, d := range days {
		for _, r := range d.Hours {
			cum += r.DischargeSavings - r.ChargeCost
			row := []string{
				d.Date,
				strconv.Itoa(r.Hour),
				fmtTime(r.Timestamp),
				string(r.Band),
				string(r.Action),
				fmtFloat(r.OriginalKW),
				fmtFloat(r.ShavedKW),
				fmtFloat(r.ChargedKWh),
				fmtFloat(r.DischargedKWh),
				fmtFloat(r.SOCStartKWh),
				fmtFloat(r.SOCEndKWh),
				fmtFloat(r.ChargeCost),
				fmtFloat(r.DischargeSavings),
				fmtFloat(cum),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
