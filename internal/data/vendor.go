package data

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/mathutil"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// VendorTimestampLayout is the power-quality meter export format,
// e.g. "25/03/2024 18:15:00.000000". The fractional part is ignored.
const VendorTimestampLayout = "02/01/2006 15:04:05"

var ErrNoValidRows = errors.New("no valid rows found in file")

// Warning reports a skipped input row. Line is 1-based.
type Warning struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// SeriesInfo summarizes an ingested series.
type SeriesInfo struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	TotalDays int       `json:"total_days"`
	Points    int       `json:"total_points"`
	MaxKW     float64   `json:"max_kw"`
	MinKW     float64   `json:"min_kw"`
	MeanKW    float64   `json:"mean_kw"`
}

// Parsed is a loaded series with its summary and any skipped rows.
type Parsed struct {
	Series   model.TimeSeries `json:"-"`
	Info     SeriesInfo       `json:"info"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

// Describe computes SeriesInfo. Start and End are the earliest and latest
// timestamps regardless of input order.
func Describe(series model.TimeSeries) SeriesInfo {
	if len(series) == 0 {
		return SeriesInfo{}
	}
	info := SeriesInfo{
		Start:  series[0].Timestamp,
		End:    series[0].Timestamp,
		Points: len(series),
		MaxKW:  math.Inf(-1),
		MinKW:  math.Inf(1),
	}
	sum := 0.0
	for _, s := range series {
		if s.Timestamp.Before(info.Start) {
			info.Start = s.Timestamp
		}
		if s.Timestamp.After(info.End) {
			info.End = s.Timestamp
		}
		info.MaxKW = math.Max(info.MaxKW, s.PowerKW)
		info.MinKW = math.Min(info.MinKW, s.PowerKW)
		sum += s.PowerKW
	}
	info.TotalDays = int(info.End.Sub(info.Start).Hours()/24) + 1
	info.MaxKW = mathutil.Round2(info.MaxKW)
	info.MinKW = mathutil.Round2(info.MinKW)
	info.MeanKW = mathutil.Round2(sum / float64(len(series)))
	return info
}

// LoadSeriesFile picks a loader by extension: .json for the array form,
// anything else is read as a vendor CSV export.
func LoadSeriesFile(path string) (Parsed, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		series, err := LoadSeriesJSON(path)
		if err != nil {
			return Parsed{}, err
		}
		if len(series) == 0 {
			return Parsed{}, ErrNoValidRows
		}
		return Parsed{Series: series, Info: Describe(series)}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Parsed{}, err
	}
	defer f.Close()
	return ParseVendorCSV(f)
}

// ParseVendorCSV reads a two-column export: timestamp, then active power in
// kW. A first row whose first cell is not a date is treated as a header.
// The delimiter is "," or ";"; with ";" a decimal comma is accepted.
// Unparseable rows are skipped and reported as warnings.
func ParseVendorCSV(r io.Reader) (Parsed, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Parsed{}, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	delim := sniffDelimiter(raw)
	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out Parsed
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			out.Warnings = append(out.Warnings, Warning{Line: line, Error: err.Error()})
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
				continue
			}
			out.Warnings = append(out.Warnings, Warning{Line: line, Error: fmt.Sprintf("expected 2 columns, got %d", len(rec))})
			continue
		}

		ts, tsErr := parseVendorTimestamp(rec[0])
		if tsErr != nil && row == 0 {
			continue // header
		}
		if tsErr != nil {
			out.Warnings = append(out.Warnings, Warning{Line: line, Error: tsErr.Error()})
			continue
		}
		kw, err := parsePower(rec[1], delim == ';')
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Line: line, Error: err.Error()})
			continue
		}
		out.Series = append(out.Series, model.Sample{Timestamp: ts, PowerKW: kw})
	}

	if len(out.Series) == 0 {
		return out, ErrNoValidRows
	}
	out.Info = Describe(out.Series)
	return out, nil
}

func sniffDelimiter(raw []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, ";") > 0 && strings.Count(line, ";") >= strings.Count(line, ",") {
			return ';'
		}
		return ','
	}
	return ','
}

func parseVendorTimestamp(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if strings.Contains(s, "/") {
		if i := strings.IndexByte(s, '.'); i >= 0 {
			s = s[:i]
		}
		t, err := time.ParseInLocation(VendorTimestampLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad timestamp %q", cell)
		}
		return t, nil
	}
	return model.ParseTimestamp(s)
}

func parsePower(cell string, decimalComma bool) (float64, error) {
	s := strings.TrimSpace(cell)
	if decimalComma && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad power value %q", cell)
	}
	return v, nil
}
