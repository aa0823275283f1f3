package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

// SeriesPayload is the JSON form of a demand series: two parallel arrays.
type SeriesPayload struct {
	Timestamps []string  `json:"timestamps"`
	PowerKW    []float64 `json:"power_kw"`
}

func LoadSeriesJSON(path string) (model.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSeriesJSON(f)
}

func DecodeSeriesJSON(r io.Reader) (model.TimeSeries, error) {
	var p SeriesPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	return p.Series()
}

func (p SeriesPayload) Series() (model.TimeSeries, error) {
	return model.NewTimeSeries(p.Timestamps, p.PowerKW)
}

// PayloadFrom is the inverse of SeriesPayload.Series.
func PayloadFrom(series model.TimeSeries) SeriesPayload {
	p := SeriesPayload{
		Timestamps: make([]string, len(series)),
		PowerKW:    make([]float64, len(series)),
	}
	for i, s := range series {
		p.Timestamps[i] = s.Timestamp.Format(time.RFC3339)
		p.PowerKW[i] = s.PowerKW
	}
	return p
}
