package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/metrics"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// peakWeek is Monday 2024-01-01 through Sunday, hourly: 200 kW during the
// weekday 18-21h peak window and 100 kW otherwise.
func peakWeek() model.TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(model.TimeSeries, 0, 7*24)
	for i := 0; i < 7*24; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		p := 100.0
		if ts.Weekday() != time.Saturday && ts.Weekday() != time.Sunday && ts.Hour() >= 18 && ts.Hour() < 21 {
			p = 200
		}
		out = append(out, model.Sample{Timestamp: ts, PowerKW: p})
	}
	return out
}

func vendorCSV(series model.TimeSeries) string {
	var b strings.Builder
	b.WriteString("Time,Active Power (kW)\n")
	for _, s := range series {
		fmt.Fprintf(&b, "%s.000000,%g\n", s.Timestamp.Format(data.VendorTimestampLayout), s.PowerKW)
	}
	return b.String()
}

func inline(series model.TimeSeries) models.SeriesInput {
	p := data.PayloadFrom(series)
	return models.SeriesInput{Timestamps: p.Timestamps, PowerKW: p.PowerKW}
}

type testServer struct {
	srv     *Server
	handler http.Handler
	store   *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	settings := &config.Settings{
		Env:            "test",
		TariffDir:      filepath.Join("..", "..", "tariffs"),
		CacheTTL:       time.Minute,
		MaxUploadBytes: 1 << 20,
		CORSOrigins:    []string{"*"},
	}
	srv := New(settings, st, metrics.New(reg), reg, nil)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, handler: srv.Handler(), store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, series model.TimeSeries) models.UploadResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads?filename=meter.csv", strings.NewReader(vendorCSV(series)))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Result  T      `json:"result"`
	Error   string `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","store":"ok","stream_clients":0}`, rec.Body.String())
}

func TestListStrategies(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[struct {
		Strategies []models.StrategyInfo `json:"strategies"`
	}](t, rec)
	require.Len(t, out.Strategies, 2)
	assert.Equal(t, "solar", out.Strategies[0].Name)
	assert.Equal(t, "grid-offpeak", out.Strategies[1].Name)
	assert.Len(t, out.Strategies[1].Parameters, 2)
}

func TestListTariffPresets(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/tariffs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[struct {
		Tariffs []models.TariffInfo `json:"tariffs"`
	}](t, rec)
	ids := make([]string, 0, len(out.Tariffs))
	for _, tf := range out.Tariffs {
		ids = append(ids, tf.ID)
	}
	assert.Equal(t, []string{"default", "early_evening"}, ids)
}

func TestSaveAndListTariffs(t *testing.T) {
	ts := newTestServer(t)
	h := 16
	rec := ts.do(t, http.MethodPost, "/api/v1/tariffs", models.SaveTariffRequest{
		Name:   "site A",
		Tariff: config.TariffConfig{PeakStartHour: &h, PeakPrice: 2.4},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/tariffs/saved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Tariffs []models.TariffInfo `json:"tariffs"`
	}](t, rec)
	require.Len(t, out.Tariffs, 1)
	assert.Equal(t, "site A", out.Tariffs[0].Name)
	assert.Equal(t, 2.4, out.Tariffs[0].Tariff.PeakPrice)

	bad := 30
	rec = ts.do(t, http.MethodPost, "/api/v1/tariffs", models.SaveTariffRequest{
		Name:   "broken",
		Tariff: config.TariffConfig{PeakEndHour: &bad},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDimension(t *testing.T) {
	ts := newTestServer(t)
	req := models.DimensionRequest{Series: inline(peakWeek())}
	req.Config.Sizing.InvestmentCost = 80000

	rec := ts.do(t, http.MethodPost, "/api/v1/dimension", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))

	out := decode[envelope[sizing.Report]](t, rec)
	require.True(t, out.Success)
	assert.Equal(t, 40.0, out.Result.Sizing.PowerKW)
	assert.Equal(t, 144.0, out.Result.Sizing.CapacityKWh)
	assert.Equal(t, 200.0, out.Result.Sizing.PeakMaxKW)
	require.NotNil(t, out.Result.Payback)

	rec = ts.do(t, http.MethodPost, "/api/v1/dimension", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestDimensionFailures(t *testing.T) {
	ts := newTestServer(t)

	// Weekend-only data never touches the peak window.
	rec := ts.do(t, http.MethodPost, "/api/v1/dimension", models.DimensionRequest{Series: inline(peakWeek()[5*24:])})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	out := decode[envelope[sizing.Report]](t, rec)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "no peak data")

	req := models.DimensionRequest{Series: inline(peakWeek())}
	req.Config.Dispatch.Strategy = "diesel"
	rec = ts.do(t, http.MethodPost, "/api/v1/dimension", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[models.ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_CONFIG", errResp.Error.Code)
	assert.Equal(t, "strategy", errResp.Error.Details["field"])

	rec = ts.do(t, http.MethodPost, "/api/v1/dimension", models.DimensionRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SERIES", decode[models.ErrorResponse](t, rec).Error.Code)

	req = models.DimensionRequest{Series: inline(peakWeek())}
	req.Config.TariffFile = "nowhere"
	rec = ts.do(t, http.MethodPost, "/api/v1/dimension", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tariff_file", decode[models.ErrorResponse](t, rec).Error.Details["field"])
}

func TestDimensionWithTariffPreset(t *testing.T) {
	ts := newTestServer(t)
	// early_evening moves the peak window to 17-20h, which only catches the
	// first two 200 kW hours of each weekday.
	req := models.DimensionRequest{Series: inline(peakWeek())}
	req.Config.TariffFile = "early_evening"
	rec := ts.do(t, http.MethodPost, "/api/v1/dimension", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[envelope[sizing.Report]](t, rec)
	assert.Equal(t, 200.0, out.Result.Sizing.PeakMaxKW)
	assert.Equal(t, 15, out.Result.Sizing.PeakSampleCount)
}

func TestCompare(t *testing.T) {
	ts := newTestServer(t)
	req := models.CompareRequest{Series: inline(peakWeek()), Reductions: []float64{10, 20, 30}}
	req.Config.Sizing.InvestmentCost = 50000

	rec := ts.do(t, http.MethodPost, "/api/v1/dimension/compare", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[models.CompareResponse](t, rec)
	require.Len(t, out.Variations, 3)
	for i := 1; i < len(out.Variations); i++ {
		prev, cur := out.Variations[i-1].Report.Payback, out.Variations[i].Report.Payback
		if prev.Feasible == cur.Feasible {
			assert.GreaterOrEqual(t, prev.ROIPercent10y, cur.ROIPercent10y)
		}
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/dimension/compare", models.CompareRequest{Series: inline(peakWeek())})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulatePersistAndFetch(t *testing.T) {
	ts := newTestServer(t)
	req := models.SimulateRequest{
		Series:  inline(peakWeek()),
		Options: models.SimulateOptions{IncludeDays: true, Persist: true},
	}
	req.Config.Battery = config.BatteryConfig{PowerKW: 40, CapacityKWh: 144}

	rec := ts.do(t, http.MethodPost, "/api/v1/simulate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[envelope[models.SimulateResponse]](t, rec)
	require.True(t, out.Success)
	require.NotEmpty(t, out.Result.ID)
	assert.Nil(t, out.Result.Dimensioning)
	assert.Equal(t, 7, out.Result.Summary.DaysSimulated)
	assert.Len(t, out.Result.Days, 7)
	assert.Equal(t, "solar", out.Result.Summary.Strategy)

	id := out.Result.ID
	rec = ts.do(t, http.MethodGet, "/api/v1/simulations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[models.RunResponse](t, rec)
	assert.Equal(t, out.Result.Summary.TotalAnnualSavings, run.Summary.TotalAnnualSavings)
	assert.Contains(t, string(run.Request), `"power_kw":40`)

	rec = ts.do(t, http.MethodGet, "/api/v1/simulations/"+id+"/days", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[struct {
		Days []dispatch.DailyResult `json:"daily_records"`
	}](t, rec)
	require.Len(t, days.Days, 7)
	assert.Equal(t, "2024-01-01", days.Days[0].Date)

	rec = ts.do(t, http.MethodGet, "/api/v1/simulations/"+id+"/days?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 1+7*24)

	rec = ts.do(t, http.MethodGet, "/api/v1/simulations/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulateDimensionsFirstAndCaches(t *testing.T) {
	ts := newTestServer(t)
	req := models.SimulateRequest{Series: inline(peakWeek())}

	rec := ts.do(t, http.MethodPost, "/api/v1/simulate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[envelope[models.SimulateResponse]](t, rec)
	require.NotNil(t, out.Result.Dimensioning)
	assert.Equal(t, 40.0, out.Result.Battery.PowerKW)
	assert.Empty(t, out.Result.Days)
	assert.Empty(t, out.Result.ID)

	rec = ts.do(t, http.MethodPost, "/api/v1/simulate", req)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestUploadThenSimulate(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t, peakWeek())
	assert.Equal(t, "meter.csv", up.Filename)
	assert.Equal(t, 7*24, up.Info.Points)
	assert.Equal(t, 200.0, up.Info.MaxKW)
	assert.Empty(t, up.Warnings)

	rec := ts.do(t, http.MethodGet, "/api/v1/uploads/"+up.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, up.ID, decode[models.UploadResponse](t, rec).ID)

	req := models.SimulateRequest{Series: models.SeriesInput{UploadID: up.ID}}
	req.Config.Battery = config.BatteryConfig{PowerKW: 40, CapacityKWh: 144}
	rec = ts.do(t, http.MethodPost, "/api/v1/simulate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[envelope[models.SimulateResponse]](t, rec)
	assert.Equal(t, 7, out.Result.Summary.DaysSimulated)

	rec = ts.do(t, http.MethodGet, "/api/v1/uploads/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req.Series.UploadID = "missing"
	rec = ts.do(t, http.MethodPost, "/api/v1/simulate", req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsGarbage(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader("hello,world\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UPLOAD", decode[models.ErrorResponse](t, rec).Error.Code)
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/analyze", models.AnalyzeRequest{Series: inline(peakWeek()), Workers: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[models.AnalyzeResponse](t, rec)
	assert.Equal(t, 7*24, out.Info.Points)
	assert.Equal(t, 15, out.Report.Peak.Count)
	assert.Equal(t, 200.0, out.Report.LoadCurve.MaxKW)
	assert.Equal(t, 15, out.Report.Bands.Peak.Count)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/dimension", models.DimensionRequest{Series: inline(peakWeek())})

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `bess_engine_runs_total{operation="dimension",result="success"} 1`)
	assert.Contains(t, body, `bess_http_requests_total{code="200",method="POST",route="/api/v1/dimension"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/simulate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t, peakWeek())

	server := httptest.NewServer(ts.handler)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/uploads/" + up.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() models.Envelope {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env models.Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	}

	ready := read()
	require.Equal(t, models.TypeReady, ready.Type)
	var rp models.ReadyPayload
	require.NoError(t, json.Unmarshal(ready.Payload, &rp))
	assert.Equal(t, up.ID, rp.UploadID)

	start, err := models.NewEnvelope(models.TypeStart, models.StreamStart{
		Config: models.ScenarioConfig{Battery: config.BatteryConfig{PowerKW: 40, CapacityKWh: 144}},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, start))

	var dates []string
	for i := 0; i < 7; i++ {
		env := read()
		require.Equal(t, models.TypeDay, env.Type)
		var d dispatch.DailyResult
		require.NoError(t, json.Unmarshal(env.Payload, &d))
		dates = append(dates, d.Date)
	}
	assert.Equal(t, "2024-01-01", dates[0])
	assert.Equal(t, "2024-01-07", dates[6])

	summary := read()
	require.Equal(t, models.TypeSummary, summary.Type)
	var sr models.SimulateResponse
	require.NoError(t, json.Unmarshal(summary.Payload, &sr))
	assert.Equal(t, 7, sr.Summary.DaysSimulated)

	bad, err := models.NewEnvelope("rewind", nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, bad))
	assert.Equal(t, models.TypeError, read().Type)
}

func TestStreamUnknownUpload(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/uploads/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
