package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/analysis"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/metrics"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/scenario"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

// EngineHandler serves the analysis, dimensioning and simulation routes.
type EngineHandler struct {
	scenarios *Scenarios
	store     *store.Store
	metrics   *metrics.Metrics
	logger    *zap.Logger

	dimensions *data.ResultCache[sizing.Report]
	outcomes   *data.ResultCache[scenario.Outcome]
}

// NewEngineHandler creates the handler. A cacheTTL of 0 disables caching;
// st and m may be nil.
func NewEngineHandler(sc *Scenarios, st *store.Store, m *metrics.Metrics, cacheTTL time.Duration, logger *zap.Logger) *EngineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineHandler{
		scenarios:  sc,
		store:      st,
		metrics:    m,
		logger:     logger,
		dimensions: data.NewResultCache[sizing.Report](cacheTTL, cacheTTL),
		outcomes:   data.NewResultCache[scenario.Outcome](cacheTTL, cacheTTL),
	}
}

// Close stops the cache janitors.
func (h *EngineHandler) Close() {
	h.dimensions.Close()
	h.outcomes.Close()
}

// Analyze handles POST /api/v1/analyze
func (h *EngineHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cfg, err := h.scenarios.Build(req.Config)
	if err != nil {
		configError(c, err)
		return
	}
	series, err := h.scenarios.Series(c.Request.Context(), req.Series)
	if err != nil {
		configError(c, err)
		return
	}
	sched, err := cfg.Tariff.ToSchedule()
	if err != nil {
		configError(c, err)
		return
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	start := time.Now()
	report, err := analysis.Analyze(c.Request.Context(), series, sched, workers)
	h.metrics.ObserveRun("analyze", err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, analysis.ErrEmptySeries) {
			failure(c, err.Error())
			return
		}
		internalError(c, "ANALYSIS_ERROR", err)
		return
	}
	c.JSON(http.StatusOK, models.AnalyzeResponse{Info: data.Describe(series), Report: report})
}

// Dimension handles POST /api/v1/dimension
func (h *EngineHandler) Dimension(c *gin.Context) {
	var req models.DimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cfg, err := h.scenarios.Build(req.Config)
	if err != nil {
		configError(c, err)
		return
	}
	series, err := h.scenarios.Series(c.Request.Context(), req.Series)
	if err != nil {
		configError(c, err)
		return
	}

	params := cfg.ToSizingParams()
	key, err := data.CacheKey("dimension", cfg.Tariff, params, seriesKey(req.Series, series))
	if err != nil {
		internalError(c, "CACHE_KEY_ERROR", err)
		return
	}
	if report, ok := h.dimensions.Get(key); ok {
		h.metrics.CacheHit("dimension")
		c.Header("X-Cache", "HIT")
		writeResult(c, report)
		return
	}

	sched, _ := cfg.Tariff.ToSchedule()
	start := time.Now()
	res := sizing.New(sched, h.logger).Dimension(series, params)
	h.metrics.ObserveRun("dimension", res.OK(), time.Since(start))
	if !res.OK() {
		failure(c, res.Reason())
		return
	}
	h.dimensions.Set(key, res.Value())
	writeResult(c, res.Value())
}

// Compare handles POST /api/v1/dimension/compare
func (h *EngineHandler) Compare(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cfg, err := h.scenarios.Build(req.Config)
	if err != nil {
		configError(c, err)
		return
	}
	series, err := h.scenarios.Series(c.Request.Context(), req.Series)
	if err != nil {
		configError(c, err)
		return
	}

	sched, _ := cfg.Tariff.ToSchedule()
	start := time.Now()
	variations := sizing.New(sched, h.logger).Compare(series, cfg.ToSizingParams(), req.Reductions)
	h.metrics.ObserveRun("compare", len(variations) > 0, time.Since(start))
	if len(variations) == 0 {
		failure(c, "no reduction target produced a sizing")
		return
	}
	c.JSON(http.StatusOK, models.CompareResponse{Variations: variations})
}

// Simulate handles POST /api/v1/simulate
func (h *EngineHandler) Simulate(c *gin.Context) {
	var req models.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cfg, err := h.scenarios.Build(req.Config)
	if err != nil {
		configError(c, err)
		return
	}
	series, err := h.scenarios.Series(c.Request.Context(), req.Series)
	if err != nil {
		configError(c, err)
		return
	}

	key, err := data.CacheKey("simulate", cfg, seriesKey(req.Series, series))
	if err != nil {
		internalError(c, "CACHE_KEY_ERROR", err)
		return
	}
	out, ok := h.outcomes.Get(key)
	if ok {
		h.metrics.CacheHit("simulate")
		c.Header("X-Cache", "HIT")
	} else {
		start := time.Now()
		res := scenario.NewRunner(h.logger).Run(cfg, series)
		h.metrics.ObserveRun("simulate", res.OK(), time.Since(start))
		if !res.OK() {
			failure(c, res.Reason())
			return
		}
		out = res.Value()
		h.metrics.AddDays(out.Period.Summary.DaysSimulated)
		h.outcomes.Set(key, out)
	}

	resp := models.SimulateResponse{
		Dimensioning: out.Dimensioning,
		Battery:      out.Battery,
		Summary:      out.Period.Summary,
	}
	if req.Options.IncludeDays {
		resp.Days = out.Period.Days
	}
	if req.Options.Persist {
		id, err := h.persist(c, req, out)
		if err != nil {
			if errors.Is(err, errNoStore) {
				configError(c, err)
				return
			}
			internalError(c, "STORE_ERROR", err)
			return
		}
		resp.ID = id
	}
	writeResult(c, resp)
}

func (h *EngineHandler) persist(c *gin.Context, req models.SimulateRequest, out scenario.Outcome) (string, error) {
	if h.store == nil {
		return "", errNoStore
	}
	raw, err := json.Marshal(req.Config)
	if err != nil {
		return "", err
	}
	run, err := h.store.SaveRun(c.Request.Context(), store.RunRecord{
		UploadID: req.Series.UploadID,
		Strategy: out.Period.Summary.Strategy,
		Request:  raw,
		Result:   out.Period,
	})
	if err != nil {
		return "", err
	}
	h.logger.Info("persisted simulation run", zap.String("op", "handlers.Simulate"), zap.String("run_id", run.ID))
	return run.ID, nil
}

// GetSimulation handles GET /api/v1/simulations/:id
func (h *EngineHandler) GetSimulation(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.RunResponse{
		ID:        run.ID,
		UploadID:  run.UploadID,
		Strategy:  run.Strategy,
		Request:   run.Request,
		Summary:   run.Result.Summary,
		CreatedAt: run.CreatedAt,
	})
}

// GetSimulationDays handles GET /api/v1/simulations/:id/days
// ?format=csv returns the hourly ledger as CSV.
func (h *EngineHandler) GetSimulationDays(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="`+run.ID+`.csv"`)
		c.Status(http.StatusOK)
		if err := dispatch.WriteCSV(c.Writer, run.Result.Days); err != nil {
			h.logger.Warn("writing csv failed", zap.String("op", "handlers.GetSimulationDays"), zap.Error(err))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_records": run.Result.Days})
}

func (h *EngineHandler) loadRun(c *gin.Context) (store.RunRecord, bool) {
	if h.store == nil {
		configError(c, errNoStore)
		return store.RunRecord{}, false
	}
	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			configError(c, err)
			return store.RunRecord{}, false
		}
		internalError(c, "STORE_ERROR", err)
		return store.RunRecord{}, false
	}
	return run, true
}

func writeResult[T any](c *gin.Context, v T) {
	c.JSON(http.StatusOK, model.Succeed(v))
}
