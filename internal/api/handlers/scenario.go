package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

// Scenarios turns request bodies into validated configs and series. It is
// shared by every handler that runs the engine.
type Scenarios struct {
	tariffDir string
	store     *store.Store
	logger    *zap.Logger
}

// NewScenarios resolves tariffDir to an absolute path. st may be nil, in
// which case upload references are rejected.
func NewScenarios(tariffDir string, st *store.Store, logger *zap.Logger) *Scenarios {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tariffDir == "" {
		tariffDir = "./tariffs"
	}
	if abs, err := filepath.Abs(tariffDir); err == nil {
		tariffDir = abs
	}
	logger.Info("using tariff directory", zap.String("op", "handlers.NewScenarios"), zap.String("dir", tariffDir))
	return &Scenarios{tariffDir: tariffDir, store: st, logger: logger}
}

func (s *Scenarios) TariffDir() string { return s.tariffDir }

// Build merges the request over the preset and the defaults, then validates.
func (s *Scenarios) Build(req models.ScenarioConfig) (*config.Config, error) {
	cfg := &config.Config{
		Tariff:   req.Tariff,
		Battery:  req.Battery,
		Dispatch: req.Dispatch,
		Sizing:   req.Sizing,
	}

	// tariff_file is a preset id, never a path.
	if req.TariffFile != "" {
		id := strings.TrimSuffix(filepath.Base(req.TariffFile), ".yaml")
		preset, err := config.LoadTariffFile(filepath.Join(s.tariffDir, id+".yaml"))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, model.Invalid("tariff_file", "unknown tariff preset %q", id)
			}
			return nil, fmt.Errorf("load tariff preset %s: %w", id, err)
		}
		cfg.TariffFile = id
		cfg.Tariff = config.MergeTariff(preset, cfg.Tariff)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Series resolves the inline series or loads the referenced upload.
func (s *Scenarios) Series(ctx context.Context, in models.SeriesInput) (model.TimeSeries, error) {
	if in.UploadID == "" {
		return in.Inline()
	}
	if s.store == nil {
		return nil, errNoStore
	}
	return s.store.LoadSeries(ctx, in.UploadID)
}

var errNoStore = errors.New("persistence is not configured")

// Helpers shared by the handlers.

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		},
	})
}

// configError maps scenario and series errors to a status and code.
func configError(c *gin.Context, err error) {
	status, code := http.StatusBadRequest, "INVALID_CONFIG"
	var details map[string]interface{}

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		details = map[string]interface{}{"field": verr.Field}
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errNoStore):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	case errors.Is(err, models.ErrNoSeries):
		code = "INVALID_SERIES"
	}
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
			Details: details,
		},
	})
}

// failure writes a failed engine result as {"success": false, "error": ...}.
func failure(c *gin.Context, reason string) {
	c.JSON(http.StatusUnprocessableEntity, model.Fail[struct{}](reason))
}

func internalError(c *gin.Context, code string, err error) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// seriesKey identifies the series part of a cache key.
func seriesKey(in models.SeriesInput, series model.TimeSeries) any {
	if in.UploadID != "" {
		return in.UploadID
	}
	return data.PayloadFrom(series)
}
