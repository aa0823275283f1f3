package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

// TariffHandler lists YAML tariff presets and manages saved tariffs.
type TariffHandler struct {
	tariffDir string
	store     *store.Store
	logger    *zap.Logger
}

func NewTariffHandler(tariffDir string, st *store.Store, logger *zap.Logger) *TariffHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TariffHandler{tariffDir: tariffDir, store: st, logger: logger}
}

// ListPresets handles GET /api/v1/tariffs
func (h *TariffHandler) ListPresets(c *gin.Context) {
	tariffs := []models.TariffInfo{}

	entries, err := os.ReadDir(h.tariffDir)
	if err != nil {
		h.logger.Warn("failed to read tariff directory",
			zap.String("op", "handlers.ListPresets"),
			zap.String("dir", h.tariffDir),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"tariffs": tariffs})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.tariffDir, entry.Name())
		t, err := config.LoadTariffFile(path)
		if err != nil {
			h.logger.Debug("skipping tariff file", zap.String("op", "handlers.ListPresets"), zap.String("path", path), zap.Error(err))
			continue
		}
		// Scenario files share the directory; only files with a tariff
		// section that yields a valid schedule are presets.
		if t.PeakPrice == 0 && t.PeakStartHour == nil {
			continue
		}
		if sched, err := t.ToSchedule(); err != nil || sched.Validate() != nil {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".yaml")
		name := t.Name
		if name == "" {
			name = id
		}
		tariffs = append(tariffs, models.TariffInfo{ID: id, Name: name, File: entry.Name(), Tariff: t})
	}
	sort.Slice(tariffs, func(i, j int) bool { return tariffs[i].ID < tariffs[j].ID })

	c.JSON(http.StatusOK, gin.H{"tariffs": tariffs})
}

// Save handles POST /api/v1/tariffs
func (h *TariffHandler) Save(c *gin.Context) {
	if h.store == nil {
		configError(c, errNoStore)
		return
	}
	var req models.SaveTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	t := req.Tariff
	t.Name = req.Name
	sched, err := t.ToSchedule()
	if err == nil {
		err = sched.Validate()
	}
	if err != nil {
		configError(c, err)
		return
	}

	rec, err := h.store.SaveTariff(c.Request.Context(), t)
	if err != nil {
		internalError(c, "STORE_ERROR", err)
		return
	}
	c.JSON(http.StatusCreated, models.TariffInfo{ID: rec.ID, Name: rec.Name, Tariff: rec.Tariff})
}

// ListSaved handles GET /api/v1/tariffs/saved
func (h *TariffHandler) ListSaved(c *gin.Context) {
	if h.store == nil {
		configError(c, errNoStore)
		return
	}
	recs, err := h.store.ListTariffs(c.Request.Context())
	if err != nil {
		internalError(c, "STORE_ERROR", err)
		return
	}
	tariffs := make([]models.TariffInfo, 0, len(recs))
	for _, r := range recs {
		tariffs = append(tariffs, models.TariffInfo{ID: r.ID, Name: r.Name, Tariff: r.Tariff})
	}
	c.JSON(http.StatusOK, gin.H{"tariffs": tariffs})
}
