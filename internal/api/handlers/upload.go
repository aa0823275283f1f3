package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/metrics"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

// UploadHandler ingests demand files and serves their metadata.
type UploadHandler struct {
	store    *store.Store
	metrics  *metrics.Metrics
	maxBytes int64
	logger   *zap.Logger
}

func NewUploadHandler(st *store.Store, m *metrics.Metrics, maxBytes int64, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{store: st, metrics: m, maxBytes: maxBytes, logger: logger}
}

// Create handles POST /api/v1/uploads
//
// The body is either a multipart form with a "file" field or the raw file
// with ?filename=. JSON bodies ({"timestamps": [...], "power_kw": [...]})
// are accepted alongside the vendor CSV export.
func (h *UploadHandler) Create(c *gin.Context) {
	if h.store == nil {
		configError(c, errNoStore)
		return
	}
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	body, filename, isJSON, err := h.openBody(c)
	if err != nil {
		bindError(c, err)
		return
	}
	defer body.Close()

	var parsed data.Parsed
	if isJSON {
		series, jerr := data.DecodeSeriesJSON(body)
		err = jerr
		parsed = data.Parsed{Series: series, Info: data.Describe(series), Warnings: []data.Warning{}}
		if err == nil && len(series) == 0 {
			err = data.ErrNoValidRows
		}
	} else {
		parsed, err = data.ParseVendorCSV(body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: models.ErrorDetail{Code: "UPLOAD_TOO_LARGE", Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "INVALID_UPLOAD", Message: err.Error()},
		})
		return
	}

	rec, err := h.store.SaveUpload(c.Request.Context(), filename, parsed)
	if err != nil {
		internalError(c, "STORE_ERROR", err)
		return
	}
	h.metrics.ObserveUpload(len(parsed.Series), len(parsed.Warnings))

	warnings := parsed.Warnings
	if warnings == nil {
		warnings = []data.Warning{}
	}
	c.JSON(http.StatusCreated, models.UploadResponse{
		ID:       rec.ID,
		Filename: rec.Filename,
		Info:     rec.Info,
		Warnings: warnings,
	})
}

func (h *UploadHandler) openBody(c *gin.Context) (io.ReadCloser, string, bool, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", false, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", false, err
		}
		return f, fh.Filename, strings.HasSuffix(strings.ToLower(fh.Filename), ".json"), nil
	}
	filename := c.DefaultQuery("filename", "upload.csv")
	isJSON := c.ContentType() == gin.MIMEJSON || strings.HasSuffix(strings.ToLower(filename), ".json")
	return c.Request.Body, filename, isJSON, nil
}

// Get handles GET /api/v1/uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	if h.store == nil {
		configError(c, errNoStore)
		return
	}
	rec, err := h.store.GetUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			configError(c, err)
			return
		}
		internalError(c, "STORE_ERROR", err)
		return
	}
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []data.Warning{}
	}
	c.JSON(http.StatusOK, models.UploadResponse{
		ID:       rec.ID,
		Filename: rec.Filename,
		Info:     rec.Info,
		Warnings: warnings,
	})
}
