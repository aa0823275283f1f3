// Package api assembles the HTTP server: gin routes, middleware, metrics
// and compression.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/NYTimes/gziphandler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/handlers"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/middleware"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/metrics"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

// Server owns the router and the handlers that hold background resources.
type Server struct {
	router *gin.Engine
	engine *handlers.EngineHandler
	hub    *handlers.Hub
	logger *zap.Logger
}

// New wires every route. st may be nil (persistence routes then answer 503);
// gatherer may be nil to skip /metrics.
func New(settings *config.Settings, st *store.Store, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply middleware
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS(settings.CORSOrigins))
	router.Use(middleware.Logger(logger, m))

	scenarios := handlers.NewScenarios(settings.TariffDir, st, logger)
	engineHandler := handlers.NewEngineHandler(scenarios, st, m, settings.CacheTTL, logger)
	strategyHandler := handlers.NewStrategyHandler()
	tariffHandler := handlers.NewTariffHandler(scenarios.TariffDir(), st, logger)
	uploadHandler := handlers.NewUploadHandler(st, m, settings.MaxUploadBytes, logger)
	hub := handlers.NewHub(m)
	streamHandler := handlers.NewStreamHandler(hub, scenarios, st, m, logger)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "stream_clients": hub.ClientCount()}
		if st != nil {
			if err := st.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
				return
			}
			status["store"] = "ok"
		}
		c.JSON(http.StatusOK, status)
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyze", engineHandler.Analyze)
		v1.POST("/dimension", engineHandler.Dimension)
		v1.POST("/dimension/compare", engineHandler.Compare)
		v1.POST("/simulate", engineHandler.Simulate)
		v1.GET("/simulations/:id", engineHandler.GetSimulation)
		v1.GET("/simulations/:id/days", engineHandler.GetSimulationDays)

		v1.GET("/strategies", strategyHandler.ListStrategies)

		v1.GET("/tariffs", tariffHandler.ListPresets)
		v1.POST("/tariffs", tariffHandler.Save)
		v1.GET("/tariffs/saved", tariffHandler.ListSaved)

		v1.POST("/uploads", uploadHandler.Create)
		v1.GET("/uploads/:id", uploadHandler.Get)
		v1.GET("/uploads/:id/stream", streamHandler.Serve)
	}

	serveStatic(router, settings.StaticDir, logger)

	return &Server{router: router, engine: engineHandler, hub: hub, logger: logger}
}

// serveStatic serves a built SPA from dir, falling back to index.html for
// every non-API path.
func serveStatic(router *gin.Engine, dir string, logger *zap.Logger) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	}
	if dir == "" {
		router.NoRoute(notFound)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Info("static directory not found, skipping static file serving", zap.String("dir", dir))
		router.NoRoute(notFound)
		return
	}

	router.Static("/assets", filepath.Join(dir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))
	index := filepath.Join(dir, "index.html")
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			notFound(c)
			return
		}
		c.File(index)
	})
	logger.Info("serving static files", zap.String("dir", dir))
}

// Handler is the router wrapped in gzip compression. WebSocket upgrades
// bypass the gzip writer, which cannot be hijacked.
func (s *Server) Handler() http.Handler {
	gz := gziphandler.GzipHandler(s.router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			s.router.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Close disconnects stream clients and stops cache janitors.
func (s *Server) Close() {
	s.hub.CloseAll()
	s.engine.Close()
}
