package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/metrics"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/store"
)

func main() {
	settingsFile := flag.String("settings", "", "optional settings file (YAML); environment variables take precedence")
	flag.Parse()

	settings, err := config.LoadSettings(*settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(2)
	}
	logger, err := config.NewLogger(settings.Logging(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(settings, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(settings *config.Settings, logger *zap.Logger) error {
	st, err := store.Open(settings.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	srv := api.New(settings, st, m, reg, logger)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              settings.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		logger.Info("starting API server",
			zap.String("addr", httpServer.Addr),
			zap.String("env", settings.Env),
			zap.String("db_path", settings.DBPath),
			zap.String("tariff_dir", settings.TariffDir),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}
