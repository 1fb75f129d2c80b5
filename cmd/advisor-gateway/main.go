package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clinicore/advisor-gateway/app"
	"github.com/clinicore/advisor-gateway/config"
	"github.com/clinicore/advisor-gateway/routes"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}

	if err := deps.Start(); err != nil {
		logger.Fatal("failed to start background workers", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("advisor gateway listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("environment", cfg.Environment))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}

	logger.Info("advisor gateway stopped")
}

// newLogger builds the zap logger from observability config
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}

	var zapCfg zap.Config
	if cfg.Observability.LogFormat == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
