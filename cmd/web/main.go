package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/app"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/server"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
)

func main() {
	// .env is optional; production uses real env vars
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; admin endpoints will reject every request")
	}
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		os.Exit(1)
	}
	if os.Getenv("AUTO_MIGRATE") == "1" {
		if err := app.Migrate(a.DB); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	srv := server.New(logger, cfg.HTTP, a.Router())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	if err := a.Close(); err != nil {
		logger.Warn("close failed", "err", err)
	}
}
