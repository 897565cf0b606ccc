// Command stayboost serves the admin API and the storefront API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stayboost/internal"
	"stayboost/internal/pkg/geoip"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	logger := app.Logger

	if err := app.DBManager.MigrateDatabase(); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	if geoip.GetGeoDB() == nil {
		logger.Warn("GeoLite database not loaded; countries come from storefront payloads only")
	}

	if err := app.StartAsync(); err != nil {
		logger.Error("Failed to start application", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("StayBoost started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigChan
	logger.Info("Shutting down", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Server shutdown complete")
}
