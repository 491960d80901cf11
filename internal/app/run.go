package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Run is the main entry point for the token broker
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logging
	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting OAuth2 token broker", logging.Field{Key: "version", Value: "1.0.0"})

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	srv := app.NewServer()
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}
	logging.Info("Listening", logging.Field{Key: "port", Value: cfg.Port})

	// Wait for interrupt signal or a fatal serve error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-srv.Errors():
		logging.Error("Server stopped unexpectedly", err)
		return err
	}

	logging.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
