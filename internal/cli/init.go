// Package cli holds the start-up steps shared by the finboard binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finboard/internal/config"
	"finboard/internal/log"
	"finboard/internal/storage"
)

// SetupLogger installs the process logger for component. Call it after
// LoadEnvFile so LOG_LEVEL and LOG_FORMAT from .env apply.
func SetupLogger(component string) *log.Logger {
	return log.Setup(component)
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process if it is
// invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the configured backend and applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*storage.Repository, error) {
	driver := storage.Driver(cfg.DBDriver)
	dsn := cfg.SQLiteDBPath
	if driver == storage.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	return storage.Open(ctx, driver, dsn)
}

// MustOpenStore is OpenStore that exits the process on failure.
func MustOpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) *storage.Repository {
	repo, err := OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. A
// second signal restores default handling so it terminates immediately.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
