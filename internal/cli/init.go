// Package cli provides common CLI initialization utilities shared by the
// gastos commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"gastos/internal/backend"
	"gastos/internal/config"
	applog "gastos/internal/log"
)

// SetupLogger builds the application logger from cfg and sets it as the
// default logger.
func SetupLogger(cfg *config.Config) (*applog.Logger, error) {
	logCfg := applog.DefaultConfig()
	if cfg != nil {
		level, err := applog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logCfg.Level = level
		logCfg.Format = cfg.LogFormat
	}
	logger := applog.New(logCfg)
	applog.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile(filenames ...string) {
	_ = godotenv.Load(filenames...)
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig(cfgFile string, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Build(cfgFile, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenService builds the configured backend and initializes the store.
// The returned result must be released with its Cleanup function.
func OpenService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	if err := result.Service.Init(ctx); err != nil {
		if cerr := result.Cleanup(); cerr != nil {
			logger.WarnContext(ctx, "Cleanup after failed init", applog.FieldError, cerr)
		}
		return nil, fmt.Errorf("initialize %s backend: %w", backendCfg.Type, err)
	}
	return result, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM and a
// stop function restoring default signal handling.
func GracefulShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
