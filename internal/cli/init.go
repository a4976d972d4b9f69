// Package cli provides the initialization steps shared by cmd/ledger and
// cmd/ledgerctl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level slog.Level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads a .env file for local development.
// Errors are ignored as the file is optional.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// LedgerOptions maps configuration onto storage options.
func LedgerOptions(cfg *config.Config) storage.Options {
	return storage.Options{
		StrictCategories: cfg.StrictCategories,
		StrictIDs:        cfg.StrictIDs,
	}
}

// OpenLedgerService opens the SQLite ledger and, when AMQP_URL is set,
// the event publisher. A broker that cannot be reached disables events
// instead of failing startup.
func OpenLedgerService(logger *log.Logger, cfg *config.Config) (*services.LedgerService, error) {
	ledger, err := storage.NewSQLiteLedger(cfg.DBPath, LedgerOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.DBPath, err)
	}

	opts := services.Options{
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
		Logger:    logger.WithComponent(log.ComponentLedger),
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			opts.Publisher = client
		}
	}

	logger.Info("Ledger opened", "path", ledger.Path())
	return services.NewLedgerService(ledger, opts), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
