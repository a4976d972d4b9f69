package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/thresholds"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(slog.LevelInfo, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := cli.SetupLogger(level, log.ComponentApp)

	if err := run(logger, cfg); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// run serves until a signal arrives or the listener fails. Every resource
// it opens is closed before it returns.
func run(logger *log.Logger, cfg *config.Config) error {
	limits, err := thresholds.Load(cfg.ThresholdsFile)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}

	svc, err := cli.OpenLedgerService(logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger", "error", err)
		}
	}()

	caches := cache.NewManager()
	for _, c := range svc.Caches() {
		caches.Register(c)
	}
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	}
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Limits:    limits,
		YearAware: cfg.YearAwareMonthFilter(),
		Logger:    logger.WithComponent(log.ComponentHTTP),
	})

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting ledger server",
			"port", cfg.Port,
			"db_path", cfg.DBPath,
			"month_filter", cfg.MonthFilterMode,
			"events", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
