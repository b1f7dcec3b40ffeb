package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/auth"
	"gastos/internal/cache"
	"gastos/internal/config"
	apphttp "gastos/internal/http"
	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/storage"
	"gastos/internal/telemetry"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "gastos", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	repo, err := storage.NewSQLiteRepository(ctx, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("SQLite repository ready", "path", cfg.SQLiteDBPath)

	creds, err := auth.NewCredentials(cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)
	if err != nil {
		return err
	}

	var publisher services.AlertPublisher = services.NoopPublisher{}
	if cfg.AlertsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Alerts are best effort; the API runs without a broker.
			logger.Warn("AMQP unavailable, budget alerts disabled", log.FieldError, err.Error())
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Budget alerts enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	caches := cache.NewManager()
	caches.StartCleanup(ctx, cfg.CacheTTL)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Auth:          services.NewAuthService(repo, creds),
		Ledger:        services.NewLedgerService(repo, publisher, cfg.CacheTTL, caches),
		Tokens:        creds,
		DB:            repo,
		Caches:        caches,
		Logger:        logger,
		StaticDir:     cfg.StaticDir,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting gastos server", "port", cfg.Port, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
