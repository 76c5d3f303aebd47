package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_balances/internal/core/services"
	"github.com/SscSPs/ledger_balances/internal/events"
	"github.com/SscSPs/ledger_balances/internal/handlers"
	"github.com/SscSPs/ledger_balances/internal/jobs"
	"github.com/SscSPs/ledger_balances/internal/middleware"
	"github.com/SscSPs/ledger_balances/internal/platform/config"
	"github.com/SscSPs/ledger_balances/internal/repositories/database/pgsql"
	"github.com/SscSPs/ledger_balances/internal/repositories/database/sqlite"
	"github.com/SscSPs/ledger_balances/pkg/database"
)

// @title Ledger Balances API
// @version 1.0
// @description Running balance engine for ledger lines.

// @host localhost:8080
// @BasePath /
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("driver", cfg.StorageDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	serviceContainer := services.NewServiceContainer(cfg, repos)

	if cfg.ResetOnStartup {
		// A failed reset leaves balances untrustworthy; refuse to serve them.
		if _, ok := serviceContainer.Balance.ResetAndRecompute(middleware.WithLogger(ctx, logger)); !ok {
			logger.Error("Startup balance reset failed")
			closeStore()
			os.Exit(1)
		}
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery(), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	err = r.SetTrustedProxies(nil)
	if err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid RATE_LIMIT", slog.String("rate", cfg.RateLimit), slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer, middleware.RateLimit(rateLimiter))

	var workers sync.WaitGroup

	if len(cfg.KafkaBrokers) > 0 {
		consumer := events.NewConsumer(events.Config{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.KafkaTopic,
			GroupID:     cfg.KafkaGroupID,
			MaxAttempts: cfg.RecomputeMaxRetries + 1,
			Backoff:     cfg.RecomputeRetryBackoff,
		}, serviceContainer.Ledger, logger)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("Ledger event consumer failed", slog.String("error", err.Error()))
			}
			if err := consumer.Close(); err != nil {
				logger.Error("Failed to close ledger event reader", slog.String("error", err.Error()))
			}
		}()
	}

	var repair *jobs.RepairScheduler
	if cfg.RepairSchedule != "" {
		repair, err = jobs.NewRepairScheduler(jobs.RepairConfig{
			Schedule: cfg.RepairSchedule,
			TimeZone: cfg.RepairTimezone,
		}, serviceContainer.Balance, logger)
		if err != nil {
			logger.Error("Failed to schedule balance repair", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repair.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("driver", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
	if repair != nil {
		repair.Stop(shutdownCtx)
	}
	workers.Wait()
	logger.Info("Server stopped")
}

// openStorage opens the configured backend and returns its repositories with a close function.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.RepositoryProvider, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return repositories.RepositoryProvider{}, nil, err
		}
		logger.Info("SQLite store opened.", slog.String("path", cfg.SQLitePath))
		return sqlite.NewRepositoryProvider(store), func() {
			if err := store.Close(); err != nil {
				logger.Error("Error closing SQLite store", slog.String("error", err.Error()))
			}
		}, nil

	default:
		// Initialize database connection pool (for application use)
		dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			return repositories.RepositoryProvider{}, nil, err
		}
		logger.Info("Database connection pool established.")

		if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			dbPool.Close()
			return repositories.RepositoryProvider{}, nil, err
		}
		return pgsql.NewRepositoryProvider(dbPool), func() { database.ClosePgxPool(dbPool) }, nil
	}
}
