package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmaia/budget-calendar-go/internal/config"
	"github.com/rmaia/budget-calendar-go/internal/engine"
	"github.com/rmaia/budget-calendar-go/internal/handler"
	"github.com/rmaia/budget-calendar-go/internal/infra/cache"
	"github.com/rmaia/budget-calendar-go/internal/infra/memory"
	"github.com/rmaia/budget-calendar-go/internal/infra/observability"
	"github.com/rmaia/budget-calendar-go/internal/infra/postgrest"
	"github.com/rmaia/budget-calendar-go/internal/infra/resilience"
	"github.com/rmaia/budget-calendar-go/internal/port"
	"github.com/rmaia/budget-calendar-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "budgetd")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("allow_transfers", cfg.AllowTransfers),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "budget-calendar")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Engine config ---
	engineCfg := engine.DefaultConfig()
	if cfg.BudgetConfigPath != "" {
		engineCfg, err = engine.LoadConfig(cfg.BudgetConfigPath)
		if err != nil {
			logger.Fatal("failed to load budget config",
				zap.String("path", cfg.BudgetConfigPath),
				zap.Error(err),
			)
		}
		logger.Info("budget config loaded",
			zap.String("path", cfg.BudgetConfigPath),
			zap.String("version", engineCfg.Version),
		)
	}

	// --- Cache ---
	planCache := cache.New[any](cfg.CacheTTL)

	// --- Store ---
	var planStore port.PlanStore
	var profileStore port.ProfileFetcher
	if cfg.PostgrestURL != "" {
		logger.Info("using PostgREST as plan store",
			zap.String("postgrest_url", cfg.PostgrestURL),
		)
		pgClient := postgrest.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.PostgrestURL,
			cfg.PostgrestAPIKey,
			cfg.PostgrestServiceKey,
			resilience.NewCircuitBreaker("postgrest"),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		)
		planStore = pgClient
		profileStore = pgClient
	} else {
		logger.Warn("PostgREST not configured, using in-memory store")
		memStore := memory.NewStore()
		planStore = memStore
		profileStore = memStore
	}

	// --- Service ---
	calendarSvc := service.NewCalendar(
		planStore,
		profileStore,
		planCache,
		metrics,
		logger,
		engineCfg,
		cfg.AllowTransfers,
	)

	// --- Router ---
	var jwtSecret []byte
	if cfg.JWTSecret != "" {
		jwtSecret = []byte(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, authentication disabled")
	}
	router := handler.NewRouter(calendarSvc, metrics, jwtSecret, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
