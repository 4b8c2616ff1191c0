package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/classroom-connect/quiz-service/internal/analyzer"
	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/config"
	"github.com/classroom-connect/quiz-service/internal/events"
	"github.com/classroom-connect/quiz-service/internal/handlers"
	"github.com/classroom-connect/quiz-service/internal/repositories/postgres"
	"github.com/classroom-connect/quiz-service/internal/services"
	"github.com/classroom-connect/quiz-service/internal/utils"
	"github.com/classroom-connect/quiz-service/internal/validator"
	"github.com/classroom-connect/quiz-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis: %v", err)
		}
	}

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Initialize validator
	validator := validator.New()

	// Initialize cache manager
	cacheManager := cache.NewCacheManager(redisClient)

	// Initialize analyzer client
	analyzerClient := analyzer.NewClient(cfg.Analyzer, slogLogger)

	// Initialize event publisher
	eventPublisher, err := newEventPublisher(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	// Initialize services
	serviceManager := services.NewDefaultServiceManager(
		db,
		repoManager.GetRepository(),
		slogLogger,
		validator,
		cacheManager,
		analyzerClient,
		eventPublisher,
		cfg,
	)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, validator, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	handlers.SetupMiddleware(router, logger)

	// Setup routes
	handlerManager.SetupRoutes(router)

	// Periodic resync of tutorial attempts left unsynced by failed or
	// deferred post-submit syncs
	resyncCron := startResyncCron(cfg, serviceManager, slogLogger)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the resync sweep, waiting for a running sweep to finish
	cronCtx := resyncCron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Shutdown services (closes the event publisher and repository)
	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	logger.Info("Server exited")
}

// newEventPublisher selects the event transport. Kafka when brokers are
// configured, an in-process channel otherwise.
func newEventPublisher(cfg *config.Config, logger *slog.Logger) (events.EventPublisher, error) {
	if cfg.Events.Transport == "kafka" {
		return events.NewKafkaEventPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
	}
	return events.NewChannelEventPublisher(cfg.Events.KafkaTopic, logger), nil
}

// startResyncCron schedules the reconciliation sweep that pushes unsynced
// tutorial attempts to the analyzer
func startResyncCron(cfg *config.Config, sm services.ServiceManager, logger *slog.Logger) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc(cfg.ResyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := sm.Sync().SyncAll(ctx, nil)
		if err != nil {
			logger.Error("resync sweep failed", "error", err)
			return
		}
		if result.SuccessCount > 0 || result.ErrorCount > 0 {
			logger.Info("resync sweep finished",
				"synced", result.SuccessCount,
				"failed", result.ErrorCount)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule resync sweep: %v", err)
	}

	c.Start()
	logger.Info("resync sweep scheduled", "schedule", cfg.ResyncSchedule)
	return c
}
