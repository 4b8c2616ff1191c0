package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/analyzer"
	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/config"
	"github.com/classroom-connect/quiz-service/internal/events"
	"github.com/classroom-connect/quiz-service/internal/repositories"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	LogLevel slog.Level

	Analyzer  config.AnalyzerConfig
	SyncBatch int

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db             *gorm.DB
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	cacheManager   *cache.CacheManager
	analyzerClient analyzer.Client
	eventPublisher events.EventPublisher
	config         ServiceManagerConfig

	// Service instances
	quizService    QuizService
	attemptService AttemptService
	gradingService GradingService
	syncService    SyncService
	exportService  ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	cacheManager *cache.CacheManager,
	analyzerClient analyzer.Client,
	eventPublisher events.EventPublisher,
	cfg ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		db:             db,
		repo:           repo,
		logger:         logger,
		validator:      validator,
		cacheManager:   cacheManager,
		analyzerClient: analyzerClient,
		eventPublisher: eventPublisher,
		config:         cfg,
	}
}

// NewDefaultServiceManager creates a service manager from the application
// configuration
func NewDefaultServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	cacheManager *cache.CacheManager,
	analyzerClient analyzer.Client,
	eventPublisher events.EventPublisher,
	appCfg *config.Config,
) ServiceManager {
	cfg := ServiceManagerConfig{
		LogLevel:       appCfg.LogLevel,
		Analyzer:       appCfg.Analyzer,
		SyncBatch:      appCfg.ResyncBatch,
		DefaultTimeout: 30 * time.Second,
	}

	return NewServiceManager(db, repo, logger, validator, cacheManager, analyzerClient, eventPublisher, cfg)
}

// Initialize sets up all services and their dependencies. Services with
// cross dependencies are wired in dependency order: grading first, then
// sync, then attempts which consume both.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.gradingService = NewGradingService(sm.db, sm.repo, sm.logger, sm.validator)
	sm.logger.Info("Grading service initialized")

	sm.syncService = NewSyncService(sm.repo, sm.analyzerClient, sm.eventPublisher, sm.logger, sm.cacheManager, sm.config.Analyzer, sm.config.SyncBatch)
	sm.logger.Info("Sync service initialized")

	sm.quizService = NewQuizService(sm.repo, sm.db, sm.logger, sm.validator, sm.cacheManager, sm.eventPublisher)
	sm.logger.Info("Quiz service initialized")

	sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.gradingService, sm.syncService, sm.analyzerClient, sm.eventPublisher)
	sm.logger.Info("Attempt service initialized")

	sm.exportService = NewExportService(sm.repo, sm.logger)
	sm.logger.Info("Export service initialized")

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Quiz() QuizService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.quizService == nil {
		panic("quiz service not initialized")
	}
	return sm.quizService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.attemptService == nil {
		panic("attempt service not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.gradingService == nil {
		panic("grading service not initialized")
	}
	return sm.gradingService
}

func (sm *serviceManager) Sync() SyncService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.syncService == nil {
		panic("sync service not initialized")
	}
	return sm.syncService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.exportService == nil {
		panic("export service not initialized")
	}
	return sm.exportService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.eventPublisher != nil {
		if err := sm.eventPublisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if err := sm.repo.Close(); err != nil {
		sm.logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}
