package setup

import (
	"context"
	"log"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/akguild/guildkeeper/internal/redis"
	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/akguild/guildkeeper/internal/setup/telemetry"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database client for the selected backend
	RedisManager *redis.Manager     // Redis connection manager
	StatusClient rueidis.Client     // Redis client for worker status reporting, nil when disabled
	LogManager   *telemetry.Manager // Log management system
}

// InitializeApp loads the configuration, sets up logging and opens the database.
// The schema is not touched; callers decide whether to run EnsureSchema or the
// migration commands.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Debug, true)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	if configDir != "" {
		logger.Info("Loaded config file", zap.String("dir", configDir))
	}

	db, err := database.Open(ctx, cfg.Database.URL, database.OptionsFromConfig(&cfg.Database), dbLogger.Named("database"))
	if err != nil {
		logManager.Stop()
		return nil, err
	}

	logger.Info("Database opened", zap.String("backend", string(db.Backend())))

	redisManager := redis.NewManager(&cfg.Redis, logger)

	var statusClient rueidis.Client

	if redisManager.Enabled() {
		statusClient, err = redisManager.GetClient(redis.WorkerStatusDBIndex)
		if err != nil {
			db.Close()
			logManager.Stop()

			return nil, err
		}
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		StatusClient: statusClient,
		LogManager:   logManager,
	}, nil
}

// Cleanup shuts down all components in reverse initialization order.
// Errors are logged so every component still gets its cleanup attempt.
func (s *App) Cleanup(_ context.Context) {
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	s.RedisManager.Close()

	// Flush logs last so the shutdown itself is recorded
	s.LogManager.Stop()
}
