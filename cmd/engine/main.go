package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"project-board-sync/internal/config"
	"project-board-sync/internal/database"
	"project-board-sync/internal/job"
	"project-board-sync/internal/metrics"
	"project-board-sync/internal/migration"
	"project-board-sync/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting board sync engine",
		zap.String("driver", cfg.Database.Driver),
		zap.String("audit_schedule", cfg.Audit.Schedule),
	)

	// Initialize metrics
	m := metrics.New()
	logger.Info("Metrics initialized")

	// Initialize database
	dbConfig := database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Std(),
	}

	db, err := database.New(dbConfig)
	if err != nil {
		logger.Warn("Failed to connect to database on startup, will retry in background",
			zap.Error(err))
		database.NewAsync(dbConfig, 5*time.Second)

		// The engine cannot do anything useful without storage; wait for
		// the async retry loop to land a connection.
		for db == nil {
			time.Sleep(time.Second)
			db = database.GetDB()
		}
	}
	database.SetDB(db)
	logger.Info("Database connected successfully")

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")

	database.RegisterMetricsCallbacks(db, m)
	statsDone := database.StartDBStatsCollector(db, m)
	defer close(statsDone)

	// Convert legacy weekly cards before the engine touches any plan.
	converted, err := migration.MigrateLegacyWeeklyCards(context.Background(), db, logger)
	if err != nil {
		logger.Fatal("Legacy weekly card migration failed", zap.Error(err))
	}
	if converted > 0 {
		logger.Info("Legacy weekly card migration completed",
			zap.Int("converted", converted))
	}

	// Wire the engine
	locks := service.NewEntityLocks()
	engine := service.NewSyncEngine(db, locks, service.NopNotifier{}, m, logger)

	// A fresh store gets an initial board shaped by the configured columns.
	boards := service.NewBoardService(db, engine, cfg.Engine.DefaultColumns, logger)
	board, err := boards.EnsureDefaultBoard(context.Background())
	if err != nil {
		logger.Fatal("Failed to ensure the default board", zap.Error(err))
	}
	logger.Info("Default board ready",
		zap.String("board_id", board.ID.String()),
		zap.String("name", board.Name))

	// Schedule the consistency audit
	auditJob := job.NewConsistencyJob(db, engine, m, logger, cfg.Audit.Repair)
	scheduler := cron.New()
	if _, err := scheduler.AddJob(cfg.Audit.Schedule, auditJob); err != nil {
		logger.Fatal("Failed to schedule consistency audit",
			zap.String("schedule", cfg.Audit.Schedule),
			zap.Error(err))
	}
	scheduler.Start()
	logger.Info("Consistency audit scheduled",
		zap.String("schedule", cfg.Audit.Schedule),
		zap.Bool("repair", cfg.Audit.Repair))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	if err := database.Close(db); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}
	logger.Info("Engine exited gracefully")
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
