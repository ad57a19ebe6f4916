package app

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"errorledger/src/capture"
	"errorledger/src/database"
	"errorledger/src/repository"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds the process-wide ledger handle and the pipeline built on it.
// Ledger is nil when storage could not be initialized; captures are then
// discarded and the host keeps running.
type App struct {
	Ledger   repository.ErrorLedger
	Pipeline *capture.Pipeline

	db *gorm.DB
}

// SetupLogger configures the standard logrus logger from LOG_LEVEL and LOG_FORMAT.
func SetupLogger(config database.Config) {
	level, err := logger.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

// LoadEnvFile loads variables from .env (or the given files) without
// overriding the ones already set. A missing file is not an error.
func LoadEnvFile(filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WithError(err).Warn("env file not loaded")
		}
		return
	}
	logger.Debug("environment loaded from env file")
}

// FromEnv reads configuration from the environment and bootstraps the App.
// Configuration errors disable the ledger instead of failing.
func FromEnv(ctx context.Context) *App {
	dbConfig, err := database.GetConfig()
	if err != nil {
		logger.WithError(err).Error("Invalid storage configuration, error ledger disabled")
		captureConfig, _ := capture.GetConfig()
		return &App{Pipeline: capture.NewPipeline(nil, captureConfig)}
	}
	SetupLogger(dbConfig)

	captureConfig, err := capture.GetConfig()
	if err != nil {
		logger.WithError(err).Warn("Invalid capture configuration, using defaults")
	}

	return Bootstrap(ctx, dbConfig, captureConfig)
}

// Bootstrap opens and initializes the configured ledger and builds the
// pipeline. It never fails: any storage error is logged once and leaves
// App.Ledger nil.
func Bootstrap(ctx context.Context, dbConfig database.Config, captureConfig capture.Config) *App {
	a := &App{}

	db, err := database.Open(dbConfig)
	if err != nil {
		logger.WithError(err).
			WithField("provider", dbConfig.StorageProvider).
			Error("Failed to initialize error ledger storage")
		a.Pipeline = capture.NewPipeline(nil, captureConfig)
		return a
	}

	ledger := repository.NewErrorLedgerWithDB(db)
	if err := ledger.Initialize(ctx); err != nil {
		logger.WithError(err).
			WithField("provider", dbConfig.StorageProvider).
			Error("Failed to initialize error ledger")
		closeDB(db)
		a.Pipeline = capture.NewPipeline(nil, captureConfig)
		return a
	}

	a.db = db
	a.Ledger = ledger
	a.Pipeline = capture.NewPipeline(ledger, captureConfig)
	return a
}

// Enabled reports whether captures reach storage.
func (a *App) Enabled() bool {
	return a.Ledger != nil
}

// InstallLogHook makes error-level entries of log become captures.
func (a *App) InstallLogHook(log *logger.Logger) {
	log.AddHook(capture.NewLogHook(a.Pipeline))
}

// Close releases the storage connection.
func (a *App) Close() {
	if a.db != nil {
		closeDB(a.db)
		a.db = nil
	}
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close ledger storage")
	}
}
