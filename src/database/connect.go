package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnknownProvider is returned when LEDGER_STORAGE_PROVIDER names a backend
// this build does not ship.
var ErrUnknownProvider = errors.New("unknown storage provider")

// InitializationError reports that the storage backend could not be created
// or opened. The ledger stays disabled for the lifetime of the process.
type InitializationError struct {
	Provider string
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s storage: %v", e.Provider, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Open connects to the configured backend. Only the providers declared in
// config.go are accepted.
func Open(config Config) (*gorm.DB, error) {
	provider := strings.ToLower(strings.TrimSpace(config.StorageProvider))

	var (
		dialector gorm.Dialector
		err       error
	)
	switch provider {
	case ProviderSQLite:
		dialector, err = sqliteDialector(config.DataDir)
	case ProviderPostgres:
		dialector, err = postgresDialector(config.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownProvider, config.StorageProvider, ProviderSQLite, ProviderPostgres)
	}
	if err != nil {
		return nil, &InitializationError{Provider: provider, Err: err}
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, &InitializationError{Provider: provider, Err: err}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &InitializationError{Provider: provider, Err: fmt.Errorf("get sql.DB from gorm: %w", err)}
	}

	if provider == ProviderSQLite {
		// Writers queue on the pool instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, &InitializationError{Provider: provider, Err: fmt.Errorf("ping: %w", err)}
	}

	logrus.WithFields(map[string]interface{}{
		"component": "database",
		"provider":  provider,
	}).Info("[database] ledger storage connection established")

	return db, nil
}

func sqliteDialector(dataDir string) (gorm.Dialector, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data directory is empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("directory %q was not created: %w", dataDir, err)
	}

	path := filepath.Join(dataDir, SQLiteFileName)
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", path)
	return sqlite.Open(dsn), nil
}

func postgresDialector(url string) (gorm.Dialector, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("LEDGER_DATABASE_URL is required for the postgres provider")
	}
	return postgres.Open(url), nil
}
