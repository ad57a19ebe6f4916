package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"

	// SQLiteFileName is the database file created inside the data directory.
	SQLiteFileName = "ledger.db"
)

type Config struct {
	LogLevel        string `envconfig:"LOG_LEVEL" default:"debug"` // Expected to hold values like "debug", "info", "warn", "error"
	LogFormat       string `envconfig:"LOG_FORMAT" default:"text"` // Expected to hold values like "json" or "text"
	StorageProvider string `envconfig:"LEDGER_STORAGE_PROVIDER" default:"sqlite"`
	DataDir         string `envconfig:"LEDGER_DATA_DIR" default:"./data"`
	DatabaseURL     string `envconfig:"LEDGER_DATABASE_URL"`
	GormLogLevel    int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

// GetConfig reads the storage settings from the environment.
func GetConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return config, fmt.Errorf("error processing env config: %w", err)
	}
	return config, nil
}
