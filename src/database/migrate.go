package database

import (
	"fmt"

	"errorledger/src/database/migrations"
	"errorledger/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate creates or updates the ledger schema and runs pending data
// migrations. It is safe to call on every start.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.ErrorRecord{},
		&model.ContextSnapshot{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	logrus.WithField("component", "database").Info("[database] ledger migrations completed")

	return nil
}
