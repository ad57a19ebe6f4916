package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// reconcileOccurrenceCounts rewrites occurrence_count and last_seen from the
// stored snapshots. Ledgers written before the upsert-based capture path could
// drift under concurrent writers; afterwards the count always equals the number
// of snapshots and last_seen the newest captured_at.
func reconcileOccurrenceCounts(db *gorm.DB) error {
	if !db.Migrator().HasTable("error_records") || !db.Migrator().HasTable("context_snapshots") {
		return nil
	}

	if err := db.Exec(`
		UPDATE error_records
		SET occurrence_count = (
			SELECT COUNT(*) FROM context_snapshots
			WHERE context_snapshots.error_signature = error_records.signature
		),
		last_seen = (
			SELECT MAX(captured_at) FROM context_snapshots
			WHERE context_snapshots.error_signature = error_records.signature
		)
		WHERE EXISTS (
			SELECT 1 FROM context_snapshots
			WHERE context_snapshots.error_signature = error_records.signature
		)`).Error; err != nil {
		return fmt.Errorf("reconcile occurrence counts: %w", err)
	}

	return nil
}
