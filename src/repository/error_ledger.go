package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"errorledger/src/database"
	"errorledger/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// LogComponent tags every log entry written by the ledger.
	LogComponent = "errorledger"

	// DefaultTopLimit is used when TopErrors is called with a non-positive limit.
	DefaultTopLimit = 50

	// RecentContextLimit bounds the snapshots returned by GetError.
	RecentContextLimit = 3
)

// ErrorLedger is the storage contract of the capture pipeline and read API.
type ErrorLedger interface {
	Initialize(ctx context.Context) error
	RecordOccurrence(ctx context.Context, signature string, fields model.ErrorFields, payload string) bool
	TopErrors(ctx context.Context, limit int) ([]model.ErrorRecord, error)
	GetError(ctx context.Context, signature string) (*model.ErrorDetail, error)
}

// StorageReadError wraps a backend failure on the query path. It is never
// used for an unknown signature.
type StorageReadError struct {
	Op  string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// GormErrorLedger implements ErrorLedger on any gorm dialect that supports
// INSERT ... ON CONFLICT (sqlite, postgres).
type GormErrorLedger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewErrorLedgerWithDB creates a ledger on top of an open connection.
func NewErrorLedgerWithDB(db *gorm.DB) *GormErrorLedger {
	return &GormErrorLedger{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ ErrorLedger = (*GormErrorLedger)(nil)

// Initialize creates the schema and applies data migrations.
func (r *GormErrorLedger) Initialize(ctx context.Context) error {
	if err := database.Migrate(r.db.WithContext(ctx)); err != nil {
		return &database.InitializationError{Provider: r.db.Dialector.Name(), Err: err}
	}
	return nil
}

// RecordOccurrence finds or creates the record for signature, bumps its count
// and appends one snapshot, all in one transaction. Failures are logged and
// reported as false.
func (r *GormErrorLedger) RecordOccurrence(
	ctx context.Context,
	signature string,
	fields model.ErrorFields,
	payload string,
) bool {
	return r.recordOccurrence(ctx, signature, fields, payload, "")
}

// RecordCapture is RecordOccurrence with the capture id stored on the snapshot.
func (r *GormErrorLedger) RecordCapture(
	ctx context.Context,
	captureID string,
	signature string,
	fields model.ErrorFields,
	payload string,
) bool {
	return r.recordOccurrence(ctx, signature, fields, payload, captureID)
}

func (r *GormErrorLedger) recordOccurrence(
	ctx context.Context,
	signature string,
	fields model.ErrorFields,
	payload string,
	captureID string,
) bool {
	log := logger.WithFields(map[string]interface{}{
		"component": LogComponent,
		"repo":      "ErrorLedger",
		"op":        "RecordOccurrence",
		"signature": signature,
	})

	if signature == "" {
		log.Error("Refusing to store error without signature")
		return false
	}

	now := r.now()
	record := model.ErrorRecord{
		Signature:       signature,
		Code:            fields.Code,
		Message:         fields.Message,
		SourceFile:      fields.SourceFile,
		SourceLine:      fields.SourceLine,
		Kind:            fields.Kind,
		StackTrace:      fields.StackTrace,
		OccurrenceCount: 1,
		FirstSeen:       now,
		LastSeen:        now,
	}
	snapshot := model.ContextSnapshot{
		ErrorSignature: signature,
		CaptureID:      captureID,
		Payload:        payload,
		CapturedAt:     now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The unique index on signature makes this the only find-or-create
		// step; a concurrent first capture lands in DO UPDATE instead.
		if err := tx.
			Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "signature"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"occurrence_count": gorm.Expr("error_records.occurrence_count + 1"),
					"last_seen":        now,
				}),
			}).
			Create(&record).Error; err != nil {
			return fmt.Errorf("upsert error record: %w", err)
		}

		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("append context snapshot: %w", err)
		}

		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to store error occurrence")
		return false
	}

	log.Debug("Error occurrence stored")
	return true
}

// TopErrors returns up to limit records ordered by occurrence count, most
// frequent first. Ties keep insertion order.
func (r *GormErrorLedger) TopErrors(ctx context.Context, limit int) ([]model.ErrorRecord, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	var records []model.ErrorRecord
	err := r.db.WithContext(ctx).
		Order("occurrence_count DESC").
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": LogComponent,
			"repo":      "ErrorLedger",
			"op":        "TopErrors",
			"limit":     limit,
		}).WithError(err).Error("Failed to list top errors")

		return nil, &StorageReadError{Op: "top errors", Err: err}
	}

	return records, nil
}

// GetError returns the record for signature with its last RecentContextLimit
// snapshots in chronological order. Returns (nil, nil) if not found.
func (r *GormErrorLedger) GetError(ctx context.Context, signature string) (*model.ErrorDetail, error) {
	log := logger.WithFields(map[string]interface{}{
		"component": LogComponent,
		"repo":      "ErrorLedger",
		"op":        "GetError",
		"signature": signature,
	})

	var record model.ErrorRecord
	err := r.db.WithContext(ctx).
		Where("signature = ?", signature).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debug("Error signature not found")
			return nil, nil
		}

		log.WithError(err).Error("Failed to fetch error record")
		return nil, &StorageReadError{Op: "get error", Err: err}
	}

	var recent []model.ContextSnapshot
	err = r.db.WithContext(ctx).
		Where("error_signature = ?", signature).
		Order("id DESC").
		Limit(RecentContextLimit).
		Find(&recent).Error
	if err != nil {
		log.WithError(err).Error("Failed to fetch context snapshots")
		return nil, &StorageReadError{Op: "get error context", Err: err}
	}

	detail := &model.ErrorDetail{
		ErrorRecord: record,
		Trace:       rawJSON(record.StackTrace),
		Context:     make([]json.RawMessage, 0, len(recent)),
	}
	for i := len(recent) - 1; i >= 0; i-- {
		detail.Context = append(detail.Context, rawJSON(recent[i].Payload))
	}

	return detail, nil
}

// rawJSON guards the read path against blobs written by older versions or by
// hand; anything that is not valid JSON is surfaced as an empty list.
func rawJSON(blob string) json.RawMessage {
	if blob == "" || !json.Valid([]byte(blob)) {
		return json.RawMessage("[]")
	}
	return json.RawMessage(blob)
}
