package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestErrorLedgerMock_RecordOccurrence(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("commits upsert and snapshot together", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := &GormErrorLedger{db: mockDB, now: func() time.Time { return fixed }}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "error_records"`) + `.*` + regexp.QuoteMeta(`ON CONFLICT ("signature") DO UPDATE SET`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "context_snapshots"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		assert.True(t, ledger.RecordOccurrence(context.Background(), "sig-a", fieldsFor("a"), "{}"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert failure rolls back", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := &GormErrorLedger{db: mockDB, now: func() time.Time { return fixed }}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "error_records"`)).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		assert.False(t, ledger.RecordOccurrence(context.Background(), "sig-a", fieldsFor("a"), "{}"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("snapshot failure rolls back the count", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := &GormErrorLedger{db: mockDB, now: func() time.Time { return fixed }}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "error_records"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "context_snapshots"`)).
			WillReturnError(errors.New("constraint violated"))
		mock.ExpectRollback()

		assert.False(t, ledger.RecordOccurrence(context.Background(), "sig-a", fieldsFor("a"), "{}"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestErrorLedgerMock_ReadFailures(t *testing.T) {
	t.Run("top errors", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := NewErrorLedgerWithDB(mockDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "error_records" ORDER BY occurrence_count DESC,id ASC`)).
			WillReturnError(errors.New("connection reset"))

		records, err := ledger.TopErrors(context.Background(), 5)
		assert.Nil(t, records)

		var readErr *StorageReadError
		require.True(t, errors.As(err, &readErr))
		assert.Equal(t, "top errors", readErr.Op)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get error record", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := NewErrorLedgerWithDB(mockDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "error_records" WHERE signature = $1`)).
			WillReturnError(errors.New("connection reset"))

		detail, err := ledger.GetError(context.Background(), "sig-a")
		assert.Nil(t, detail)

		var readErr *StorageReadError
		require.True(t, errors.As(err, &readErr))
		assert.Equal(t, "get error", readErr.Op)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get error context", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := NewErrorLedgerWithDB(mockDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "error_records" WHERE signature = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "signature", "occurrence_count"}).AddRow(1, "sig-a", 4))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "context_snapshots" WHERE error_signature = $1 ORDER BY id DESC`)).
			WillReturnError(errors.New("connection reset"))

		detail, err := ledger.GetError(context.Background(), "sig-a")
		assert.Nil(t, detail)

		var readErr *StorageReadError
		require.True(t, errors.As(err, &readErr))
		assert.Equal(t, "get error context", readErr.Op)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown signature is not an error", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		ledger := NewErrorLedgerWithDB(mockDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "error_records" WHERE signature = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "signature"}))

		detail, err := ledger.GetError(context.Background(), "sig-missing")
		assert.NoError(t, err)
		assert.Nil(t, detail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
