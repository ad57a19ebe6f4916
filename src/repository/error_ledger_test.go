package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"errorledger/src/database"
	"errorledger/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *GormErrorLedger {
	t.Helper()
	db, err := database.Open(database.Config{
		StorageProvider: database.ProviderSQLite,
		DataDir:         t.TempDir(),
		GormLogLevel:    1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ledger := NewErrorLedgerWithDB(db)
	require.NoError(t, ledger.Initialize(context.Background()))
	return ledger
}

// clock returns successive minutes starting at base.
func clock(base time.Time) func() time.Time {
	var mu sync.Mutex
	next := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func fieldsFor(message string) model.ErrorFields {
	return model.ErrorFields{
		Code:       "2",
		Message:    message,
		SourceFile: "a.php",
		SourceLine: 10,
		Kind:       "E_WARNING",
		StackTrace: `[{"function":"main","file":"a.php","line":10}]`,
	}
}

func TestErrorLedger_RecordOccurrence_Deduplicates(t *testing.T) {
	ledger := newTestLedger(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = clock(base)
	ctx := context.Background()

	require.True(t, ledger.RecordOccurrence(ctx, "sig-a", fieldsFor("div by zero"), `{"user":"alice"}`))
	require.True(t, ledger.RecordOccurrence(ctx, "sig-a", fieldsFor("div by zero"), `{"user":"bob"}`))

	detail, err := ledger.GetError(ctx, "sig-a")
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, int64(2), detail.OccurrenceCount)
	assert.Equal(t, "div by zero", detail.Message)
	assert.Equal(t, "a.php", detail.SourceFile)
	assert.Equal(t, 10, detail.SourceLine)
	assert.Equal(t, "E_WARNING", detail.Kind)
	assert.WithinDuration(t, base, detail.FirstSeen, time.Second)
	assert.WithinDuration(t, base.Add(time.Minute), detail.LastSeen, time.Second)
	assert.JSONEq(t, `[{"function":"main","file":"a.php","line":10}]`, string(detail.Trace))

	require.Len(t, detail.Context, 2)
	assert.JSONEq(t, `{"user":"alice"}`, string(detail.Context[0]))
	assert.JSONEq(t, `{"user":"bob"}`, string(detail.Context[1]))

	var count int64
	require.NoError(t, ledger.db.Model(&model.ErrorRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestErrorLedger_RecordOccurrence_RejectsEmptySignature(t *testing.T) {
	ledger := newTestLedger(t)
	assert.False(t, ledger.RecordOccurrence(context.Background(), "", fieldsFor("x"), "{}"))
}

func TestErrorLedger_RecordCapture_StoresCaptureID(t *testing.T) {
	ledger := newTestLedger(t)

	require.True(t, ledger.RecordCapture(context.Background(), "6f1c", "sig-c", fieldsFor("x"), "{}"))

	var snapshot model.ContextSnapshot
	require.NoError(t, ledger.db.Where("error_signature = ?", "sig-c").First(&snapshot).Error)
	assert.Equal(t, "6f1c", snapshot.CaptureID)
}

func TestErrorLedger_ConcurrentFirstCaptures(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	const writers = 20
	var (
		wg     sync.WaitGroup
		failed int
		mu     sync.Mutex
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if !ledger.RecordOccurrence(ctx, "sig-race", fieldsFor("race"), fmt.Sprintf(`{"n":%d}`, i)) {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Zero(t, failed)

	records, err := ledger.TopErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(writers), records[0].OccurrenceCount)

	var snapshots int64
	require.NoError(t, ledger.db.Model(&model.ContextSnapshot{}).Count(&snapshots).Error)
	assert.Equal(t, int64(writers), snapshots)
}

func TestErrorLedger_GetError_ReturnsLastThreeContexts(t *testing.T) {
	ledger := newTestLedger(t)
	ledger.now = clock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.True(t, ledger.RecordOccurrence(ctx, "sig-b", fieldsFor("b"), fmt.Sprintf(`{"n":%d}`, i)))
	}

	detail, err := ledger.GetError(ctx, "sig-b")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, int64(5), detail.OccurrenceCount)

	got := make([]string, 0, len(detail.Context))
	for _, c := range detail.Context {
		got = append(got, string(c))
	}
	assert.Equal(t, []string{`{"n":3}`, `{"n":4}`, `{"n":5}`}, got)
}

func TestErrorLedger_GetError_UnknownSignature(t *testing.T) {
	ledger := newTestLedger(t)

	detail, err := ledger.GetError(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, detail)
}

func TestErrorLedger_GetError_InvalidBlobs(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	fields := fieldsFor("legacy")
	fields.StackTrace = "not json"
	require.True(t, ledger.RecordOccurrence(ctx, "sig-legacy", fields, "{broken"))

	detail, err := ledger.GetError(ctx, "sig-legacy")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, json.RawMessage("[]"), detail.Trace)
	require.Len(t, detail.Context, 1)
	assert.Equal(t, json.RawMessage("[]"), detail.Context[0])
}

func TestErrorLedger_TopErrors(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	counts := map[string]int{"sig-x": 10, "sig-y": 3, "sig-z": 7}
	for _, sig := range []string{"sig-x", "sig-y", "sig-z"} {
		for i := 0; i < counts[sig]; i++ {
			require.True(t, ledger.RecordOccurrence(ctx, sig, fieldsFor(sig), "{}"))
		}
	}

	top, err := ledger.TopErrors(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "sig-x", top[0].Signature)
	assert.Equal(t, int64(10), top[0].OccurrenceCount)
	assert.Equal(t, "sig-z", top[1].Signature)
	assert.Equal(t, int64(7), top[1].OccurrenceCount)

	all, err := ledger.TopErrors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "sig-y", all[2].Signature)
}

func TestErrorLedger_TopErrors_Empty(t *testing.T) {
	ledger := newTestLedger(t)

	top, err := ledger.TopErrors(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestErrorLedger_InitializeIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	require.True(t, ledger.RecordOccurrence(ctx, "sig-keep", fieldsFor("keep"), "{}"))
	require.NoError(t, ledger.Initialize(ctx))

	detail, err := ledger.GetError(ctx, "sig-keep")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, int64(1), detail.OccurrenceCount)
}
