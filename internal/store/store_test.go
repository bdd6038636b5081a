package store

import (
	"fmt"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Cockpit/internal/models"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func record(id string, outcome models.RunOutcome, endedAfter time.Duration, focus int64) models.RunRecord {
	return models.RunRecord{
		ID:              id,
		Profile:         "classic",
		Outcome:         outcome,
		StartedAt:       base,
		EndedAt:         base.Add(endedAfter),
		FocusSeconds:    focus,
		CyclesCompleted: 1,
	}
}

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	bound := record("run_a", models.RunOutcomeCompleted, time.Hour, 3000)
	bound.BindType = "task"
	bound.BindName = "write report"
	bound.BlocksCompleted = 2
	require.NoError(t, s.AddRunRecord(bound))
	require.NoError(t, s.AddRunRecord(record("run_b", models.RunOutcomeStopped, 2*time.Hour, 600)))
	require.NoError(t, s.AddRunRecord(record("run_c", models.RunOutcomeCancelled, 3*time.Hour, 900)))

	records, err := s.ListRunRecords(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "run_c", records[0].ID)
	assert.Equal(t, "run_a", records[2].ID)
	assert.Equal(t, bound.EndedAt, records[2].EndedAt.UTC())
	assert.Equal(t, bound.StartedAt, records[2].StartedAt.UTC())
	assert.Equal(t, "write report", records[2].BindName)
	assert.Equal(t, 2, records[2].BlocksCompleted)
	assert.Empty(t, records[1].BindType)

	records, err = s.ListRunRecords(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	totals, err := s.FocusTotals(base)
	require.NoError(t, err)
	assert.Equal(t, base, totals.Since)
	assert.Equal(t, 1, totals.CompletedRuns)
	assert.Equal(t, 1, totals.StoppedRuns)
	assert.Equal(t, 1, totals.CancelledRuns)
	assert.Equal(t, int64(3600), totals.FocusSeconds)
	assert.Equal(t, 2, totals.CyclesCompleted)
	assert.Equal(t, 2, totals.BlocksCompleted)

	totals, err = s.FocusTotals(base.Add(90 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, totals.CompletedRuns)
	assert.Equal(t, int64(600), totals.FocusSeconds)
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestInMemoryListClampsLimit(t *testing.T) {
	s := NewInMemoryStore()
	for i := 0; i < MaxHistoryLimit+10; i++ {
		require.NoError(t, s.AddRunRecord(record(fmt.Sprintf("run_%d", i), models.RunOutcomeCompleted, time.Duration(i)*time.Second, 1)))
	}
	records, err := s.ListRunRecords(0)
	require.NoError(t, err)
	assert.Len(t, records, DefaultHistoryLimit)

	records, err = s.ListRunRecords(MaxHistoryLimit * 2)
	require.NoError(t, err)
	assert.Len(t, records, MaxHistoryLimit)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cockpit.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(path))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	err = s.AddRunRecord(record("run_a", models.RunOutcomeCompleted, time.Hour, 1))
	require.Error(t, err, "duplicate id must be rejected")
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cockpit.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(path))
	require.NoError(t, err)
	require.NoError(t, s.AddRunRecord(record("run_a", models.RunOutcomeCompleted, time.Hour, 1500)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(WithSQLiteDSN(path))
	require.NoError(t, err)
	defer s.Close()
	records, err := s.ListRunRecords(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1500), records[0].FocusSeconds)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, s)

	s, err = New(WithDSN(filepath.Join(t.TempDir(), "x.db")))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = NewSQLiteStore()
	require.Error(t, err)
	_, err = NewPostgresStore()
	require.Error(t, err)
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost/cockpit", "postgres"},
		{"postgresql://localhost/cockpit?sslmode=disable", "postgres"},
		{"host=localhost user=cockpit dbname=cockpit", "postgres"},
		{"/var/lib/cockpit/cockpit.db", "sqlite3"},
		{"file:cockpit.db?_foreign_keys=on", "sqlite3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDSNType(tt.dsn), tt.dsn)
	}
}

func TestPostgresStore(t *testing.T) {
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	_, err = pgStore.db.Exec("DELETE FROM run_records")
	require.NoError(t, err)

	exerciseStore(t, pgStore)
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
