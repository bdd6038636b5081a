package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/BTreeMap/Cockpit/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

const runRecordColumns = `id, profile, outcome, started_at, ended_at, focus_seconds, cycles_completed, blocks_completed, bind_type, bind_name`

// SQLiteStore keeps run history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at the DSN path
// and applies migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("SQLiteStore.NewSQLiteStore: failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: open failed", "error", err)
		return nil, err
	}
	// Single connection: SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error("SQLiteStore.NewSQLiteStore: ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		slog.Error("SQLiteStore.NewSQLiteStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied", "path", path)

	return &SQLiteStore{db: db}, nil
}

func decodeUnixMilli(v any) (time.Time, error) {
	ms, ok := v.(int64)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (s *SQLiteStore) AddRunRecord(r models.RunRecord) error {
	_, err := s.db.Exec(`INSERT INTO run_records (`+runRecordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Profile, string(r.Outcome), r.StartedAt.UnixMilli(), r.EndedAt.UnixMilli(),
		r.FocusSeconds, r.CyclesCompleted, r.BlocksCompleted, nilIfEmpty(r.BindType), nilIfEmpty(r.BindName))
	if err != nil {
		slog.Error("SQLiteStore.AddRunRecord: insert failed", "error", err, "run_id", r.ID)
		return fmt.Errorf("failed to insert run record %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore.AddRunRecord: stored", "run_id", r.ID, "outcome", r.Outcome)
	return nil
}

func (s *SQLiteStore) ListRunRecords(limit int) ([]models.RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runRecordColumns+` FROM run_records ORDER BY ended_at DESC, id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		slog.Error("SQLiteStore.ListRunRecords: query failed", "error", err)
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	return collectRecords(rows, decodeUnixMilli)
}

func (s *SQLiteStore) FocusTotals(since time.Time) (models.Totals, error) {
	rows, err := s.db.Query(`SELECT outcome, focus_seconds, cycles_completed, blocks_completed FROM run_records WHERE ended_at >= ?`, since.UnixMilli())
	if err != nil {
		slog.Error("SQLiteStore.FocusTotals: query failed", "error", err)
		return models.Totals{Since: since}, fmt.Errorf("failed to query totals: %w", err)
	}
	return totalsFrom(rows, since)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
