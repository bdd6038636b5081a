package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/Cockpit/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore.NewPostgresStore: open failed", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error("PostgresStore.NewPostgresStore: ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		slog.Error("PostgresStore.NewPostgresStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")
	return &PostgresStore{db: db}, nil
}

func decodeTimestamp(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
	return t.UTC(), nil
}

func (s *PostgresStore) AddRunRecord(r models.RunRecord) error {
	_, err := s.db.Exec(`INSERT INTO run_records (`+runRecordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.Profile, string(r.Outcome), r.StartedAt.UTC(), r.EndedAt.UTC(),
		r.FocusSeconds, r.CyclesCompleted, r.BlocksCompleted, nilIfEmpty(r.BindType), nilIfEmpty(r.BindName))
	if err != nil {
		slog.Error("PostgresStore.AddRunRecord: insert failed", "error", err, "run_id", r.ID)
		return fmt.Errorf("failed to insert run record %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore.AddRunRecord: stored", "run_id", r.ID, "outcome", r.Outcome)
	return nil
}

func (s *PostgresStore) ListRunRecords(limit int) ([]models.RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runRecordColumns+` FROM run_records ORDER BY ended_at DESC, id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		slog.Error("PostgresStore.ListRunRecords: query failed", "error", err)
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	return collectRecords(rows, decodeTimestamp)
}

func (s *PostgresStore) FocusTotals(since time.Time) (models.Totals, error) {
	rows, err := s.db.Query(`SELECT outcome, focus_seconds, cycles_completed, blocks_completed FROM run_records WHERE ended_at >= $1`, since.UTC())
	if err != nil {
		slog.Error("PostgresStore.FocusTotals: query failed", "error", err)
		return models.Totals{Since: since}, fmt.Errorf("failed to query totals: %w", err)
	}
	return totalsFrom(rows, since)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
