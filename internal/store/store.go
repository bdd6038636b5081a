// Package store provides run-history backends for Cockpit.
//
// An in-memory store is used when no DSN is configured; otherwise records go
// to SQLite (a file path) or PostgreSQL (a postgres:// URL or key=value DSN).
package store

import (
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// History limits for ListRunRecords.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Store persists finished runs.
type Store interface {
	AddRunRecord(r models.RunRecord) error
	// ListRunRecords returns the most recently ended runs first.
	ListRunRecords(limit int) ([]models.RunRecord, error)
	// FocusTotals aggregates runs that ended at or after since.
	FocusTotals(since time.Time) (models.Totals, error)
	Close() error
}

// Opts holds store configuration.
type Opts struct {
	DSN    string
	Driver string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN selects SQLite with a database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "sqlite3"
	}
}

// WithPostgresDSN selects PostgreSQL with a connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "postgres"
	}
}

// DetectDSNType returns "postgres" for PostgreSQL URLs and key=value DSNs,
// and "sqlite3" for anything else.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(d, "host=") || strings.Contains(d, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// WithDSN selects the backend from the DSN shape.
func WithDSN(dsn string) Option {
	if DetectDSNType(dsn) == "postgres" {
		return WithPostgresDSN(dsn)
	}
	return WithSQLiteDSN(dsn)
}

// New opens the store described by opts. No DSN means in-memory.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("store.New: no DSN configured, run history is in-memory only")
		return NewInMemoryStore(), nil
	case cfg.Driver == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
