package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRunRecord scans the run_records columns in table order. Timestamps are
// decoded by decodeTime so each backend can store them natively.
func scanRunRecord(row rowScanner, decodeTime func(any) (time.Time, error)) (models.RunRecord, error) {
	var r models.RunRecord
	var outcome string
	var started, ended any
	var bindType, bindName sql.NullString
	err := row.Scan(&r.ID, &r.Profile, &outcome, &started, &ended,
		&r.FocusSeconds, &r.CyclesCompleted, &r.BlocksCompleted, &bindType, &bindName)
	if err != nil {
		return r, fmt.Errorf("scan run record failed: %w", err)
	}
	r.Outcome = models.RunOutcome(outcome)
	if r.StartedAt, err = decodeTime(started); err != nil {
		return r, fmt.Errorf("decode started_at: %w", err)
	}
	if r.EndedAt, err = decodeTime(ended); err != nil {
		return r, fmt.Errorf("decode ended_at: %w", err)
	}
	r.BindType = bindType.String
	r.BindName = bindName.String
	return r, nil
}

// collectRecords drains rows into records.
func collectRecords(rows *sql.Rows, decodeTime func(any) (time.Time, error)) ([]models.RunRecord, error) {
	defer rows.Close()
	var records []models.RunRecord
	for rows.Next() {
		r, err := scanRunRecord(rows, decodeTime)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run records: %w", err)
	}
	return records, nil
}

// totalsFrom folds rows of (outcome, focus_seconds, cycles_completed,
// blocks_completed) into Totals.
func totalsFrom(rows *sql.Rows, since time.Time) (models.Totals, error) {
	defer rows.Close()
	totals := models.Totals{Since: since}
	for rows.Next() {
		var r models.RunRecord
		var outcome string
		if err := rows.Scan(&outcome, &r.FocusSeconds, &r.CyclesCompleted, &r.BlocksCompleted); err != nil {
			return totals, fmt.Errorf("scan totals row failed: %w", err)
		}
		r.Outcome = models.RunOutcome(outcome)
		totals.Add(r)
	}
	if err := rows.Err(); err != nil {
		return totals, fmt.Errorf("failed to iterate totals rows: %w", err)
	}
	return totals, nil
}
