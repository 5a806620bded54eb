// Package runregistry persists a history of detection runs to Postgres,
// grounded on the teacher's execution-tracking repository: one row per
// method run, recording outcome and change counts for the HTTP status
// endpoint and for operational auditing.
package runregistry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/sitewatch/internal/baseline"
)

// RunRecord is one persisted detection run for one site and method.
type RunRecord struct {
	ID         string    `db:"id"`
	SiteID     string    `db:"site_id"`
	Method     string    `db:"method"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Outcome    string    `db:"outcome"`
	BaselineID string    `db:"baseline_id"`
	New        int       `db:"new_count"`
	Deleted    int       `db:"deleted_count"`
	Modified   int       `db:"modified_count"`
	Ignored    int       `db:"ignored_count"`
	Unchanged  int       `db:"unchanged_count"`
	Error      string    `db:"error_message"`
}

// Registry persists RunRecords.
type Registry struct {
	db *sqlx.DB
}

// New wraps an open *sqlx.DB. The caller owns the connection's lifecycle.
func New(db *sqlx.DB) *Registry {
	return &Registry{db: db}
}

// Schema is the registry's table definition, applied by migration tooling
// external to this package.
const Schema = `
CREATE TABLE IF NOT EXISTS detection_runs (
	id             TEXT PRIMARY KEY,
	site_id        TEXT NOT NULL,
	method         TEXT NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	outcome        TEXT NOT NULL,
	baseline_id    TEXT NOT NULL DEFAULT '',
	new_count      INTEGER NOT NULL DEFAULT 0,
	deleted_count  INTEGER NOT NULL DEFAULT 0,
	modified_count INTEGER NOT NULL DEFAULT 0,
	ignored_count  INTEGER NOT NULL DEFAULT 0,
	unchanged_count INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_detection_runs_site_id ON detection_runs (site_id, started_at DESC);
`

// Record inserts one completed run.
func (r *Registry) Record(ctx context.Context, rec *RunRecord) error {
	query := `
		INSERT INTO detection_runs (
			id, site_id, method, started_at, finished_at, outcome, baseline_id,
			new_count, deleted_count, modified_count, ignored_count, unchanged_count, error_message
		)
		VALUES (:id, :site_id, :method, :started_at, :finished_at, :outcome, :baseline_id,
			:new_count, :deleted_count, :modified_count, :ignored_count, :unchanged_count, :error_message)
	`
	_, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("runregistry: insert run: %w", err)
	}
	return nil
}

// ListBySite returns the most recent runs for siteID, newest first.
func (r *Registry) ListBySite(ctx context.Context, siteID string, limit int) ([]*RunRecord, error) {
	var runs []*RunRecord
	query := `
		SELECT id, site_id, method, started_at, finished_at, outcome, baseline_id,
		       new_count, deleted_count, modified_count, ignored_count, unchanged_count, error_message
		FROM detection_runs
		WHERE site_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &runs, query, siteID, limit); err != nil {
		return nil, fmt.Errorf("runregistry: list runs for %s: %w", siteID, err)
	}
	if runs == nil {
		runs = []*RunRecord{}
	}
	return runs, nil
}

// LatestBySite returns the most recent run for siteID.
func (r *Registry) LatestBySite(ctx context.Context, siteID string) (*RunRecord, error) {
	var rec RunRecord
	query := `
		SELECT id, site_id, method, started_at, finished_at, outcome, baseline_id,
		       new_count, deleted_count, modified_count, ignored_count, unchanged_count, error_message
		FROM detection_runs
		WHERE site_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &rec, query, siteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("runregistry: latest run for %s: %w", siteID, err)
	}
	return &rec, nil
}

// ErrNotFound is returned when no run record matches the query.
var ErrNotFound = errors.New("runregistry: not found")

// FromSummary builds the change-count fields of a RunRecord from a
// baseline.ChangeSummary, so callers can assemble one directly from an
// orchestrator.MethodReport.
func FromSummary(s baseline.ChangeSummary) (new, deleted, modified, ignored, unchanged int) {
	return s.New, s.Deleted, s.Modified, s.Ignored, s.Unchanged
}
