// Package runlog journals every workbook ingestion in SQLite: when it ran,
// where the workbook came from, its content hash and how many records it
// produced. The hash of the last successful remote run lets a sync skip an
// unchanged workbook.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/obras/dbopen"
	"github.com/hazyhaar/obras/idgen"
)

// Schema creates the journal table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id              TEXT PRIMARY KEY,
	started_at      INTEGER NOT NULL,
	finished_at     INTEGER NOT NULL,
	source          TEXT NOT NULL,
	file_name       TEXT NOT NULL DEFAULT '',
	sha256          TEXT NOT NULL DEFAULT '',
	schedule_count  INTEGER NOT NULL DEFAULT 0,
	completed_count INTEGER NOT NULL DEFAULT 0,
	working_set     INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_source ON ingest_runs(source, started_at);
`

// Run statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Run is one journal row. Times are stored with millisecond precision.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Source         string // "upload", "dropbox", "watch", "file"
	FileName       string
	SHA256         string
	ScheduleCount  int
	CompletedCount int
	WorkingSet     int
	Status         string
	Error          string
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Journal writes and reads ingestion runs.
type Journal struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	owned  bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator replaces the default run_<uuidv7> generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(j *Journal) { j.newID = gen }
}

// WithLogger sets the journal logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// New wraps an open database and applies the schema.
func New(db *sql.DB, opts ...Option) (*Journal, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("runlog: schema: %w", err)
	}
	return newJournal(db, opts), nil
}

func newJournal(db *sql.DB, opts []Option) *Journal {
	j := &Journal{db: db, newID: idgen.Default, logger: slog.Default()}
	for _, o := range opts {
		o(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection; the journal writes rarely.
	db.SetMaxOpenConns(1)
	j := newJournal(db, opts)
	j.owned = true
	return j, nil
}

// Close releases the database when the journal opened it.
func (j *Journal) Close() error {
	if !j.owned {
		return nil
	}
	return j.db.Close()
}

// Record inserts r, assigning an id and timestamps when missing. It returns
// the stored run.
func (j *Journal) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = j.newID()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}
	if r.Status == "" {
		r.Status = StatusOK
	}
	_, err := dbopen.Exec(ctx, j.db,
		`INSERT INTO ingest_runs (id, started_at, finished_at, source, file_name, sha256,
			schedule_count, completed_count, working_set, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Source, r.FileName, r.SHA256,
		r.ScheduleCount, r.CompletedCount, r.WorkingSet, r.Status, r.Error)
	if err != nil {
		return r, fmt.Errorf("runlog: insert: %w", err)
	}
	j.logger.Debug("runlog: recorded", "id", r.ID, "source", r.Source, "status", r.Status)
	return r, nil
}

// Recent returns the latest runs, newest first. limit <= 0 means 20.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source, file_name, sha256,
			schedule_count, completed_count, working_set, status, error
		FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r              Run
			started, ended int64
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.Source, &r.FileName, &r.SHA256,
			&r.ScheduleCount, &r.CompletedCount, &r.WorkingSet, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(ended)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastHash returns the content hash of the latest successful run from source,
// or "" when there is none.
func (j *Journal) LastHash(ctx context.Context, source string) (string, error) {
	var hash string
	err := j.db.QueryRowContext(ctx,
		`SELECT sha256 FROM ingest_runs WHERE source = ? AND status = ?
		ORDER BY started_at DESC, id DESC LIMIT 1`, source, StatusOK).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("runlog: last hash: %w", err)
	}
	return hash, nil
}
