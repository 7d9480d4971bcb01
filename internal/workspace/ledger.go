// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workspace

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshbio/contact-engine/internal/toolio"
)

const ledgerFile = "ledger.db"

// Ledger records every tool invocation of a workspace in a SQLite
// database, including cache hits, so a job's execution history can be
// inspected after the fact.
type Ledger struct {
	db    *sql.DB
	jobID string
}

// OpenLedger opens or creates the run ledger in the workspace directory
// and ensures the schema exists.
func OpenLedger(w *Workspace) (*Ledger, error) {
	dbPath := filepath.Join(w.Dir, ledgerFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		prefix TEXT NOT NULL,
		tool TEXT NOT NULL,
		args TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		cache_hit INTEGER NOT NULL,
		timed_out INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		started_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_invocations_job ON invocations(job_id)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger index: %w", err)
	}

	return &Ledger{db: db, jobID: w.JobID}, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record implements toolio.Recorder.
func (l *Ledger) Record(rec toolio.Record) error {
	_, err := l.db.Exec(
		`INSERT INTO invocations
		(job_id, stage, prefix, tool, args, exit_code, cache_hit, timed_out, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.jobID, rec.Stage, rec.Prefix, rec.Tool, strings.Join(rec.Args, " "),
		rec.ExitCode, rec.CacheHit, rec.TimedOut,
		rec.Duration.Milliseconds(), rec.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording invocation: %w", err)
	}
	return nil
}

// Entry is one row of the run ledger.
type Entry struct {
	ID        int64
	Stage     string
	Prefix    string
	Tool      string
	Args      string
	ExitCode  int
	CacheHit  bool
	TimedOut  bool
	Duration  time.Duration
	StartedAt time.Time
}

// List returns the job's invocations in execution order.
func (l *Ledger) List() ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, stage, prefix, tool, args, exit_code, cache_hit, timed_out, duration_ms, started_at
		FROM invocations WHERE job_id = ? ORDER BY id`, l.jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durMs int64
		var started string
		if err := rows.Scan(&e.ID, &e.Stage, &e.Prefix, &e.Tool, &e.Args,
			&e.ExitCode, &e.CacheHit, &e.TimedOut, &durMs, &started); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		e.Duration = time.Duration(durMs) * time.Millisecond
		if t, perr := time.Parse(time.RFC3339, started); perr == nil {
			e.StartedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
