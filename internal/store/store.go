package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Ledger is the SQLite record of runs and the artifacts each run wrote.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens a SQLite database at dbPath with WAL mode enabled.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Migrate creates the ledger tables. Idempotent.
func (l *Ledger) Migrate() error {
	_, err := l.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  config_hash     TEXT NOT NULL,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  status          TEXT NOT NULL DEFAULT 'running',
  error           TEXT
);

CREATE TABLE IF NOT EXISTS artifacts (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id),
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  path            TEXT,
  rows            INTEGER,
  digest          TEXT,
  duration_ms     INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(name);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one invocation of the engine.
type Run struct {
	ID         string
	ConfigHash string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Error      string
}

// ArtifactRecord is one artifact written during a run.
type ArtifactRecord struct {
	ID       int64
	RunID    string
	Name     string
	Kind     string
	Path     string
	Rows     int
	Digest   string
	Duration time.Duration
}

// BeginRun inserts a running run and returns it.
func (l *Ledger) BeginRun(configHash string) (*Run, error) {
	r := &Run{
		ID:         uuid.NewString(),
		ConfigHash: configHash,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		Status:     RunRunning,
	}
	_, err := l.db.Exec(
		"INSERT INTO runs (id, config_hash, started_at, status) VALUES (?, ?, ?, ?)",
		r.ID, r.ConfigHash, r.StartedAt, r.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

// RecordArtifact inserts rec and sets its ID.
func (l *Ledger) RecordArtifact(rec *ArtifactRecord) (int64, error) {
	res, err := l.db.Exec(
		"INSERT INTO artifacts (run_id, name, kind, path, rows, digest, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.RunID, rec.Name, rec.Kind, rec.Path, rec.Rows, rec.Digest, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("record artifact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// FinishRun marks the run succeeded, or failed with runErr's message.
func (l *Ledger) FinishRun(id string, runErr error) error {
	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := l.db.Exec(
		"UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?",
		time.Now().UTC().Truncate(time.Second), status, msg, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", id)
	}
	return nil
}

// Runs returns up to limit runs, newest first. limit <= 0 means all.
func (l *Ledger) Runs(limit int) ([]*Run, error) {
	q := "SELECT id, config_hash, started_at, finished_at, status, COALESCE(error, '') FROM runs ORDER BY started_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.ConfigHash, &r.StartedAt, &finished, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Artifacts returns the artifacts recorded for a run in write order.
func (l *Ledger) Artifacts(runID string) ([]*ArtifactRecord, error) {
	rows, err := l.db.Query(
		"SELECT id, run_id, name, kind, COALESCE(path, ''), COALESCE(rows, 0), COALESCE(digest, ''), COALESCE(duration_ms, 0) FROM artifacts WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []*ArtifactRecord
	for rows.Next() {
		rec := &ArtifactRecord{}
		var ms int64
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Name, &rec.Kind, &rec.Path, &rec.Rows, &rec.Digest, &ms); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetMetadata returns the value stored under key, or "" if unset.
func (l *Ledger) GetMetadata(key string) (string, error) {
	var v string
	err := l.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (l *Ledger) SetMetadata(key, value string) error {
	_, err := l.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
