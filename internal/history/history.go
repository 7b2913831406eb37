// Package history records finished runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one finished run. FailedStep is 1-based, 0 when no step failed.
type Entry struct {
	RunID      string        `json:"run_id"`
	Query      string        `json:"query,omitempty"`
	Shell      string        `json:"shell"`
	Status     string        `json:"status"`
	Total      int           `json:"total_steps"`
	Completed  int           `json:"completed_steps"`
	FailedStep int           `json:"failed_step,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	WorkDir    string        `json:"work_dir,omitempty"`
}

type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath is history.db under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".spren", "history.db")
	}
	return filepath.Join(dir, "spren", "history.db")
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	query        TEXT NOT NULL DEFAULT '',
	shell        TEXT NOT NULL,
	status       TEXT NOT NULL,
	total        INTEGER NOT NULL,
	completed    INTEGER NOT NULL,
	failed_step  INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	duration_ns  INTEGER NOT NULL,
	work_dir     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts e, replacing an earlier entry with the same run ID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return errors.New("history entry needs a run id")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
	(run_id, query, shell, status, total, completed, failed_step, error, started_at, duration_ns, work_dir)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Query, e.Shell, e.Status, e.Total, e.Completed, e.FailedStep, e.Error,
		e.StartedAt.UnixNano(), int64(e.Duration), e.WorkDir)
	if err != nil {
		return fmt.Errorf("record run %s: %w", e.RunID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, query, shell, status, total, completed, failed_step, error, started_at, duration_ns, work_dir
FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			started int64
			dur     int64
		)
		if err := rows.Scan(&e.RunID, &e.Query, &e.Shell, &e.Status, &e.Total, &e.Completed,
			&e.FailedStep, &e.Error, &started, &dur, &e.WorkDir); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.Duration = time.Duration(dur)
		out = append(out, e)
	}
	return out, rows.Err()
}
