package results

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in an SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// OpenSQLite opens (and migrates) the database at path, creating parent
// directories as needed. WAL mode is enabled so `history` can read while a
// batch is writing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

const migrationV1Runs = `
CREATE TABLE runs (
	id                TEXT PRIMARY KEY,
	package           TEXT NOT NULL,
	package_key       TEXT NOT NULL,
	requested_version TEXT NOT NULL DEFAULT '',
	version           TEXT NOT NULL DEFAULT '',
	artifact          TEXT NOT NULL DEFAULT '',
	kind              TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	step              TEXT NOT NULL DEFAULT '',
	error_code        TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	coverage_dir      TEXT NOT NULL DEFAULT '',
	line_rate         REAL NOT NULL DEFAULT 0,
	branch_rate       REAL NOT NULL DEFAULT 0,
	started_at        INTEGER NOT NULL,
	duration_ms       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_runs_package_key ON runs(package_key, started_at);
`

func (s *SQLiteStore) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, package, package_key, requested_version, version, artifact, kind, status, step,
			error_code, error, coverage_dir, line_rate, branch_rate, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Package, packageKey(r.Package), r.RequestedVersion, r.Version, r.Artifact, r.Kind, string(r.Status), r.Step,
		r.ErrorCode, r.Error, r.CoverageDir, r.LineRate, r.BranchRate,
		r.StartedAt.UnixNano(), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.Package != "" {
		where = append(where, "package_key = ?")
		args = append(args, packageKey(f.Package))
	}

	query := `SELECT id, package, requested_version, version, artifact, kind, status, step,
		error_code, error, coverage_dir, line_rate, branch_rate, started_at, duration_ms FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			status     string
			startedNS  int64
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.Package, &r.RequestedVersion, &r.Version, &r.Artifact, &r.Kind,
			&status, &r.Step, &r.ErrorCode, &r.Error, &r.CoverageDir, &r.LineRate, &r.BranchRate,
			&startedNS, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = Status(status)
		r.StartedAt = time.Unix(0, startedNS).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

var _ Store = (*SQLiteStore)(nil)
