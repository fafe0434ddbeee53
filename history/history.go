// Package history keeps a SQLite log of finished runs so benchmark timings
// can be compared across sizes, transports and carry strategies.
package history

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

	"TreeMPI/cluster"
)

// Store is a run log backed by SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex // Serializes writers.
	dbPath string
}

// Entry is one recorded run.
type Entry struct {
	ID        string
	Algorithm string
	Size      int
	Transport string
	Carry     string
	Elapsed   time.Duration
	Overflow  bool
	Output    string // Output lines joined by newlines.
	Root      string // Attested transcript root, empty if unattested.
	CreatedAt time.Time
}

// Summary aggregates the timings of matching runs.
type Summary struct {
	Algorithm string
	Size      int
	Transport string
	Runs      int
	Mean      time.Duration
	Min       time.Duration
	Max       time.Duration
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		algorithm TEXT NOT NULL,
		size INTEGER NOT NULL,
		transport TEXT NOT NULL,
		carry TEXT NOT NULL DEFAULT '',
		elapsed_ns INTEGER NOT NULL,
		overflow INTEGER NOT NULL DEFAULT 0,
		output TEXT NOT NULL,
		root TEXT NOT NULL DEFAULT '',
		created_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_shape ON runs(algorithm, size, transport);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.dbPath }

// Record appends a finished run.
func (s *Store) Record(ctx context.Context, r *cluster.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var root string
	if r.Attestation != nil {
		root = r.Attestation.Root
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, algorithm, size, transport, carry, elapsed_ns, overflow, output, root, created_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Algorithm, r.Size, r.Transport, r.Carry, int64(r.Elapsed), r.Overflow,
		strings.Join(r.Lines(), "\n"), root, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// List returns the latest runs, newest first. An empty algorithm matches all.
func (s *Store) List(ctx context.Context, algorithm string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, algorithm, size, transport, carry, elapsed_ns, overflow, output, root, created_ns
		FROM runs
		WHERE ? = '' OR algorithm = ?
		ORDER BY created_ns DESC
		LIMIT ?`, algorithm, algorithm, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var elapsed, created int64
		if err := rows.Scan(&e.ID, &e.Algorithm, &e.Size, &e.Transport, &e.Carry,
			&elapsed, &e.Overflow, &e.Output, &e.Root, &created); err != nil {
			return nil, err
		}
		e.Elapsed = time.Duration(elapsed)
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summaries aggregates elapsed times per algorithm, size and transport.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT algorithm, size, transport, COUNT(*), AVG(elapsed_ns), MIN(elapsed_ns), MAX(elapsed_ns)
		FROM runs
		GROUP BY algorithm, size, transport
		ORDER BY algorithm, size, transport`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var mean float64
		var lo, hi int64
		if err := rows.Scan(&sm.Algorithm, &sm.Size, &sm.Transport, &sm.Runs, &mean, &lo, &hi); err != nil {
			return nil, err
		}
		sm.Mean = time.Duration(mean)
		sm.Min = time.Duration(lo)
		sm.Max = time.Duration(hi)
		out = append(out, sm)
	}
	return out, rows.Err()
}
