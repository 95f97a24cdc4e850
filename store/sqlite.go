package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, ev Evaluation) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO evaluations (run_id, sweep_id, label, created_at, config_yaml, diagnostics, score, passed, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			sweep_id = excluded.sweep_id,
			label = excluded.label,
			created_at = excluded.created_at,
			config_yaml = excluded.config_yaml,
			diagnostics = excluded.diagnostics,
			score = excluded.score,
			passed = excluded.passed,
			notes = excluded.notes
	`, ev.RunID, ev.SweepID, ev.Label, ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		ev.ConfigYAML, diagnosticsText(ev.Diagnostics), ev.Score, ev.Passed, ev.Notes)
	if err != nil {
		return fmt.Errorf("save evaluation %s: %w", ev.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, runID string) (Evaluation, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Evaluation{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT run_id, sweep_id, label, created_at, config_yaml, diagnostics, score, passed, notes
		FROM evaluations WHERE run_id = ?
	`, runID)
	ev, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Evaluation{}, false, nil
		}
		return Evaluation{}, false, fmt.Errorf("get evaluation %s: %w", runID, err)
	}
	return ev, true, nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, sweepID string) ([]Evaluation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, sweep_id, label, created_at, config_yaml, diagnostics, score, passed, notes
		FROM evaluations WHERE sweep_id = ?
		ORDER BY score DESC, run_id ASC
	`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("list evaluations: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func diagnosticsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (Evaluation, error) {
	var (
		ev          Evaluation
		createdAt   string
		diagnostics string
	)
	if err := row.Scan(&ev.RunID, &ev.SweepID, &ev.Label, &createdAt, &ev.ConfigYAML,
		&diagnostics, &ev.Score, &ev.Passed, &ev.Notes); err != nil {
		return Evaluation{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Evaluation{}, fmt.Errorf("decode created_at %q: %w", createdAt, err)
	}
	ev.CreatedAt = t
	ev.Diagnostics = json.RawMessage(diagnostics)
	return ev, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS evaluations (
			run_id TEXT PRIMARY KEY,
			sweep_id TEXT NOT NULL,
			label TEXT NOT NULL,
			created_at TEXT NOT NULL,
			config_yaml TEXT NOT NULL,
			diagnostics TEXT NOT NULL,
			score REAL NOT NULL,
			passed INTEGER NOT NULL,
			notes TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS evaluations_sweep ON evaluations (sweep_id, score);
	`)
	return err
}
