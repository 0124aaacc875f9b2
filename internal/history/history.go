// Package history persists sealed run summaries so past runs stay
// queryable by the CLI and the dashboard API.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/poker26/qdrant-search-tester/internal/report"
)

// Store handles SQLite run-history storage.
type Store struct {
	db *sql.DB
}

// RunRecord is the list view of a stored run.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	Collection  string    `json:"collection,omitempty"`
	Model       string    `json:"model,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	SuccessRate float64   `json:"success_rate"`
	Success     bool      `json:"success"`
}

// NewStore opens (and migrates) the history database.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			collection TEXT,
			model TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			total INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			success_rate REAL NOT NULL,
			success INTEGER NOT NULL,
			summary TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a sealed summary. The full summary (per-case detail
// included) is stored as JSON alongside the indexed columns.
func (s *Store) SaveRun(summary *report.RunSummary) error {
	blob, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, collection, model, started_at, finished_at, total, passed, success_rate, success, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.Collection, summary.Model,
		summary.StartedAt, summary.FinishedAt,
		summary.Total, summary.Passed, summary.SuccessRate,
		boolToInt(summary.Success), string(blob),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, collection, model, started_at, finished_at, total, passed, success_rate, success
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var success int
		if err := rows.Scan(&r.RunID, &r.Collection, &r.Model, &r.StartedAt, &r.FinishedAt,
			&r.Total, &r.Passed, &r.SuccessRate, &success); err != nil {
			return nil, err
		}
		r.Success = success != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRun returns one run's full summary, or nil if not found.
func (s *Store) GetRun(runID string) (*report.RunSummary, error) {
	var blob string
	err := s.db.QueryRow(`SELECT summary FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary report.RunSummary
	if err := json.Unmarshal([]byte(blob), &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// LatestRun returns the most recent run's full summary, or nil when the
// history is empty.
func (s *Store) LatestRun() (*report.RunSummary, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM runs ORDER BY finished_at DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetRun(runID)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
