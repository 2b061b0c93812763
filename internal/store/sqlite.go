package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"basinhop/internal/bh"
)

// SQLiteStore archives visited minima in a SQLite database, one row per
// committed Markov state, keyed by run. Useful when many runs share one
// minima database.
type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore creates an uninitialized store for the given database path.
// Call Init before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema if missing.
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
		return fmt.Errorf("failed to open minima database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping minima database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS minima (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			energy REAL NOT NULL,
			coords TEXT NOT NULL,
			found_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_minima_run_energy ON minima (run_id, energy);
	`)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create minima schema: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
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
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

// SaveMinimum records one minimum for the given run.
func (s *SQLiteStore) SaveMinimum(ctx context.Context, runID string, energy float64, coords []float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(coords)
	if err != nil {
		return fmt.Errorf("failed to encode coords: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO minima (run_id, energy, coords, found_at)
		VALUES (?, ?, ?, ?)
	`, runID, energy, string(payload), time.Now().UTC())
	return err
}

// ListMinima returns up to limit minima for the run, lowest energy first
// (limit <= 0 returns all).
func (s *SQLiteStore) ListMinima(ctx context.Context, runID string, limit int) ([]Minimum, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	query := `SELECT energy, coords, found_at FROM minima WHERE run_id = ? ORDER BY energy ASC`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query minima: %w", err)
	}
	defer rows.Close()

	var minima []Minimum
	for rows.Next() {
		var m Minimum
		var payload string
		if err := rows.Scan(&m.Energy, &payload, &m.Found); err != nil {
			return nil, fmt.Errorf("failed to scan minimum: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &m.Coords); err != nil {
			return nil, fmt.Errorf("failed to decode coords: %w", err)
		}
		minima = append(minima, m)
	}
	return minima, rows.Err()
}

// Lowest returns the lowest minimum recorded for the run.
func (s *SQLiteStore) Lowest(ctx context.Context, runID string) (Minimum, bool, error) {
	minima, err := s.ListMinima(ctx, runID, 1)
	if err != nil {
		return Minimum{}, false, err
	}
	if len(minima) == 0 {
		return Minimum{}, false, nil
	}
	return minima[0], true, nil
}

// Storage adapts the store to the driver's storage-sink contract for one
// run. Insert failures are logged, not propagated: losing an archive row
// must not abort the chain.
func (s *SQLiteStore) Storage(ctx context.Context, runID string) bh.Storage {
	return func(energy float64, coords []float64) {
		if err := s.SaveMinimum(ctx, runID, energy, coords); err != nil {
			slog.Error("Failed to archive minimum", "run_id", runID, "energy", energy, "error", err)
		}
	}
}
