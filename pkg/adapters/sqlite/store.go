// Package sqlite provides a HistoryStore backed by a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/gokernel/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	language   TEXT NOT NULL,
	units      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store implements ports.HistoryStore using SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes the database at path, creating the directory and schema if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the session row.
func (s *Store) Save(ctx context.Context, sessionID string, record *domain.SessionRecord) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	units, err := json.Marshal(record.Units)
	if err != nil {
		return fmt.Errorf("failed to marshal units: %w", err)
	}

	updated := record.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, language, units, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			language = excluded.language,
			units = excluded.units,
			updated_at = excluded.updated_at`,
		sessionID, record.Language, string(units), updated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads the session row.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	var (
		language string
		units    string
		updated  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT language, units, updated_at FROM sessions WHERE id = ?`, sessionID).
		Scan(&language, &units, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	record := &domain.SessionRecord{
		ID:        sessionID,
		Language:  language,
		UpdatedAt: time.Unix(0, updated),
	}
	if err := json.Unmarshal([]byte(units), &record.Units); err != nil {
		return nil, fmt.Errorf("failed to unmarshal units: %w", err)
	}
	if record.Units == nil {
		record.Units = []string{}
	}
	return record, nil
}

// Delete removes the session row. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns all session IDs in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
