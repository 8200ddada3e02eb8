// Package history keeps a local record of completed encounters in SQLite so
// clinicians can review past sessions without the export files. Only
// redacted material is stored.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"medecho/internal/encounter"
)

// ErrNotFound means no entry exists for the requested encounter id.
var ErrNotFound = errors.New("history: encounter not found")

const schema = `
CREATE TABLE IF NOT EXISTS encounters (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	physician  TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_encounters_created_at ON encounters(created_at DESC);
`

// Entry is one history listing row. The full encounter is in Payload.
type Entry struct {
	ID        string    `json:"encounter_id"`
	CreatedAt time.Time `json:"created_at"`
	Physician string    `json:"physician"`
	Summary   string    `json:"summary"`
}

// Store is a SQLite-backed encounter archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}
	// SQLite handles one writer at a time; serialize access through a
	// single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Add records a completed encounter, replacing any previous row with the
// same id.
func (s *Store) Add(ctx context.Context, enc *encounter.Encounter) error {
	payload, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("history: encoding encounter: %w", err)
	}

	summary := ""
	if len(enc.Structured.Diagnoses) > 0 {
		summary = enc.Structured.Diagnoses[0]
	} else if enc.Differential != nil {
		summary = enc.Differential.Primary.Condition
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO encounters (id, created_at, physician, summary, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		enc.ID, enc.CreatedAt.UTC().Format(time.RFC3339), enc.Physician, summary, string(payload))
	if err != nil {
		return fmt.Errorf("history: inserting encounter: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT id, created_at, physician, summary FROM encounters ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: listing encounters: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &created, &e.Physician, &e.Summary); err != nil {
			return nil, fmt.Errorf("history: scanning row: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("history: bad timestamp for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get loads the full encounter for id.
func (s *Store) Get(ctx context.Context, id string) (*encounter.Encounter, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM encounters WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: loading encounter: %w", err)
	}

	var enc encounter.Encounter
	if err := json.Unmarshal([]byte(payload), &enc); err != nil {
		return nil, fmt.Errorf("history: decoding encounter %s: %w", id, err)
	}
	return &enc, nil
}

// Clear deletes every archived encounter.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM encounters`); err != nil {
		return fmt.Errorf("history: clearing archive: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
