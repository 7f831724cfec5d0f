// Package sqlite provides a SQLite implementation of the Daybook storage
// interfaces using the pure-Go modernc.org/sqlite driver. It is the default
// engine for single-user installs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

// Schema contains the SQL statements to create the database schema.
// All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS owners (
    id TEXT PRIMARY KEY,
    display_name TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    day TEXT NOT NULL,              -- YYYY-MM-DD bucket
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP,
    event_type TEXT NOT NULL,
    title TEXT,
    provider TEXT,
    external_id TEXT,
    details TEXT,                   -- JSON
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_owner_day ON events(owner, day);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_provider_ext
    ON events(owner, provider, external_id)
    WHERE external_id IS NOT NULL AND external_id != '';

CREATE TABLE IF NOT EXISTS sessions (
    owner TEXT NOT NULL,
    day TEXT NOT NULL,
    snapshot TEXT NOT NULL,         -- JSON SessionState
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (owner, day)
);
`

// Store implements storage.EventStore, storage.SessionStore, and
// storage.OwnerResolver over a single SQLite database file.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral in-memory database in tests.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes access per connection; one connection
	// avoids SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying database handle for maintenance tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// EnsureOwner inserts the owner row if it does not exist.
func (s *Store) EnsureOwner(ctx context.Context, owner, displayName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owners (id, display_name) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`, owner, displayName)
	return err
}

// OwnerExists reports whether the owner identifier is known.
func (s *Store) OwnerExists(ctx context.Context, owner string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM owners WHERE id = ?`, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: owner lookup failed: %w", err)
	}
	return true, nil
}

// Store creates or updates an event record.
func (s *Store) Store(ctx context.Context, rec *storage.EventRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}
	details, err := marshalDetails(rec.Details)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, owner, day, start_time, end_time, event_type,
		                    title, provider, external_id, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			day = excluded.day,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			event_type = excluded.event_type,
			title = excluded.title,
			provider = excluded.provider,
			external_id = excluded.external_id,
			details = excluded.details,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Owner, dayKey(rec.Date), rec.Start.UTC(), nullableTime(rec.End),
		rec.Type, rec.Title, rec.Provider, rec.ExternalID, details,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store event %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves an event record by ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, day, start_time, end_time, event_type, title,
		       provider, external_id, details, created_at, updated_at
		FROM events WHERE id = ?`, id)
	rec, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return rec, err
}

// ListByDate retrieves all of an owner's records for one calendar date,
// ordered ascending by start time.
func (s *Store) ListByDate(ctx context.Context, owner string, date time.Time) ([]*storage.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, day, start_time, end_time, event_type, title,
		       provider, external_id, details, created_at, updated_at
		FROM events WHERE owner = ? AND day = ?
		ORDER BY start_time ASC`, owner, dayKey(date))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list events: %w", err)
	}
	defer rows.Close()

	var recs []*storage.EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes an event record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete event %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveSnapshot upserts the session snapshot for (owner, date).
func (s *Store) SaveSnapshot(ctx context.Context, sess *types.SessionState) error {
	if sess == nil {
		return storage.ErrInvalidInput
	}
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode session snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (owner, day, snapshot, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner, day) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = CURRENT_TIMESTAMP`,
		sess.Owner, dayKey(sess.Date), string(snapshot))
	if err != nil {
		return fmt.Errorf("sqlite: failed to save session snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the session snapshot for (owner, date).
func (s *Store) LoadSnapshot(ctx context.Context, owner string, date time.Time) (*types.SessionState, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions WHERE owner = ? AND day = ?`,
		owner, dayKey(date)).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load session snapshot: %w", err)
	}
	var sess types.SessionState
	if err := json.Unmarshal([]byte(snapshot), &sess); err != nil {
		return nil, fmt.Errorf("sqlite: failed to decode session snapshot: %w", err)
	}
	return &sess, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEvent.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*storage.EventRecord, error) {
	var (
		rec     storage.EventRecord
		day     string
		end     sql.NullTime
		details sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Owner, &day, &rec.Start, &end, &rec.Type,
		&rec.Title, &rec.Provider, &rec.ExternalID, &details,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d, perr := time.Parse("2006-01-02", day); perr == nil {
		rec.Date = d
	}
	if end.Valid {
		t := end.Time
		rec.End = &t
	}
	if details.Valid && details.String != "" {
		if uerr := json.Unmarshal([]byte(details.String), &rec.Details); uerr != nil {
			return nil, fmt.Errorf("sqlite: failed to decode event details: %w", uerr)
		}
	}
	return &rec, nil
}

func marshalDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to encode event details: %w", err)
	}
	return string(data), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func dayKey(date time.Time) string {
	return date.Format("2006-01-02")
}
