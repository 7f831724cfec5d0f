// Package postgres provides a PostgreSQL implementation of the Daybook
// storage interfaces, for hosted multi-user deployments. When the pgvector
// extension is available the store also supports event similarity search.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

// Store implements storage.EventStore, storage.SessionStore,
// storage.OwnerResolver, and (when pgvector is present)
// storage.SimilaritySearcher using PostgreSQL.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewStore opens a connection pool to the given DSN and applies the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	// Enabling pgvector may fail on servers without the extension
	// installed. Similarity search is disabled in that case.
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (similarity search disabled): %v", err)
	} else if _, err := db.Exec(MigrationVector); err != nil {
		log.Printf("postgres: failed to apply vector migration (similarity search disabled): %v", err)
	} else {
		s.pgvectorAvailable = true
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// VectorAvailable reports whether similarity search is usable.
func (s *Store) VectorAvailable() bool { return s.pgvectorAvailable }

// EnsureOwner inserts the owner row if it does not exist.
func (s *Store) EnsureOwner(ctx context.Context, owner, displayName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owners (id, display_name) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`, owner, displayName)
	return err
}

// OwnerExists reports whether the owner identifier is known.
func (s *Store) OwnerExists(ctx context.Context, owner string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM owners WHERE id = $1`, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: owner lookup failed: %w", err)
	}
	return true, nil
}

// Store creates or updates an event record. When the record carries an
// embedding and pgvector is available, the vector column is updated too.
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			day = EXCLUDED.day,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			event_type = EXCLUDED.event_type,
			title = EXCLUDED.title,
			provider = EXCLUDED.provider,
			external_id = EXCLUDED.external_id,
			details = EXCLUDED.details,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.Owner, dayKey(rec.Date), rec.Start.UTC(), nullableTime(rec.End),
		rec.Type, rec.Title, rec.Provider, rec.ExternalID, details,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to store event %s: %w", rec.ID, err)
	}

	if len(rec.Embedding) > 0 && s.pgvectorAvailable {
		vec := pgvector.NewVector(rec.Embedding)
		if _, err := s.db.ExecContext(ctx,
			`UPDATE events SET embedding_vec = $1 WHERE id = $2`, vec, rec.ID); err != nil {
			// The record itself is stored; a failed embedding write only
			// degrades similarity search.
			log.Printf("postgres: failed to store embedding for event %s: %v", rec.ID, err)
		}
	}
	return nil
}

// Get retrieves an event record by ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, eventSelect+` WHERE id = $1`, id)
	rec, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return rec, err
}

// ListByDate retrieves all of an owner's records for one calendar date,
// ordered ascending by start time.
func (s *Store) ListByDate(ctx context.Context, owner string, date time.Time) ([]*storage.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		eventSelect+` WHERE owner = $1 AND day = $2 ORDER BY start_time ASC`,
		owner, dayKey(date))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list events: %w", err)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete event %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SimilarEvents returns up to limit of the owner's records nearest to the
// query embedding, nearest first. Returns ErrVectorUnavailable when the
// pgvector extension is not installed.
func (s *Store) SimilarEvents(ctx context.Context, owner string, embedding []float32, limit int) ([]*storage.EventRecord, error) {
	if !s.pgvectorAvailable {
		return nil, storage.ErrVectorUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.QueryContext(ctx,
		eventSelect+`
		WHERE owner = $1 AND embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> $2::vector
		LIMIT $3`, owner, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: similarity query failed: %w", err)
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

// SaveSnapshot upserts the session snapshot for (owner, date).
func (s *Store) SaveSnapshot(ctx context.Context, sess *types.SessionState) error {
	if sess == nil {
		return storage.ErrInvalidInput
	}
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode session snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (owner, day, snapshot, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner, day) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = NOW()`,
		sess.Owner, dayKey(sess.Date), string(snapshot))
	if err != nil {
		return fmt.Errorf("postgres: failed to save session snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the session snapshot for (owner, date).
func (s *Store) LoadSnapshot(ctx context.Context, owner string, date time.Time) (*types.SessionState, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions WHERE owner = $1 AND day = $2`,
		owner, dayKey(date)).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load session snapshot: %w", err)
	}
	var sess types.SessionState
	if err := json.Unmarshal([]byte(snapshot), &sess); err != nil {
		return nil, fmt.Errorf("postgres: failed to decode session snapshot: %w", err)
	}
	return &sess, nil
}

const eventSelect = `
	SELECT id, owner, day, start_time, end_time, event_type, title,
	       provider, external_id, details, created_at, updated_at
	FROM events`

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
			return nil, fmt.Errorf("postgres: failed to decode event details: %w", uerr)
		}
	}
	return &rec, nil
}

func marshalDetails(details map[string]any) (any, error) {
	if len(details) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to encode event details: %w", err)
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
