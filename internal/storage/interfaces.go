// Package storage provides composable storage interfaces for the Daybook
// system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed, allowing flexible
// backend implementations (sqlite for single-user installs, postgres for
// hosted deployments).
package storage

import (
	"context"
	"time"

	"github.com/daybook-ai/daybook/pkg/types"
)

// EventStore provides CRUD operations for confirmed event records.
type EventStore interface {
	// Store creates or updates an event record (upsert semantics by ID).
	Store(ctx context.Context, rec *EventRecord) error

	// Get retrieves a record by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*EventRecord, error)

	// ListByDate retrieves all of an owner's records for one calendar date,
	// ordered ascending by start time.
	ListByDate(ctx context.Context, owner string, date time.Time) ([]*EventRecord, error)

	// Delete removes a record by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// OwnerResolver checks that an owner identifier resolves to a valid account.
type OwnerResolver interface {
	// OwnerExists reports whether the owner identifier is known.
	OwnerExists(ctx context.Context, owner string) (bool, error)
}

// SessionStore persists session snapshots across restarts. The session
// manager remains the single writer for a given (owner, date); the store
// only durably mirrors what the manager hands it.
type SessionStore interface {
	// SaveSnapshot upserts the snapshot for the session's (owner, date).
	SaveSnapshot(ctx context.Context, s *types.SessionState) error

	// LoadSnapshot retrieves the snapshot for (owner, date).
	// Returns ErrNotFound when no snapshot exists.
	LoadSnapshot(ctx context.Context, owner string, date time.Time) (*types.SessionState, error)

	// Close releases any resources held by the store.
	Close() error
}

// SimilaritySearcher finds events resembling a query embedding. Implemented
// only by backends with vector support (postgres + pgvector); callers probe
// for it with a type assertion.
type SimilaritySearcher interface {
	// SimilarEvents returns up to limit of the owner's records nearest to
	// the query embedding, nearest first.
	SimilarEvents(ctx context.Context, owner string, embedding []float32, limit int) ([]*EventRecord, error)
}
