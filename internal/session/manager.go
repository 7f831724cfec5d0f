// Package session implements the Session State Manager: it tracks the
// logging/query conversation against a date's timeline skeleton across
// multiple turns, gating entity resolution and partial-event completion
// before any record is handed off for persistence.
//
// A single session per (owner, date) is processed sequentially; the manager
// serializes turns for a session behind a per-session mutex. Different
// sessions are fully independent and run in parallel with no shared mutable
// state beyond the injected caches.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/daybook-ai/daybook/internal/config"
	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

var (
	// ErrUnknownMention indicates an attempt to resolve an entity mention
	// that was never registered as pending. This is a caller bug, not a
	// recoverable runtime condition.
	ErrUnknownMention = errors.New("unknown entity mention")

	// ErrNoPartialEvent indicates a finalize call for an event type with no
	// partial event under construction.
	ErrNoPartialEvent = errors.New("no partial event of that type")

	// ErrUnknownSession indicates an operation on a session the manager
	// does not track.
	ErrUnknownSession = errors.New("unknown session")

	// ErrInvalidEventType indicates an event type outside the closed set.
	ErrInvalidEventType = errors.New("invalid event type")
)

// SkeletonBuilder builds the timeline skeleton for a date. Implemented by
// timeline.Builder; an interface keeps the manager testable without
// adapters.
type SkeletonBuilder interface {
	Build(ctx context.Context, owner string, date time.Time) (*types.TimelineSkeleton, error)
}

// Distiller compresses a session's rolling turn summary. Implementations
// may call an LLM; a failed or absent distiller leaves the summary as the
// plain-text fold of discarded turns.
type Distiller interface {
	Compress(ctx context.Context, summary string) (string, error)
}

// Config holds session manager tunables.
type Config struct {
	// DistillAfterTurns is how many turns accumulate between distiller
	// passes over the rolling summary. Zero means 10.
	DistillAfterTurns int

	// KeepVerbatimTurns is the hard cap on verbatim recent turns; older
	// turns are folded into the rolling summary and their original content
	// discarded. Zero means 5.
	KeepVerbatimTurns int

	// EntityCacheSize bounds the LRU cache of remembered entity
	// resolutions. Zero means 512.
	EntityCacheSize int
}

func (c Config) withDefaults() Config {
	if c.DistillAfterTurns <= 0 {
		c.DistillAfterTurns = 10
	}
	if c.KeepVerbatimTurns <= 0 {
		c.KeepVerbatimTurns = 5
	}
	if c.EntityCacheSize <= 0 {
		c.EntityCacheSize = 512
	}
	return c
}

// Manager maintains per-(owner, date) conversational sessions.
type Manager struct {
	builder   SkeletonBuilder
	events    storage.EventStore // optional persistence handoff target
	snapshots storage.SessionStore
	rules     *config.EventRules
	distiller Distiller
	cfg       Config

	// entityCache remembers resolved mentions across sessions so repeated
	// mentions auto-resolve. Injected state, never a process-wide global.
	entityCache *lru.Cache[string, string]

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry pairs a session with the mutex that serializes its turns.
type entry struct {
	mu    sync.Mutex
	state *types.SessionState
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventStore sets the store finalized blocks are handed to for durable
// writing. Without it, finalized blocks live only on the session skeleton.
func WithEventStore(store storage.EventStore) Option {
	return func(m *Manager) { m.events = store }
}

// WithSessionStore sets the store session snapshots are mirrored to after
// each mutation, so sessions survive restarts.
func WithSessionStore(store storage.SessionStore) Option {
	return func(m *Manager) { m.snapshots = store }
}

// WithDistiller sets the summary compressor used during turn distillation.
func WithDistiller(d Distiller) Option {
	return func(m *Manager) { m.distiller = d }
}

// WithRules overrides the event completion rules table.
func WithRules(rules *config.EventRules) Option {
	return func(m *Manager) { m.rules = rules }
}

// NewManager creates a session manager around a skeleton builder.
func NewManager(builder SkeletonBuilder, cfg Config, opts ...Option) (*Manager, error) {
	if builder == nil {
		return nil, errors.New("session: skeleton builder is required")
	}
	cfg = cfg.withDefaults()

	cache, err := lru.New[string, string](cfg.EntityCacheSize)
	if err != nil {
		return nil, fmt.Errorf("session: failed to create entity cache: %w", err)
	}

	m := &Manager{
		builder:     builder,
		rules:       config.DefaultEventRules(),
		cfg:         cfg,
		entityCache: cache,
		sessions:    map[string]*entry{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func sessionKey(owner string, date time.Time) string {
	return owner + "|" + types.DayStart(date).Format("2006-01-02")
}

// StartOrResume returns the active session for (owner, date) unchanged if
// one exists; otherwise it builds a fresh skeleton and initializes an idle
// session. Adapter failures during the build degrade inside the builder, so
// a session always starts even when every source is down; only an unknown
// owner fails.
func (m *Manager) StartOrResume(ctx context.Context, owner string, date time.Time) (*types.SessionState, error) {
	key := sessionKey(owner, date)

	m.mu.Lock()
	if e, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return e.state, nil
	}
	m.mu.Unlock()

	// Build outside the map lock; adapter fetches can take a while.
	skeleton, err := m.builder.Build(ctx, owner, date)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := &types.SessionState{
		ID:        uuid.NewString(),
		Owner:     owner,
		Date:      types.DayStart(date),
		Mode:      types.ModeIdle,
		Skeleton:  skeleton,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent StartOrResume may have won the race; the first session
	// in wins and the extra skeleton is discarded.
	if e, ok := m.sessions[key]; ok {
		return e.state, nil
	}
	m.sessions[key] = &entry{state: state}
	m.persist(ctx, state)
	return state, nil
}

// Get returns the active session for (owner, date) without creating one.
func (m *Manager) Get(owner string, date time.Time) (*types.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionKey(owner, date)]
	if !ok {
		return nil, fmt.Errorf("session: %w: %s %s", ErrUnknownSession, owner, types.DayStart(date).Format("2006-01-02"))
	}
	return e.state, nil
}

// RefreshSkeleton rebuilds the session's skeleton wholesale. This is the
// only path that replaces a skeleton after session start.
func (m *Manager) RefreshSkeleton(ctx context.Context, s *types.SessionState) error {
	return m.withSession(s, func(state *types.SessionState) error {
		skeleton, err := m.builder.Build(ctx, state.Owner, state.Date)
		if err != nil {
			return err
		}
		state.Skeleton = skeleton
		state.UpdatedAt = time.Now().UTC()
		m.persist(ctx, state)
		return nil
	})
}

// EndSession resets the session to idle, clearing pending entities and
// partial events. Turn history is retained for audit. The session stays
// resumable: there is no terminal state.
func (m *Manager) EndSession(ctx context.Context, s *types.SessionState) error {
	return m.withSession(s, func(state *types.SessionState) error {
		state.Mode = types.ModeIdle
		state.PendingEntities = nil
		state.PartialEvents = nil
		state.UpdatedAt = time.Now().UTC()
		m.persist(ctx, state)
		return nil
	})
}

// withSession runs fn with the session's per-key mutex held, serializing
// turns for one (owner, date) while leaving other sessions untouched.
func (m *Manager) withSession(s *types.SessionState, fn func(*types.SessionState) error) error {
	if s == nil {
		return ErrUnknownSession
	}
	m.mu.Lock()
	e, ok := m.sessions[sessionKey(s.Owner, s.Date)]
	m.mu.Unlock()
	if !ok || e.state != s {
		return fmt.Errorf("session: %w: %s %s", ErrUnknownSession, s.Owner, s.Date.Format("2006-01-02"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// persist mirrors the session to the snapshot store when one is configured.
// Snapshot failures never fail the operation that triggered them.
func (m *Manager) persist(ctx context.Context, s *types.SessionState) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SaveSnapshot(ctx, s); err != nil {
		log.Printf("session: failed to save snapshot for %s %s: %v",
			s.Owner, s.Date.Format("2006-01-02"), err)
	}
}
