package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/daybook-ai/daybook/internal/config"
	"github.com/daybook-ai/daybook/internal/llm"
	"github.com/daybook-ai/daybook/internal/notify"
	"github.com/daybook-ai/daybook/internal/session"
	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

// Server implements the Model Context Protocol (MCP) for Daybook.
// It exposes JSON-RPC 2.0 tools for AI assistants to assemble timeline
// skeletons and drive logging sessions.
type Server struct {
	manager     *session.Manager
	builder     session.SkeletonBuilder
	events      storage.EventStore
	embedder    llm.EmbeddingGenerator
	broadcaster *notify.Broadcaster
	config      *config.Config
	sessionID   string // unique ID generated once per MCP server lifetime
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithConfig injects a *config.Config into the Server.
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) { s.config = cfg }
}

// WithEventStore injects the event store used by the similar_events tool.
// Similarity search additionally requires the store to implement
// storage.SimilaritySearcher and an embedder to be configured.
func WithEventStore(store storage.EventStore) ServerOption {
	return func(s *Server) { s.events = store }
}

// WithEmbedder injects the embedding generator used by similar_events.
func WithEmbedder(e llm.EmbeddingGenerator) ServerOption {
	return func(s *Server) { s.embedder = e }
}

// WithBroadcaster injects the broadcaster that pushes session updates to
// WebSocket subscribers after each mutating tool call.
func WithBroadcaster(b *notify.Broadcaster) ServerOption {
	return func(s *Server) { s.broadcaster = b }
}

// NewServer creates a new MCP server around a skeleton builder and a session
// manager. Both are required; everything else is optional.
func NewServer(builder session.SkeletonBuilder, manager *session.Manager, opts ...ServerOption) *Server {
	s := &Server{
		manager:   manager,
		builder:   builder,
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Printf("daybook-mcp: session ID: %s", s.sessionID)
	return s
}

// Config returns the configuration that was injected via WithConfig, or nil
// if no config option was provided.
func (s *Server) Config() *config.Config {
	return s.config
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for MCP protocol handling.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err)
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	// Standard MCP protocol methods
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized":
		// Notification; no response body required.
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)

	// Native JSON-RPC methods for direct callers
	case "build_timeline":
		result, err = s.handleBuildTimeline(ctx, req.Params)
	case "start_session":
		result, err = s.handleStartSession(ctx, req.Params)
	case "get_session":
		result, err = s.handleGetSession(ctx, req.Params)
	case "record_turn":
		result, err = s.handleRecordTurn(ctx, req.Params)
	case "add_entity_mention":
		result, err = s.handleAddEntityMention(ctx, req.Params)
	case "resolve_entity":
		result, err = s.handleResolveEntity(ctx, req.Params)
	case "upsert_event":
		result, err = s.handleUpsertEvent(ctx, req.Params)
	case "finalize_event":
		result, err = s.handleFinalizeEvent(ctx, req.Params)
	case "end_session":
		result, err = s.handleEndSession(ctx, req.Params)
	case "refresh_timeline":
		result, err = s.handleRefreshTimeline(ctx, req.Params)
	case "similar_events":
		result, err = s.handleSimilarEvents(ctx, req.Params)
	default:
		return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}

	return s.successResponse(req.ID, result)
}

// BuildTimeline assembles a fresh skeleton without touching session state.
func (s *Server) BuildTimeline(ctx context.Context, args BuildTimelineArgs) (*BuildTimelineResult, error) {
	date, err := parseDate(args.Date)
	if err != nil {
		return nil, err
	}
	if args.Owner == "" {
		return nil, errors.New("owner is required")
	}
	skeleton, err := s.builder.Build(ctx, args.Owner, date)
	if err != nil {
		return nil, err
	}
	return &BuildTimelineResult{Skeleton: skeleton}, nil
}

// StartSession starts or resumes the session for (owner, date).
func (s *Server) StartSession(ctx context.Context, args StartSessionArgs) (*SessionResult, error) {
	date, err := parseDate(args.Date)
	if err != nil {
		return nil, err
	}
	if args.Owner == "" {
		return nil, errors.New("owner is required")
	}

	existing, _ := s.manager.Get(args.Owner, date)
	state, err := s.manager.StartOrResume(ctx, args.Owner, date)
	if err != nil {
		return nil, err
	}
	s.publish(state, "session-started")
	return &SessionResult{Session: state, Resumed: existing != nil}, nil
}

// GetSession returns the active session without creating one.
func (s *Server) GetSession(ctx context.Context, args GetSessionArgs) (*SessionResult, error) {
	date, err := parseDate(args.Date)
	if err != nil {
		return nil, err
	}
	state, err := s.manager.Get(args.Owner, date)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: state}, nil
}

// RecordTurn appends a conversation turn to the session.
func (s *Server) RecordTurn(ctx context.Context, args RecordTurnArgs) (*SessionResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	if args.Inbound == "" {
		return nil, errors.New("inbound is required")
	}
	if err := s.manager.RecordTurn(ctx, state, args.Inbound, args.Outbound, args.Actions, types.Intent(args.Intent)); err != nil {
		return nil, err
	}
	s.publish(state, "turn-recorded")
	return &SessionResult{Session: state}, nil
}

// AddEntityMention registers an entity mention and reports its resolution.
func (s *Server) AddEntityMention(ctx context.Context, args AddEntityMentionArgs) (*AddEntityMentionResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	if args.Mention == "" {
		return nil, errors.New("mention is required")
	}
	resolution, err := s.manager.AddPendingEntity(ctx, state, args.Mention, args.EntityType, args.Candidates)
	if err != nil {
		return nil, err
	}
	s.publish(state, "entity-registered")

	result := &AddEntityMentionResult{
		Mention:    args.Mention,
		Resolution: string(resolution),
	}
	if pending := state.PendingEntity(args.Mention); pending != nil {
		result.ResolvedID = pending.ResolvedID
		if resolution == session.ResolutionAmbiguous {
			result.Candidates = pending.Candidates
		}
	}
	return result, nil
}

// ResolveEntity records the caller's choice for a registered mention.
func (s *Server) ResolveEntity(ctx context.Context, args ResolveEntityArgs) (*SessionResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	if args.ResolvedID == "" {
		return nil, errors.New("resolved_id is required")
	}
	if err := s.manager.ResolveEntity(ctx, state, args.Mention, args.ResolvedID); err != nil {
		return nil, err
	}
	s.publish(state, "entity-resolved")
	return &SessionResult{Session: state}, nil
}

// UpsertEvent merges fields into a partial event.
func (s *Server) UpsertEvent(ctx context.Context, args UpsertEventArgs) (*UpsertEventResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	partial, err := s.manager.UpsertPartialEvent(ctx, state, args.EventType, args.Fields)
	if err != nil {
		return nil, err
	}
	s.publish(state, "event-updated")
	return &UpsertEventResult{
		Partial:  partial,
		Complete: len(partial.MissingFields) == 0,
	}, nil
}

// FinalizeEvent converts a partial event into a timeline block, or returns
// an escalation naming the missing fields.
func (s *Server) FinalizeEvent(ctx context.Context, args FinalizeEventArgs) (*FinalizeEventResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	block, escalation, err := s.manager.FinalizeEvent(ctx, state, args.EventType, session.FinalizeOptions{
		SkipValidation: args.SkipValidation,
	})
	if err != nil {
		return nil, err
	}
	if block != nil {
		s.publish(state, "event-finalized")
	}
	return &FinalizeEventResult{Block: block, Escalation: escalation}, nil
}

// EndSession resets the session to idle.
func (s *Server) EndSession(ctx context.Context, args EndSessionArgs) (*SessionResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	if err := s.manager.EndSession(ctx, state); err != nil {
		return nil, err
	}
	s.publish(state, "session-ended")
	return &SessionResult{Session: state}, nil
}

// RefreshTimeline rebuilds the session's skeleton from the sources.
func (s *Server) RefreshTimeline(ctx context.Context, args RefreshTimelineArgs) (*SessionResult, error) {
	state, err := s.activeSession(args.Owner, args.Date)
	if err != nil {
		return nil, err
	}
	if err := s.manager.RefreshSkeleton(ctx, state); err != nil {
		return nil, err
	}
	s.publish(state, "timeline-refreshed")
	return &SessionResult{Session: state}, nil
}

// SimilarEvents finds stored events resembling the query. Requires a
// configured embedder and a store with vector support.
func (s *Server) SimilarEvents(ctx context.Context, args SimilarEventsArgs) (*SimilarEventsResult, error) {
	if args.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if args.Query == "" {
		return nil, errors.New("query is required")
	}
	if s.embedder == nil {
		return nil, errors.New("similarity search unavailable: no embedding provider configured")
	}
	searcher, ok := s.events.(storage.SimilaritySearcher)
	if !ok {
		return nil, fmt.Errorf("similarity search unavailable: %w", storage.ErrVectorUnavailable)
	}

	embedding, err := s.embedder.Embed(ctx, args.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 5
	}
	records, err := searcher.SimilarEvents(ctx, args.Owner, embedding, limit)
	if err != nil {
		return nil, err
	}

	result := &SimilarEventsResult{Total: len(records)}
	for _, rec := range records {
		result.Events = append(result.Events, SimilarEvent{
			ID:    rec.ID,
			Date:  rec.Date.Format("2006-01-02"),
			Type:  rec.Type,
			Title: rec.Title,
		})
	}
	return result, nil
}

// activeSession resolves an existing session for (owner, date) or fails.
func (s *Server) activeSession(owner, date string) (*types.SessionState, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.manager.Get(owner, day)
}

// publish pushes a compact session summary to WebSocket subscribers. The
// payload deliberately excludes the skeleton and turn bodies; subscribers
// fetch full state through get_session.
func (s *Server) publish(state *types.SessionState, event string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(notify.Update{
		Kind:  "session",
		Owner: state.Owner,
		Date:  state.Date.Format("2006-01-02"),
		Payload: map[string]any{
			"event":      event,
			"session_id": state.ID,
		},
	})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("date is required (YYYY-MM-DD)")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}
