package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// handleBuildTimeline handles the build_timeline JSON-RPC method.
func (s *Server) handleBuildTimeline(ctx context.Context, params interface{}) (interface{}, error) {
	var args BuildTimelineArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.BuildTimeline(ctx, args)
}

// handleStartSession handles the start_session JSON-RPC method.
func (s *Server) handleStartSession(ctx context.Context, params interface{}) (interface{}, error) {
	var args StartSessionArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.StartSession(ctx, args)
}

// handleGetSession handles the get_session JSON-RPC method.
func (s *Server) handleGetSession(ctx context.Context, params interface{}) (interface{}, error) {
	var args GetSessionArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, args)
}

// handleRecordTurn handles the record_turn JSON-RPC method.
func (s *Server) handleRecordTurn(ctx context.Context, params interface{}) (interface{}, error) {
	var args RecordTurnArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.RecordTurn(ctx, args)
}

// handleAddEntityMention handles the add_entity_mention JSON-RPC method.
func (s *Server) handleAddEntityMention(ctx context.Context, params interface{}) (interface{}, error) {
	var args AddEntityMentionArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.AddEntityMention(ctx, args)
}

// handleResolveEntity handles the resolve_entity JSON-RPC method.
func (s *Server) handleResolveEntity(ctx context.Context, params interface{}) (interface{}, error) {
	var args ResolveEntityArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.ResolveEntity(ctx, args)
}

// handleUpsertEvent handles the upsert_event JSON-RPC method.
func (s *Server) handleUpsertEvent(ctx context.Context, params interface{}) (interface{}, error) {
	var args UpsertEventArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.UpsertEvent(ctx, args)
}

// handleFinalizeEvent handles the finalize_event JSON-RPC method.
func (s *Server) handleFinalizeEvent(ctx context.Context, params interface{}) (interface{}, error) {
	var args FinalizeEventArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.FinalizeEvent(ctx, args)
}

// handleEndSession handles the end_session JSON-RPC method.
func (s *Server) handleEndSession(ctx context.Context, params interface{}) (interface{}, error) {
	var args EndSessionArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.EndSession(ctx, args)
}

// handleRefreshTimeline handles the refresh_timeline JSON-RPC method.
func (s *Server) handleRefreshTimeline(ctx context.Context, params interface{}) (interface{}, error) {
	var args RefreshTimelineArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.RefreshTimeline(ctx, args)
}

// handleSimilarEvents handles the similar_events JSON-RPC method.
func (s *Server) handleSimilarEvents(ctx context.Context, params interface{}) (interface{}, error) {
	var args SimilarEventsArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.SimilarEvents(ctx, args)
}

// handleInitialize responds to the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "daybook",
			Version: "1.0.0",
		},
	}, nil
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the appropriate handler
// and wraps the result in the MCP content envelope.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	// Re-marshal arguments so they can be passed to the handlers, which
	// expect an interface{} produced by JSON unmarshal.
	argsJSON, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	var rawParams interface{}
	if err := json.Unmarshal(argsJSON, &rawParams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	var result interface{}
	var handlerErr error

	switch p.Name {
	case "build_timeline":
		result, handlerErr = s.handleBuildTimeline(ctx, rawParams)
	case "start_session":
		result, handlerErr = s.handleStartSession(ctx, rawParams)
	case "get_session":
		result, handlerErr = s.handleGetSession(ctx, rawParams)
	case "record_turn":
		result, handlerErr = s.handleRecordTurn(ctx, rawParams)
	case "add_entity_mention":
		result, handlerErr = s.handleAddEntityMention(ctx, rawParams)
	case "resolve_entity":
		result, handlerErr = s.handleResolveEntity(ctx, rawParams)
	case "upsert_event":
		result, handlerErr = s.handleUpsertEvent(ctx, rawParams)
	case "finalize_event":
		result, handlerErr = s.handleFinalizeEvent(ctx, rawParams)
	case "end_session":
		result, handlerErr = s.handleEndSession(ctx, rawParams)
	case "refresh_timeline":
		result, handlerErr = s.handleRefreshTimeline(ctx, rawParams)
	case "similar_events":
		result, handlerErr = s.handleSimilarEvents(ctx, rawParams)
	default:
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}

	if handlerErr != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: handlerErr.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

// ownerDateSchema is the shared schema fragment for tools addressed by
// (owner, date).
func ownerDateSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := map[string]interface{}{
		"owner": map[string]interface{}{"type": "string", "description": "Owner identifier (required)"},
		"date":  map[string]interface{}{"type": "string", "description": "Calendar date, YYYY-MM-DD (required)"},
	}
	for k, v := range extra {
		props[k] = v
	}
	req := append([]string{"owner", "date"}, required...)
	return map[string]interface{}{
		"type":       "object",
		"required":   req,
		"properties": props,
	}
}

// buildToolsList returns the canonical list of MCP tool definitions.
func (s *Server) buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name:        "build_timeline",
			Description: "Assemble the timeline skeleton for a date: confirmed blocks from the wearable and the event store, unplaced receipt anchors, and gaps above the reporting threshold. Sources that fail are reported in the skeleton, never invented.",
			InputSchema: ownerDateSchema(nil),
		},
		{
			Name:        "start_session",
			Description: "Start or resume the logging session for (owner, date). Builds a fresh skeleton on first start; an existing session is returned unchanged with resumed=true.",
			InputSchema: ownerDateSchema(nil),
		},
		{
			Name:        "get_session",
			Description: "Return the active session for (owner, date) without creating one.",
			InputSchema: ownerDateSchema(nil),
		},
		{
			Name:        "record_turn",
			Description: "Append a conversation turn to the session. intent drives the mode machine: write -> logging, read -> querying, end -> idle (clearing pending state). Older turns beyond the verbatim window are folded into the rolling summary.",
			InputSchema: ownerDateSchema(map[string]interface{}{
				"inbound":  map[string]interface{}{"type": "string", "description": "What the user said (required)"},
				"outbound": map[string]interface{}{"type": "string", "description": "What the assistant replied"},
				"actions":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Action tags taken during the turn"},
				"intent":   map[string]interface{}{"type": "string", "description": "read, write, end, or omit for no mode change"},
			}, "inbound"),
		},
		{
			Name:        "add_entity_mention",
			Description: "Register an entity mention (person, location, activity) with its candidate matches. One candidate auto-resolves; several return ambiguous for the user to choose; none returns unresolved. Remembered resolutions auto-resolve repeat mentions.",
			InputSchema: ownerDateSchema(map[string]interface{}{
				"mention":     map[string]interface{}{"type": "string", "description": "Raw text of the mention (required)"},
				"entity_type": map[string]interface{}{"type": "string", "description": "person, location, or activity (required)"},
				"candidates": map[string]interface{}{
					"type":        "array",
					"description": "Known-entity matches for the mention",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":   map[string]interface{}{"type": "string"},
							"name": map[string]interface{}{"type": "string"},
						},
					},
				},
			}, "mention", "entity_type"),
		},
		{
			Name:        "resolve_entity",
			Description: "Record the user's choice for a previously registered entity mention. Fails for mentions that were never registered.",
			InputSchema: ownerDateSchema(map[string]interface{}{
				"mention":     map[string]interface{}{"type": "string", "description": "Previously registered mention (required)"},
				"resolved_id": map[string]interface{}{"type": "string", "description": "Chosen entity ID (required)"},
			}, "mention", "resolved_id"),
		},
		{
			Name:        "upsert_event",
			Description: "Merge fields into the partial event of the given type, creating it if absent. Returns the partial with its remaining missing fields; complete=true means it can be finalized.",
			InputSchema: ownerDateSchema(map[string]interface{}{
				"event_type": map[string]interface{}{"type": "string", "description": "Event type: workout, meal, work, sleep, commute, entertainment, errand, social, generic (required)"},
				"fields":     map[string]interface{}{"type": "object", "description": "Fields to merge, e.g. start, end, title, items, from, to"},
			}, "event_type"),
		},
		{
			Name:        "finalize_event",
			Description: "Convert a partial event into a timeline block. Missing required fields return an escalation instead of a block unless skip_validation is set; a start time can never be skipped.",
			InputSchema: ownerDateSchema(map[string]interface{}{
				"event_type":      map[string]interface{}{"type": "string", "description": "Partial event to finalize (required)"},
				"skip_validation": map[string]interface{}{"type": "boolean", "description": "Convert despite missing fields; they are recorded as omitted"},
			}, "event_type"),
		},
		{
			Name:        "end_session",
			Description: "Reset the session to idle, clearing pending entities and partial events. Turn history is retained and the session stays resumable.",
			InputSchema: ownerDateSchema(nil),
		},
		{
			Name:        "refresh_timeline",
			Description: "Rebuild the session's skeleton from the sources, picking up records that arrived since the session started.",
			InputSchema: ownerDateSchema(nil),
		},
		{
			Name:        "similar_events",
			Description: "Find stored events resembling a natural-language query via vector similarity. Requires an embedding provider and a store with vector support.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"owner", "query"},
				"properties": map[string]interface{}{
					"owner": map[string]interface{}{"type": "string", "description": "Owner identifier (required)"},
					"query": map[string]interface{}{"type": "string", "description": "Natural-language query (required)"},
					"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 5)"},
				},
			},
		},
	}
}

// unmarshalParams converts loosely-typed params into a concrete args struct
// by round-tripping through JSON.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
