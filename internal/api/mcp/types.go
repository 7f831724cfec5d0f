// Package mcp implements the Model Context Protocol (MCP) server for Daybook.
// It provides JSON-RPC 2.0 based tools for building timeline skeletons and
// driving multi-turn logging sessions.
package mcp

import (
	"github.com/daybook-ai/daybook/pkg/types"
)

// BuildTimelineArgs contains arguments for the build_timeline tool.
type BuildTimelineArgs struct {
	Owner string `json:"owner"` // Owner identifier (required)
	Date  string `json:"date"`  // Calendar date, YYYY-MM-DD (required)
}

// BuildTimelineResult contains the assembled skeleton.
type BuildTimelineResult struct {
	Skeleton *types.TimelineSkeleton `json:"skeleton"`
}

// StartSessionArgs contains arguments for the start_session tool.
type StartSessionArgs struct {
	Owner string `json:"owner"` // Owner identifier (required)
	Date  string `json:"date"`  // Calendar date, YYYY-MM-DD (required)
}

// SessionResult wraps a session state snapshot. Returned by every tool that
// mutates or reads a session.
type SessionResult struct {
	Session *types.SessionState `json:"session"`
	Resumed bool                `json:"resumed,omitempty"` // start_session only: an existing session was returned
}

// RecordTurnArgs contains arguments for the record_turn tool.
type RecordTurnArgs struct {
	Owner    string   `json:"owner"`             // Owner identifier (required)
	Date     string   `json:"date"`              // Calendar date, YYYY-MM-DD (required)
	Inbound  string   `json:"inbound"`           // What the user said (required)
	Outbound string   `json:"outbound"`          // What the assistant replied
	Actions  []string `json:"actions,omitempty"` // Action tags taken during the turn
	Intent   string   `json:"intent,omitempty"`  // read, write, end, or empty for no mode change
}

// AddEntityMentionArgs contains arguments for the add_entity_mention tool.
type AddEntityMentionArgs struct {
	Owner      string            `json:"owner"`                // Owner identifier (required)
	Date       string            `json:"date"`                 // Calendar date, YYYY-MM-DD (required)
	Mention    string            `json:"mention"`              // Raw text of the mention (required)
	EntityType string            `json:"entity_type"`          // person, location, or activity (required)
	Candidates []types.Candidate `json:"candidates,omitempty"` // Known-entity matches for the mention
}

// AddEntityMentionResult reports how the mention resolved.
type AddEntityMentionResult struct {
	Mention    string            `json:"mention"`
	Resolution string            `json:"resolution"` // auto-resolved, ambiguous, unresolved
	ResolvedID string            `json:"resolved_id,omitempty"`
	Candidates []types.Candidate `json:"candidates,omitempty"` // Present when ambiguous
}

// ResolveEntityArgs contains arguments for the resolve_entity tool.
type ResolveEntityArgs struct {
	Owner      string `json:"owner"`       // Owner identifier (required)
	Date       string `json:"date"`        // Calendar date, YYYY-MM-DD (required)
	Mention    string `json:"mention"`     // Previously registered mention (required)
	ResolvedID string `json:"resolved_id"` // Chosen entity ID (required)
}

// UpsertEventArgs contains arguments for the upsert_event tool.
type UpsertEventArgs struct {
	Owner     string         `json:"owner"`      // Owner identifier (required)
	Date      string         `json:"date"`       // Calendar date, YYYY-MM-DD (required)
	EventType string         `json:"event_type"` // One of the closed block type set (required)
	Fields    map[string]any `json:"fields"`     // Fields to merge into the partial event
}

// UpsertEventResult contains the partial event after the merge.
type UpsertEventResult struct {
	Partial  *types.PartialEvent `json:"partial"`
	Complete bool                `json:"complete"` // No required fields missing
}

// FinalizeEventArgs contains arguments for the finalize_event tool.
type FinalizeEventArgs struct {
	Owner          string `json:"owner"`                     // Owner identifier (required)
	Date           string `json:"date"`                      // Calendar date, YYYY-MM-DD (required)
	EventType      string `json:"event_type"`                // Partial event to finalize (required)
	SkipValidation bool   `json:"skip_validation,omitempty"` // Convert despite missing fields
}

// FinalizeEventResult contains either the created block or an escalation
// naming the missing fields. Exactly one of the two is set.
type FinalizeEventResult struct {
	Block      *types.TimeBlock        `json:"block,omitempty"`
	Escalation *types.EscalationSignal `json:"escalation,omitempty"`
}

// EndSessionArgs contains arguments for the end_session tool.
type EndSessionArgs struct {
	Owner string `json:"owner"` // Owner identifier (required)
	Date  string `json:"date"`  // Calendar date, YYYY-MM-DD (required)
}

// GetSessionArgs contains arguments for the get_session tool.
type GetSessionArgs struct {
	Owner string `json:"owner"` // Owner identifier (required)
	Date  string `json:"date"`  // Calendar date, YYYY-MM-DD (required)
}

// RefreshTimelineArgs contains arguments for the refresh_timeline tool.
type RefreshTimelineArgs struct {
	Owner string `json:"owner"` // Owner identifier (required)
	Date  string `json:"date"`  // Calendar date, YYYY-MM-DD (required)
}

// SimilarEventsArgs contains arguments for the similar_events tool.
type SimilarEventsArgs struct {
	Owner string `json:"owner"`           // Owner identifier (required)
	Query string `json:"query"`           // Natural-language query (required)
	Limit int    `json:"limit,omitempty"` // Max results (default 5)
}

// SimilarEvent is one match from similar_events.
type SimilarEvent struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// SimilarEventsResult contains the nearest stored events.
type SimilarEventsResult struct {
	Events []SimilarEvent `json:"events"`
	Total  int            `json:"total"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
