package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-ai/daybook/internal/api/mcp"
	"github.com/daybook-ai/daybook/internal/session"
	"github.com/daybook-ai/daybook/pkg/types"
)

// fakeBuilder hands out empty skeletons for any known owner.
type fakeBuilder struct{}

func (fakeBuilder) Build(_ context.Context, owner string, date time.Time) (*types.TimelineSkeleton, error) {
	if owner != "ada" {
		return nil, fmt.Errorf("unknown owner: %s", owner)
	}
	return &types.TimelineSkeleton{
		Owner:   owner,
		Date:    types.DayStart(date),
		Sources: map[types.BlockSource]types.SourceStatus{},
		BuiltAt: time.Now().UTC(),
	}, nil
}

// rpcResponse mirrors the response frame with a raw result for re-decoding.
type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	Result  json.RawMessage  `json:"result"`
	Error   *mcp.JSONRPCError `json:"error"`
	ID      any              `json:"id"`
}

func newTestServer(t *testing.T, opts ...mcp.ServerOption) *mcp.Server {
	t.Helper()
	manager, err := session.NewManager(fakeBuilder{}, session.Config{})
	require.NoError(t, err)
	return mcp.NewServer(fakeBuilder{}, manager, opts...)
}

func call(t *testing.T, s *mcp.Server, method string, params any) rpcResponse {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	respJSON, err := s.HandleRequest(context.Background(), raw)
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

// callTool invokes tools/call and decodes the text content back into dest.
func callTool(t *testing.T, s *mcp.Server, name string, args any, dest any) *mcp.MCPToolCallResult {
	t.Helper()
	resp := call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	require.Nil(t, resp.Error)

	var result mcp.MCPToolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	if dest != nil && !result.IsError {
		require.NotEmpty(t, result.Content)
		// Zero the destination so fields omitted from this response do not
		// retain values left over from a previous decode into the same struct.
		v := reflect.ValueOf(dest).Elem()
		v.Set(reflect.Zero(v.Type()))
		require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), dest))
	}
	return &result
}

func TestInitializeHandshake(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "initialize", map[string]any{})
	require.Nil(t, resp.Error)

	var result mcp.MCPInitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, "daybook", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "tools/list", nil)
	require.Nil(t, resp.Error)

	var result mcp.MCPToolsListResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 11)

	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.NotNil(t, tool.InputSchema, tool.Name)
	}
	for _, want := range []string{
		"build_timeline", "start_session", "get_session", "record_turn",
		"add_entity_mention", "resolve_entity", "upsert_event",
		"finalize_event", "end_session", "refresh_timeline", "similar_events",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestParseError(t *testing.T) {
	s := newTestServer(t)
	respJSON, err := s.HandleRequest(context.Background(), []byte("{not json"))
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.ErrCodeParseError, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "teleport", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.ErrCodeMethodNotFound, resp.Error.Code)
}

func TestInvalidJSONRPCVersion(t *testing.T) {
	s := newTestServer(t)
	respJSON, err := s.HandleRequest(context.Background(),
		[]byte(`{"jsonrpc":"1.0","id":1,"method":"tools/list"}`))
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.ErrCodeInvalidRequest, resp.Error.Code)
}

func TestUnknownToolIsToolError(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, "frobnicate", map[string]any{}, nil)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "unknown tool")
}

func TestStartSessionTool(t *testing.T) {
	s := newTestServer(t)
	args := map[string]any{"owner": "ada", "date": "2026-03-14"}

	var first mcp.SessionResult
	result := callTool(t, s, "start_session", args, &first)
	require.False(t, result.IsError, result.Content)
	assert.False(t, first.Resumed)
	require.NotNil(t, first.Session)
	assert.Equal(t, types.ModeIdle, first.Session.Mode)

	var second mcp.SessionResult
	callTool(t, s, "start_session", args, &second)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Session.ID, second.Session.ID)
}

func TestGetSessionWithoutStartFails(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, "get_session",
		map[string]any{"owner": "ada", "date": "2026-03-14"}, nil)
	assert.True(t, result.IsError)
}

func TestBuildTimelineNativeMethod(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "build_timeline", map[string]any{"owner": "ada", "date": "2026-03-14"})
	require.Nil(t, resp.Error)

	var result mcp.BuildTimelineResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotNil(t, result.Skeleton)
	assert.Equal(t, "ada", result.Skeleton.Owner)
}

func TestBuildTimelineRejectsBadDate(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "build_timeline", map[string]any{"owner": "ada", "date": "March 14th"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.ErrCodeServerError, resp.Error.Code)
}

func TestLoggingFlowOverTools(t *testing.T) {
	s := newTestServer(t)
	base := map[string]any{"owner": "ada", "date": "2026-03-14"}

	callTool(t, s, "start_session", base, nil)

	// Register an ambiguous mention; candidates come back for the user.
	var mention mcp.AddEntityMentionResult
	callTool(t, s, "add_entity_mention", map[string]any{
		"owner": "ada", "date": "2026-03-14",
		"mention": "Alex", "entity_type": "person",
		"candidates": []map[string]any{
			{"id": "person:alex-r", "label": "Alex Rivera"},
			{"id": "person:alex-k", "label": "Alex Kim"},
		},
	}, &mention)
	assert.Equal(t, "ambiguous", mention.Resolution)
	assert.Len(t, mention.Candidates, 2)

	callTool(t, s, "resolve_entity", map[string]any{
		"owner": "ada", "date": "2026-03-14",
		"mention": "Alex", "resolved_id": "person:alex-k",
	}, nil)

	// Build a meal across two upserts; finalize escalates until complete.
	var upsert mcp.UpsertEventResult
	callTool(t, s, "upsert_event", map[string]any{
		"owner": "ada", "date": "2026-03-14",
		"event_type": "meal", "fields": map[string]any{"start": "12:30"},
	}, &upsert)
	assert.False(t, upsert.Complete)

	var finalize mcp.FinalizeEventResult
	callTool(t, s, "finalize_event", map[string]any{
		"owner": "ada", "date": "2026-03-14", "event_type": "meal",
	}, &finalize)
	assert.Nil(t, finalize.Block)
	require.NotNil(t, finalize.Escalation)
	assert.Equal(t, []string{"items"}, finalize.Escalation.MissingFields)

	callTool(t, s, "upsert_event", map[string]any{
		"owner": "ada", "date": "2026-03-14",
		"event_type": "meal", "fields": map[string]any{"items": []string{"ramen"}},
	}, &upsert)
	assert.True(t, upsert.Complete)

	callTool(t, s, "finalize_event", map[string]any{
		"owner": "ada", "date": "2026-03-14", "event_type": "meal",
	}, &finalize)
	require.NotNil(t, finalize.Block)
	assert.Nil(t, finalize.Escalation)
	assert.Equal(t, types.SourceInferred, finalize.Block.Source)

	// The finalized block is visible on the session skeleton.
	var got mcp.SessionResult
	callTool(t, s, "get_session", base, &got)
	assert.Len(t, got.Session.Skeleton.Blocks, 1)

	callTool(t, s, "end_session", base, &got)
	assert.Equal(t, types.ModeIdle, got.Session.Mode)
	assert.Empty(t, got.Session.PartialEvents)
}

func TestSimilarEventsWithoutEmbedder(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, "similar_events",
		map[string]any{"owner": "ada", "query": "lunch with sarah"}, nil)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "no embedding provider")
}
