package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/minikan/internal/adapters/server/common"
	"github.com/hylla/minikan/internal/app"
	"github.com/hylla/minikan/internal/domain"
)

// stubBoardService provides deterministic board responses for MCP tool tests.
type stubBoardService struct {
	common.BoardService
	boards       []domain.BoardSummary
	board        domain.Board
	moved        domain.Card
	moveErr      error
	lastUserID   string
	lastMove     []string
	lastPosition *int
}

// Authenticate accepts only "good-token".
func (s *stubBoardService) Authenticate(_ context.Context, token string) (domain.User, error) {
	if token != "good-token" {
		return domain.User{}, fmt.Errorf("%w: bad token", app.ErrUnauthorized)
	}
	return domain.User{ID: "u1", Email: "ada@example.com"}, nil
}

// ListBoards returns fixture summaries.
func (s *stubBoardService) ListBoards(_ context.Context, userID string) ([]domain.BoardSummary, error) {
	s.lastUserID = userID
	return append([]domain.BoardSummary(nil), s.boards...), nil
}

// GetBoard returns the fixture board or not found.
func (s *stubBoardService) GetBoard(_ context.Context, userID, boardID string) (domain.Board, error) {
	s.lastUserID = userID
	if boardID != s.board.ID {
		return domain.Board{}, app.ErrNotFound
	}
	return s.board, nil
}

// MoveCard records the move request.
func (s *stubBoardService) MoveCard(_ context.Context, userID, cardID, columnID string, position *int) (domain.Card, error) {
	s.lastUserID = userID
	s.lastMove = []string{cardID, columnID}
	s.lastPosition = position
	if s.moveErr != nil {
		return domain.Card{}, s.moveErr
	}
	return s.moved, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// decodeStructured re-decodes structuredContent into a typed value.
func decodeStructured[T any](t *testing.T, result map[string]any) T {
	t.Helper()
	structured, ok := result["structuredContent"]
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	raw, err := json.Marshal(structured)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return out
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "minikan-test",
				"version": "1.0.0",
			},
		},
	}
}

// newTestServer starts an httptest server around the MCP handler.
func newTestServer(t *testing.T, svc *stubBoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubBoardService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

func TestHandlerRegistersBoardTools(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	names := make([]string, 0, len(toolsRaw))
	for _, raw := range toolsRaw {
		toolMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		names = append(names, name)
	}
	for _, want := range []string{"minikan.list_boards", "minikan.get_board", "minikan.create_card", "minikan.move_card"} {
		if !slices.Contains(names, want) {
			t.Fatalf("tool list missing %s: %#v", want, names)
		}
	}
}

func TestHandlerListAndGetBoard(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	svc := &stubBoardService{
		boards: []domain.BoardSummary{{ID: "b1", Name: "Roadmap", CreatedAt: now}},
		board: domain.Board{ID: "b1", Name: "Roadmap", Columns: []domain.Column{
			{ID: "B", Name: "Done", Position: 2},
			{ID: "A", Name: "To Do", Position: 1},
		}},
	}
	server := newTestServer(t, svc)

	_, listResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "minikan.list_boards", map[string]any{
		"access_token": "good-token",
	}))
	listed := decodeStructured[struct {
		Boards []common.BoardSummary `json:"boards"`
	}](t, listResp.Result)
	if len(listed.Boards) != 1 || listed.Boards[0].ID != "b1" || svc.lastUserID != "u1" {
		t.Fatalf("unexpected list result %+v (user %q)", listed, svc.lastUserID)
	}

	_, getResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "minikan.get_board", map[string]any{
		"access_token": "good-token",
		"board_id":     "b1",
	}))
	board := decodeStructured[common.Board](t, getResp.Result)
	if len(board.Columns) != 2 || board.Columns[0].ID != "A" {
		t.Fatalf("expected position-ordered columns, got %+v", board.Columns)
	}

	_, missing := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "minikan.get_board", map[string]any{
		"access_token": "good-token",
		"board_id":     "nope",
	}))
	if text := toolResultText(t, missing.Result); !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("missing board text = %q", text)
	}
}

func TestHandlerMoveCardPosition(t *testing.T) {
	svc := &stubBoardService{moved: domain.Card{ID: "X", ColumnID: "B", Title: "Card X", Position: 2}}
	server := newTestServer(t, svc)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "minikan.move_card", map[string]any{
		"access_token": "good-token",
		"card_id":      "X",
		"column_id":    "B",
		"position":     2,
	}))
	card := decodeStructured[common.Card](t, resp.Result)
	if card.ColumnID != "B" || card.Position != 2 {
		t.Fatalf("unexpected moved card %+v", card)
	}
	if !slices.Equal(svc.lastMove, []string{"X", "B"}) || svc.lastPosition == nil || *svc.lastPosition != 2 {
		t.Fatalf("unexpected move request %v / %v", svc.lastMove, svc.lastPosition)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "minikan.move_card", map[string]any{
		"access_token": "good-token",
		"card_id":      "X",
		"column_id":    "B",
	}))
	if svc.lastPosition != nil {
		t.Fatalf("omitted position must append, got %v", *svc.lastPosition)
	}
}

func TestHandlerRejectsBadTokens(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})
	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "minikan.list_boards", map[string]any{
		"access_token": "stolen",
	}))
	if isErr, _ := resp.Result["isError"].(bool); !isErr {
		t.Fatalf("expected tool error, got %#v", resp.Result)
	}
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "unauthorized:") {
		t.Fatalf("text = %q, want unauthorized prefix", text)
	}
}

func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestNormalizeConfig(t *testing.T) {
	got := normalizeConfig(Config{EndpointPath: " tools/mcp/ "})
	if got.ServerName != "minikan" || got.ServerVersion != "dev" || got.EndpointPath != "/tools/mcp" {
		t.Fatalf("unexpected normalized config %+v", got)
	}
}

func TestHandlerServeHTTPUnavailable(t *testing.T) {
	var h *Handler
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		prefix string
	}{
		{app.ErrNotFound, "not_found:"},
		{app.ErrConflict, "conflict:"},
		{app.ErrInvalidCredentials, "unauthorized:"},
		{fmt.Errorf("create: %w", domain.ErrInvalidTitle), "invalid_request:"},
		{errors.New("boom"), "internal_error:"},
	}
	for _, tc := range cases {
		result := toolResultFromError(tc.err)
		if !result.IsError {
			t.Fatalf("%v: expected IsError", tc.err)
		}
		text, ok := result.Content[0].(mcp.TextContent)
		if !ok || !strings.HasPrefix(text.Text, tc.prefix) {
			t.Fatalf("%v: text = %#v, want prefix %q", tc.err, result.Content[0], tc.prefix)
		}
	}
}
