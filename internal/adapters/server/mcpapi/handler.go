// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/minikan/internal/adapters/server/common"
	"github.com/hylla/minikan/internal/app"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, service common.BoardService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, service)
	registerCardTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "minikan"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// tokenOption declares the access token argument every tool requires.
func tokenOption() mcp.ToolOption {
	return mcp.WithString("access_token", mcp.Required(), mcp.Description("Bearer access token issued by login"))
}

// authenticate resolves the access_token argument into a user id.
func authenticate(ctx context.Context, service common.BoardService, req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	token, err := req.RequireString("access_token")
	if err != nil {
		return "", mcp.NewToolResultError("invalid_request: " + err.Error())
	}
	user, err := service.Authenticate(ctx, token)
	if err != nil {
		return "", toolResultFromError(err)
	}
	return user.ID, nil
}

// registerBoardTools registers the board read tools.
func registerBoardTools(srv *mcpserver.MCPServer, service common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"minikan.list_boards",
			mcp.WithDescription("List the boards owned by the caller."),
			tokenOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, failed := authenticate(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			boards, err := service.ListBoards(ctx, userID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"boards": common.FromDomainSummaries(boards),
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_boards result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"minikan.get_board",
			mcp.WithDescription("Return one board with its columns and cards ordered by position."),
			tokenOption(),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, failed := authenticate(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			boardID, err := req.RequireString("board_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			board, err := service.GetBoard(ctx, userID, boardID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(common.FromDomainBoard(board))
			if err != nil {
				return nil, fmt.Errorf("encode get_board result: %w", err)
			}
			return result, nil
		},
	)
}

// registerCardTools registers the card mutation tools.
func registerCardTools(srv *mcpserver.MCPServer, service common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"minikan.create_card",
			mcp.WithDescription("Append a card to the end of a column."),
			tokenOption(),
			mcp.WithString("column_id", mcp.Required(), mcp.Description("Column identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Card title, at least 3 characters")),
			mcp.WithString("description", mcp.Description("Optional card description")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, failed := authenticate(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			columnID, err := req.RequireString("column_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			card, err := service.CreateCard(ctx, userID, columnID, title, req.GetString("description", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(common.FromDomainCard(card))
			if err != nil {
				return nil, fmt.Errorf("encode create_card result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"minikan.move_card",
			mcp.WithDescription("Move a card to a column at a 1-based position; omit position to append."),
			tokenOption(),
			mcp.WithString("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("column_id", mcp.Required(), mcp.Description("Destination column identifier")),
			mcp.WithNumber("position", mcp.Description("Destination 1-based position, clamped to the column")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, failed := authenticate(ctx, service, req)
			if failed != nil {
				return failed, nil
			}
			cardID, err := req.RequireString("card_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			columnID, err := req.RequireString("column_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			var position *int
			if _, ok := req.GetArguments()["position"]; ok {
				p := req.GetInt("position", 0)
				position = &p
			}
			card, err := service.MoveCard(ctx, userID, cardID, columnID, position)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(common.FromDomainCard(card))
			if err != nil {
				return nil, fmt.Errorf("encode move_card result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors onto prefixed tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrUnauthorized):
		return mcp.NewToolResultError("unauthorized: " + err.Error())
	case errors.Is(err, app.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, app.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	}
	if _, kind := common.Classify(err); kind == common.ErrorTypeValidation {
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	}
	return mcp.NewToolResultError("internal_error: " + common.PublicMessage(err))
}
