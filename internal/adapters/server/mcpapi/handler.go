// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
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

// NewHandler builds one stateless MCP adapter exposing board and task tools.
func NewHandler(cfg Config, boards common.BoardService) (*Handler, error) {
	if boards == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, boards)
	registerTaskTools(mcpSrv, boards)

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
		cfg.ServerName = "tavla"
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

// registerBoardTools registers board list/add/remove tools.
func registerBoardTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_boards",
			mcp.WithDescription("List the boards of one user with their ordered tasks."),
			mcp.WithString("username", mcp.Required(), mcp.Description("Board owner username")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			username, err := req.RequireString("username")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			user, err := boards.UserByUsername(ctx, username)
			if err != nil {
				return toolResultFromError(err), nil
			}
			rows, err := boards.ListBoards(ctx, user.ID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_boards", map[string]any{
				"user":   user,
				"boards": rows,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.add_board",
			mcp.WithDescription("Create an empty board for one user."),
			mcp.WithString("username", mcp.Required(), mcp.Description("Board owner username")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Board name")),
			mcp.WithString("description", mcp.Description("Optional markdown description")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			username, err := req.RequireString("username")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			user, err := boards.UserByUsername(ctx, username)
			if err != nil {
				return toolResultFromError(err), nil
			}
			board, err := boards.AddBoard(ctx, common.AddBoardRequest{NewBoard: common.BoardPayload{
				Name:        name,
				Description: req.GetString("description", ""),
				Tasks:       []common.TaskPayload{},
				UserID:      user.ID,
			}})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_board", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.remove_board",
			mcp.WithDescription("Delete one board and its tasks."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, err := req.RequireString("board_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := boards.RemoveBoard(ctx, common.RemoveBoardRequest{ID: boardID}); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("remove_board", common.RemoveBoardResult{ID: boardID})
		},
	)
}

// registerTaskTools registers task mutation tools.
func registerTaskTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.add_task",
			mcp.WithDescription("Prepend a task to a board."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Task name")),
			mcp.WithNumber("task_id", mcp.Description("Task id in unix milliseconds (defaults to now)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, err := req.RequireString("board_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			taskID := int64(req.GetInt("task_id", 0))
			if taskID <= 0 {
				taskID = nextTaskID()
			}
			board, err := boards.AddTask(ctx, common.AddTaskRequest{
				BoardID: boardID,
				NewTask: common.TaskPayload{ID: taskID, Name: name},
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_task", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.remove_task",
			mcp.WithDescription("Remove one task from a board."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, taskID, errResult := boardAndTask(req)
			if errResult != nil {
				return errResult, nil
			}
			board, err := boards.RemoveTask(ctx, common.RemoveTaskRequest{BoardID: boardID, TaskID: taskID})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("remove_task", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.complete_task",
			mcp.WithDescription("Toggle completion of one task. Newly completed tasks move to the end of the board."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, taskID, errResult := boardAndTask(req)
			if errResult != nil {
				return errResult, nil
			}
			board, err := boards.ToggleTask(ctx, boardID, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("complete_task", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.rename_task",
			mcp.WithDescription("Rename one task."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("name", mcp.Required(), mcp.Description("New task name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, taskID, errResult := boardAndTask(req)
			if errResult != nil {
				return errResult, nil
			}
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			board, err := boards.EditTask(ctx, common.EditTaskRequest{BoardID: boardID, TaskID: taskID, NewName: name})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("rename_task", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.move_task",
			mcp.WithDescription("Move one task to the position currently held by another task."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task to move")),
			mcp.WithNumber("over_task_id", mcp.Required(), mcp.Description("Task whose position is taken")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, taskID, errResult := boardAndTask(req)
			if errResult != nil {
				return errResult, nil
			}
			overID, err := req.RequireInt("over_task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			board, err := boards.MoveTask(ctx, boardID, taskID, int64(overID))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", board)
		},
	)
}

// boardAndTask reads the required board_id and task_id arguments.
func boardAndTask(req mcp.CallToolRequest) (string, int64, *mcp.CallToolResult) {
	boardID, err := req.RequireString("board_id")
	if err != nil {
		return "", 0, mcp.NewToolResultError(err.Error())
	}
	taskID, err := req.RequireInt("task_id")
	if err != nil {
		return "", 0, mcp.NewToolResultError(err.Error())
	}
	return boardID, int64(taskID), nil
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
