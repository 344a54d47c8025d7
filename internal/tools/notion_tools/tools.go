package notion_tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
	"github.com/nedasvi/notion-mcp-server-remote/internal/tools/common"
)

// notionCallFunc performs one Notion request for a tool call.
type notionCallFunc func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error)

var (
	errNothingToUpdate = errors.New("provide at least one of properties, archived, icon or cover")
	errCommentTarget   = errors.New("exactly one of page_id and discussion_id is required")
)

// argError marks a bad tool argument so it is reported as given.
type argError struct{ error }

func invalidArg(err error) error {
	return argError{err}
}

// RegisterNotionTools registers the Notion tools with the MCP server. In
// read-only mode tools that create, change or delete content are left out.
func RegisterNotionTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	registerSearchTools(s, sc)
	registerPageTools(s, sc, readOnly)
	registerDatabaseTools(s, sc)
	registerBlockTools(s, sc, readOnly)
	registerUserTools(s, sc)
	registerCommentTools(s, sc, readOnly)
	return nil
}

// addTool registers tool with the call wrapped in client resolution and
// instrumentation. action names the call in error messages.
func addTool(s *mcpserver.MCPServer, sc *server.ServerContext, tool mcp.Tool, operation, action string, call notionCallFunc) {
	logger := logging.WithTool(sc.Logger(), tool.Name)
	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := sc.NotionClient(ctx)
		if err != nil {
			return common.ErrorResult(action, err), nil
		}

		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		raw, err := call(ctx, client, args)
		if err != nil {
			var bad argError
			if errors.As(err, &bad) {
				return mcp.NewToolResultError(bad.Error()), nil
			}
			logger.DebugContext(ctx, "Notion request failed", logging.Operation(operation), logging.Err(err))
			return common.ErrorResult(action, err), nil
		}
		return common.JSONResult(raw), nil
	}
	s.AddTool(tool, common.InstrumentedToolHandler(tool.Name, operation, sc, handler))
}

func paginationOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start_cursor",
			mcp.Description("Cursor from a previous response's next_cursor"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Number of results to return (max 100)"),
		),
	}
}

func withOptions(opts ...[]mcp.ToolOption) []mcp.ToolOption {
	var all []mcp.ToolOption
	for _, o := range opts {
		all = append(all, o...)
	}
	return all
}
