package notion_tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
	"github.com/nedasvi/notion-mcp-server-remote/internal/tools/common"
)

func registerSearchTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	searchTool := mcp.NewTool("notion_search", withOptions([]mcp.ToolOption{
		mcp.WithDescription("Search pages and databases shared with the integration by title"),
		mcp.WithString("query",
			mcp.Description("Text to match against page and database titles. Empty returns everything shared."),
		),
		mcp.WithObject("filter",
			mcp.Description(`Limit results to one object type, e.g. {"property":"object","value":"page"}`),
		),
		mcp.WithObject("sort",
			mcp.Description(`Sort order, e.g. {"direction":"descending","timestamp":"last_edited_time"}`),
		),
	}, paginationOptions())...)

	addTool(s, sc, searchTool, instrumentation.OperationSearch, "search Notion",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			filter, err := common.JSONArg(args, "filter")
			if err != nil {
				return nil, invalidArg(err)
			}
			sort, err := common.JSONArg(args, "sort")
			if err != nil {
				return nil, invalidArg(err)
			}
			page, err := common.PaginationArgs(args)
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.Search(ctx, notion.SearchParams{
				Query:      common.StringArg(args, "query"),
				Filter:     filter,
				Sort:       sort,
				Pagination: page,
			})
		})
}
