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

func registerDatabaseTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	getDatabaseTool := mcp.NewTool("notion_get_database",
		mcp.WithDescription("Retrieve a database's title and property schema"),
		mcp.WithString("database_id",
			mcp.Required(),
			mcp.Description("The ID of the database"),
		),
	)
	addTool(s, sc, getDatabaseTool, instrumentation.OperationDatabasesGet, "get database",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "database_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.GetDatabase(ctx, id)
		})

	queryDatabaseTool := mcp.NewTool("notion_query_database", withOptions([]mcp.ToolOption{
		mcp.WithDescription("Query the rows of a database with an optional filter and sort"),
		mcp.WithString("database_id",
			mcp.Required(),
			mcp.Description("The ID of the database"),
		),
		mcp.WithObject("filter",
			mcp.Description(`Filter object, e.g. {"property":"Status","status":{"equals":"Done"}}`),
		),
		mcp.WithArray("sorts",
			mcp.Description(`Sort objects, e.g. [{"property":"Due","direction":"ascending"}]`),
		),
	}, paginationOptions())...)
	addTool(s, sc, queryDatabaseTool, instrumentation.OperationDatabasesQuery, "query database",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "database_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			p := notion.QueryDatabaseParams{DatabaseID: id}
			if p.Filter, err = common.JSONArg(args, "filter"); err != nil {
				return nil, invalidArg(err)
			}
			if !p.Filter.IsZero() {
				if err := p.Filter.MustObject("filter"); err != nil {
					return nil, invalidArg(err)
				}
			}
			if p.Sorts, err = common.JSONArg(args, "sorts"); err != nil {
				return nil, invalidArg(err)
			}
			if !p.Sorts.IsZero() {
				if err := p.Sorts.MustArray("sorts"); err != nil {
					return nil, invalidArg(err)
				}
			}
			if p.Pagination, err = common.PaginationArgs(args); err != nil {
				return nil, invalidArg(err)
			}
			return client.QueryDatabase(ctx, p)
		})
}
