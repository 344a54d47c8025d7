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

func registerUserTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listUsersTool := mcp.NewTool("notion_list_users", withOptions([]mcp.ToolOption{
		mcp.WithDescription("List the people and bots in the workspace"),
	}, paginationOptions())...)
	addTool(s, sc, listUsersTool, instrumentation.OperationUsersList, "list users",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			page, err := common.PaginationArgs(args)
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.ListUsers(ctx, page)
		})

	getUserTool := mcp.NewTool("notion_get_user",
		mcp.WithDescription("Retrieve a user by ID"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("The ID of the user"),
		),
	)
	addTool(s, sc, getUserTool, instrumentation.OperationUsersGet, "get user",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "user_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.GetUser(ctx, id)
		})

	getSelfTool := mcp.NewTool("notion_get_self",
		mcp.WithDescription("Retrieve the bot user of this integration, including its workspace"),
	)
	addTool(s, sc, getSelfTool, instrumentation.OperationUsersMe, "get bot user",
		func(ctx context.Context, client *notion.Client, _ map[string]any) (json.RawMessage, error) {
			return client.GetSelf(ctx)
		})
}
