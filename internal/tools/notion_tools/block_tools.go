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

func registerBlockTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	getChildrenTool := mcp.NewTool("notion_get_block_children", withOptions([]mcp.ToolOption{
		mcp.WithDescription("List the child blocks of a block or page. A page's content is its children."),
		mcp.WithString("block_id",
			mcp.Required(),
			mcp.Description("The ID of the block or page"),
		),
	}, paginationOptions())...)
	addTool(s, sc, getChildrenTool, instrumentation.OperationBlocksChildren, "get block children",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "block_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			page, err := common.PaginationArgs(args)
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.GetBlockChildren(ctx, id, page)
		})

	if readOnly {
		return
	}

	appendTool := mcp.NewTool("notion_append_block_children",
		mcp.WithDescription("Append blocks to the end of a block or page"),
		mcp.WithString("block_id",
			mcp.Required(),
			mcp.Description("The ID of the parent block or page"),
		),
		mcp.WithArray("children",
			mcp.Required(),
			mcp.Description(`Block objects, e.g. [{"object":"block","type":"paragraph","paragraph":{"rich_text":[{"text":{"content":"Hi"}}]}}]`),
		),
	)
	addTool(s, sc, appendTool, instrumentation.OperationBlocksAppend, "append block children",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "block_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			children, err := common.JSONArg(args, "children")
			if err != nil {
				return nil, invalidArg(err)
			}
			if err := children.MustArray("children"); err != nil {
				return nil, invalidArg(err)
			}
			return client.AppendBlockChildren(ctx, id, children)
		})

	deleteTool := mcp.NewTool("notion_delete_block",
		mcp.WithDescription("Move a block to trash"),
		mcp.WithString("block_id",
			mcp.Required(),
			mcp.Description("The ID of the block"),
		),
	)
	addTool(s, sc, deleteTool, instrumentation.OperationBlocksDelete, "delete block",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "block_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.DeleteBlock(ctx, id)
		})
}
