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

func registerCommentTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	listCommentsTool := mcp.NewTool("notion_list_comments", withOptions([]mcp.ToolOption{
		mcp.WithDescription("List unresolved comments on a page or block"),
		mcp.WithString("block_id",
			mcp.Required(),
			mcp.Description("The ID of the page or block"),
		),
	}, paginationOptions())...)
	addTool(s, sc, listCommentsTool, instrumentation.OperationCommentsList, "list comments",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "block_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			page, err := common.PaginationArgs(args)
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.ListComments(ctx, id, page)
		})

	if readOnly {
		return
	}

	createCommentTool := mcp.NewTool("notion_create_comment",
		mcp.WithDescription("Comment on a page, or reply in an existing discussion"),
		mcp.WithString("page_id",
			mcp.Description("Page to start a new discussion on. Exactly one of page_id and discussion_id is required."),
		),
		mcp.WithString("discussion_id",
			mcp.Description("Discussion thread to reply in"),
		),
		mcp.WithArray("rich_text",
			mcp.Required(),
			mcp.Description(`Rich text objects, e.g. [{"text":{"content":"Looks good"}}]`),
		),
	)
	addTool(s, sc, createCommentTool, instrumentation.OperationCommentsCreate, "create comment",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			p := notion.CreateCommentParams{
				PageID:       common.StringArg(args, "page_id"),
				DiscussionID: common.StringArg(args, "discussion_id"),
			}
			if (p.PageID == "") == (p.DiscussionID == "") {
				return nil, invalidArg(errCommentTarget)
			}
			var err error
			if p.RichText, err = common.JSONArg(args, "rich_text"); err != nil {
				return nil, invalidArg(err)
			}
			if err := p.RichText.MustArray("rich_text"); err != nil {
				return nil, invalidArg(err)
			}
			return client.CreateComment(ctx, p)
		})
}
