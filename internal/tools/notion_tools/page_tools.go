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

func registerPageTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	getPageTool := mcp.NewTool("notion_get_page",
		mcp.WithDescription("Retrieve a page's properties. Use notion_get_block_children for its content."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The ID of the page"),
		),
	)
	addTool(s, sc, getPageTool, instrumentation.OperationPagesGet, "get page",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "page_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			return client.GetPage(ctx, id)
		})

	if readOnly {
		return
	}

	createPageTool := mcp.NewTool("notion_create_page",
		mcp.WithDescription("Create a page under a parent page or as a row in a database"),
		mcp.WithObject("parent",
			mcp.Required(),
			mcp.Description(`Parent, e.g. {"page_id":"..."} or {"database_id":"..."}`),
		),
		mcp.WithObject("properties",
			mcp.Required(),
			mcp.Description("Page properties. Under a page parent only title is allowed; under a database they must match its schema."),
		),
		mcp.WithArray("children",
			mcp.Description("Block objects to use as the page content"),
		),
		mcp.WithObject("icon",
			mcp.Description("Page icon as an emoji or external file object"),
		),
		mcp.WithObject("cover",
			mcp.Description("Page cover as an external file object"),
		),
	)
	addTool(s, sc, createPageTool, instrumentation.OperationPagesCreate, "create page",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			var p notion.CreatePageParams
			var err error
			for key, dst := range map[string]*notion.JSONValue{
				"parent":     &p.Parent,
				"properties": &p.Properties,
				"children":   &p.Children,
				"icon":       &p.Icon,
				"cover":      &p.Cover,
			} {
				if *dst, err = common.JSONArg(args, key); err != nil {
					return nil, invalidArg(err)
				}
			}
			if err := p.Parent.MustObject("parent"); err != nil {
				return nil, invalidArg(err)
			}
			if err := p.Properties.MustObject("properties"); err != nil {
				return nil, invalidArg(err)
			}
			return client.CreatePage(ctx, p)
		})

	updatePageTool := mcp.NewTool("notion_update_page",
		mcp.WithDescription("Update a page's properties, icon or cover, or archive it"),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The ID of the page"),
		),
		mcp.WithObject("properties",
			mcp.Description("Properties to change, keyed by name or id"),
		),
		mcp.WithBoolean("archived",
			mcp.Description("Set to true to move the page to trash, false to restore it"),
		),
		mcp.WithObject("icon",
			mcp.Description("New page icon"),
		),
		mcp.WithObject("cover",
			mcp.Description("New page cover"),
		),
	)
	addTool(s, sc, updatePageTool, instrumentation.OperationPagesUpdate, "update page",
		func(ctx context.Context, client *notion.Client, args map[string]any) (json.RawMessage, error) {
			id, err := common.RequiredStringArg(args, "page_id")
			if err != nil {
				return nil, invalidArg(err)
			}
			p := notion.UpdatePageParams{PageID: id}
			if p.Archived, err = common.BoolArg(args, "archived"); err != nil {
				return nil, invalidArg(err)
			}
			for key, dst := range map[string]*notion.JSONValue{
				"properties": &p.Properties,
				"icon":       &p.Icon,
				"cover":      &p.Cover,
			} {
				if *dst, err = common.JSONArg(args, key); err != nil {
					return nil, invalidArg(err)
				}
			}
			if p.Properties.IsZero() && p.Archived == nil && p.Icon.IsZero() && p.Cover.IsZero() {
				return nil, invalidArg(errNothingToUpdate)
			}
			return client.UpdatePage(ctx, p)
		})
}
