package common

import (
	"context"

	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
)

// Identity is the Notion installation a tool call runs as.
type Identity struct {
	UserID      string
	WorkspaceID string
}

// IdentityFromContext returns the installation bound to the request.
//
// Priority order:
//  1. The grant set by the OAuth middleware (HTTP transport)
//  2. server.DefaultAccount (stdio transport, NOTION_TOKEN)
func IdentityFromContext(ctx context.Context) Identity {
	if grant, ok := oauth.GrantFromContext(ctx); ok && grant.UserID != "" {
		return Identity{
			UserID:      grant.UserID,
			WorkspaceID: grant.Props[notion.PropWorkspaceID],
		}
	}
	return Identity{UserID: server.DefaultAccount}
}

// resourceArgs are the argument names that identify the Notion object a
// tool targets, in lookup order.
var resourceArgs = []string{"page_id", "database_id", "block_id", "user_id", "discussion_id"}

// ResourceIDFromArgs returns the first non-empty resource id argument.
func ResourceIDFromArgs(args map[string]any) string {
	for _, key := range resourceArgs {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
