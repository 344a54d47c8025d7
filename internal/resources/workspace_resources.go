package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
)

const (
	WorkspaceURI = "notion://workspace"
	SelfURI      = "notion://self"

	mimeJSON = "application/json"
)

// WorkspaceInfo is the body of the workspace resource.
type WorkspaceInfo struct {
	Account       string `json:"account"`
	Source        string `json:"source"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`
	BotID         string `json:"bot_id,omitempty"`
	OwnerType     string `json:"owner_type,omitempty"`
	OwnerUserID   string `json:"owner_user_id,omitempty"`
}

// Credential sources reported by the workspace resource.
const (
	SourceOAuth = "oauth"
	SourceToken = "integration_token"
)

// RegisterWorkspaceResources registers the session-scoped Notion resources.
func RegisterWorkspaceResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("MCP server and server context are required")
	}

	workspace := mcp.NewResource(
		WorkspaceURI,
		"Connected Notion Workspace",
		mcp.WithResourceDescription("The Notion workspace and integration this session acts as"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(workspace, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(request.Params.URI, workspaceInfo(ctx))
	})

	self := mcp.NewResource(
		SelfURI,
		"Integration Bot User",
		mcp.WithResourceDescription("The Notion bot user behind the current credential"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(self, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSelf(ctx, request, sc)
	})

	return nil
}

// workspaceInfo reads the installation from the request grant. Stdio
// sessions have no grant and run on the integration token.
func workspaceInfo(ctx context.Context) WorkspaceInfo {
	grant, ok := oauth.GrantFromContext(ctx)
	if !ok {
		return WorkspaceInfo{Account: server.DefaultAccount, Source: SourceToken}
	}
	return WorkspaceInfo{
		Account:       grant.UserID,
		Source:        SourceOAuth,
		WorkspaceID:   grant.Props[notion.PropWorkspaceID],
		WorkspaceName: grant.Props[notion.PropWorkspaceName],
		BotID:         grant.Props[notion.PropBotID],
		OwnerType:     grant.Props[notion.PropOwnerType],
		OwnerUserID:   grant.Props[notion.PropOwnerUserID],
	}
}

func handleSelf(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client, err := sc.NotionClient(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := client.GetSelf(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: mimeJSON,
			Text:     string(raw),
		},
	}, nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		},
	}, nil
}
