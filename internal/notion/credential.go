package notion

// Owner types reported by Notion.
const (
	OwnerTypeUser      = "user"
	OwnerTypeWorkspace = "workspace"
)

// Credential is Notion's token response for an installed integration.
// AccessToken is a secret and must never be logged.
type Credential struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type"`
	BotID                string `json:"bot_id"`
	WorkspaceID          string `json:"workspace_id"`
	WorkspaceName        string `json:"workspace_name,omitempty"`
	WorkspaceIcon        string `json:"workspace_icon,omitempty"`
	DuplicatedTemplateID string `json:"duplicated_template_id,omitempty"`
	Owner                Owner  `json:"owner"`
}

// Owner says who installed the integration.
type Owner struct {
	Type      string `json:"type"`
	User      *User  `json:"user,omitempty"`
	Workspace bool   `json:"workspace,omitempty"`
}

// User is the subset of a Notion user object the server relies on.
type User struct {
	Object    string        `json:"object,omitempty"`
	ID        string        `json:"id"`
	Type      string        `json:"type,omitempty"`
	Name      string        `json:"name,omitempty"`
	AvatarURL string        `json:"avatar_url,omitempty"`
	Person    *PersonDetail `json:"person,omitempty"`
}

// PersonDetail holds person-only user fields.
type PersonDetail struct {
	Email string `json:"email,omitempty"`
}

// UserID returns the stable identity of the installation: the bot id, or
// the workspace id when Notion did not send one.
func (c *Credential) UserID() string {
	if c.BotID != "" {
		return c.BotID
	}
	return c.WorkspaceID
}

// Label returns a human-readable name for the installation.
func (c *Credential) Label() string {
	if c.WorkspaceName != "" {
		return c.WorkspaceName
	}
	if c.Owner.User != nil && c.Owner.User.Name != "" {
		return c.Owner.User.Name
	}
	return c.UserID()
}

// Prop keys carried in the MCP grant.
const (
	PropAccessToken   = "accessToken"
	PropBotID         = "botId"
	PropWorkspaceID   = "workspaceId"
	PropWorkspaceName = "workspaceName"
	PropOwnerType     = "ownerType"
	PropOwnerUserID   = "ownerUserId"
)

// Props flattens the credential into the grant props bag.
func (c *Credential) Props() map[string]string {
	props := map[string]string{
		PropAccessToken: c.AccessToken,
		PropBotID:       c.BotID,
		PropWorkspaceID: c.WorkspaceID,
		PropOwnerType:   c.Owner.Type,
	}
	if c.WorkspaceName != "" {
		props[PropWorkspaceName] = c.WorkspaceName
	}
	if c.Owner.User != nil && c.Owner.User.ID != "" {
		props[PropOwnerUserID] = c.Owner.User.ID
	}
	return props
}
