package instrumentation

import "strings"

// knownPaths are the routes served by the HTTP transport. Anything else is
// recorded as "other" so that scanners probing random URLs cannot grow the
// label set without bound.
var knownPaths = map[string]struct{}{
	"/mcp":                                    {},
	"/authorize":                              {},
	"/callback":                               {},
	"/token":                                  {},
	"/register":                               {},
	"/revoke":                                 {},
	"/healthz":                                {},
	"/readyz":                                 {},
	"/health":                                 {},
	"/.well-known/oauth-authorization-server": {},
	"/.well-known/oauth-protected-resource":   {},
}

// NormalizePath maps a request path to a bounded metric label.
//
// Example:
//
//	NormalizePath("/authorize")   // "/authorize"
//	NormalizePath("/authorize/")  // "/authorize"
//	NormalizePath("/wp-login.php") // "other"
func NormalizePath(path string) string {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

// Notion API operation names used for metrics and spans.
const (
	OperationSearch         = "search"
	OperationPagesGet       = "pages.get"
	OperationPagesCreate    = "pages.create"
	OperationPagesUpdate    = "pages.update"
	OperationDatabasesGet   = "databases.get"
	OperationDatabasesQuery = "databases.query"
	OperationBlocksChildren = "blocks.children.list"
	OperationBlocksAppend   = "blocks.children.append"
	OperationBlocksDelete   = "blocks.delete"
	OperationUsersList      = "users.list"
	OperationUsersGet       = "users.get"
	OperationUsersMe        = "users.me"
	OperationCommentsCreate = "comments.create"
	OperationCommentsList   = "comments.list"
	OperationOAuthExchange  = "oauth.token"
)
