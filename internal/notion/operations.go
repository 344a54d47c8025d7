package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nedasvi/notion-mcp-server-remote/internal/instrumentation"
)

// MaxPageSize is the largest page_size Notion accepts.
const MaxPageSize = 100

// Pagination is the cursor pair shared by list endpoints.
type Pagination struct {
	StartCursor string
	PageSize    int
}

func (p Pagination) query() url.Values {
	q := url.Values{}
	if p.StartCursor != "" {
		q.Set("start_cursor", p.StartCursor)
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(min(p.PageSize, MaxPageSize)))
	}
	return q
}

func (p Pagination) body(b map[string]any) {
	if p.StartCursor != "" {
		b["start_cursor"] = p.StartCursor
	}
	if p.PageSize > 0 {
		b["page_size"] = min(p.PageSize, MaxPageSize)
	}
}

func setJSON(b map[string]any, key string, v JSONValue) {
	if !v.IsZero() {
		b[key] = v
	}
}

// validateID rejects ids that could escape the path segment.
func validateID(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s id is required", kind)
	}
	if strings.ContainsAny(id, "/?#%") {
		return "", fmt.Errorf("%s id %q is malformed", kind, id)
	}
	return id, nil
}

// SearchParams filters POST /search.
type SearchParams struct {
	Query string
	// Filter is e.g. {"property":"object","value":"page"}
	Filter JSONValue
	Sort   JSONValue
	Pagination
}

// Search finds pages and databases shared with the integration.
func (c *Client) Search(ctx context.Context, p SearchParams) (json.RawMessage, error) {
	body := map[string]any{}
	if p.Query != "" {
		body["query"] = p.Query
	}
	setJSON(body, "filter", p.Filter)
	setJSON(body, "sort", p.Sort)
	p.Pagination.body(body)
	return c.do(ctx, instrumentation.OperationSearch, http.MethodPost, "/search", nil, body)
}

// GetPage retrieves a page's properties.
func (c *Client) GetPage(ctx context.Context, pageID string) (json.RawMessage, error) {
	id, err := validateID("page", pageID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, instrumentation.OperationPagesGet, http.MethodGet, "/pages/"+id, nil, nil)
}

// CreatePageParams is the body of POST /pages.
type CreatePageParams struct {
	Parent     JSONValue
	Properties JSONValue
	Children   JSONValue
	Icon       JSONValue
	Cover      JSONValue
}

// CreatePage creates a page under a page or database parent.
func (c *Client) CreatePage(ctx context.Context, p CreatePageParams) (json.RawMessage, error) {
	if err := p.Parent.MustObject("parent"); err != nil {
		return nil, err
	}
	if err := p.Properties.MustObject("properties"); err != nil {
		return nil, err
	}
	if !p.Children.IsZero() {
		if err := p.Children.MustArray("children"); err != nil {
			return nil, err
		}
	}
	body := map[string]any{"parent": p.Parent, "properties": p.Properties}
	setJSON(body, "children", p.Children)
	setJSON(body, "icon", p.Icon)
	setJSON(body, "cover", p.Cover)
	return c.do(ctx, instrumentation.OperationPagesCreate, http.MethodPost, "/pages", nil, body)
}

// UpdatePageParams is the body of PATCH /pages/{id}.
type UpdatePageParams struct {
	PageID     string
	Properties JSONValue
	Archived   *bool
	Icon       JSONValue
	Cover      JSONValue
}

// UpdatePage changes page properties or archives the page.
func (c *Client) UpdatePage(ctx context.Context, p UpdatePageParams) (json.RawMessage, error) {
	id, err := validateID("page", p.PageID)
	if err != nil {
		return nil, err
	}
	body := map[string]any{}
	if !p.Properties.IsZero() {
		if err := p.Properties.MustObject("properties"); err != nil {
			return nil, err
		}
		body["properties"] = p.Properties
	}
	if p.Archived != nil {
		body["archived"] = *p.Archived
	}
	setJSON(body, "icon", p.Icon)
	setJSON(body, "cover", p.Cover)
	if len(body) == 0 {
		return nil, fmt.Errorf("nothing to update")
	}
	return c.do(ctx, instrumentation.OperationPagesUpdate, http.MethodPatch, "/pages/"+id, nil, body)
}

// GetDatabase retrieves a database's schema.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (json.RawMessage, error) {
	id, err := validateID("database", databaseID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, instrumentation.OperationDatabasesGet, http.MethodGet, "/databases/"+id, nil, nil)
}

// QueryDatabaseParams is the body of POST /databases/{id}/query.
type QueryDatabaseParams struct {
	DatabaseID string
	Filter     JSONValue
	Sorts      JSONValue
	Pagination
}

// QueryDatabase lists database rows matching a filter.
func (c *Client) QueryDatabase(ctx context.Context, p QueryDatabaseParams) (json.RawMessage, error) {
	id, err := validateID("database", p.DatabaseID)
	if err != nil {
		return nil, err
	}
	if !p.Filter.IsZero() {
		if err := p.Filter.MustObject("filter"); err != nil {
			return nil, err
		}
	}
	if !p.Sorts.IsZero() {
		if err := p.Sorts.MustArray("sorts"); err != nil {
			return nil, err
		}
	}
	body := map[string]any{}
	setJSON(body, "filter", p.Filter)
	setJSON(body, "sorts", p.Sorts)
	p.Pagination.body(body)
	return c.do(ctx, instrumentation.OperationDatabasesQuery, http.MethodPost, "/databases/"+id+"/query", nil, body)
}

// GetBlockChildren lists the children of a block or page.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string, page Pagination) (json.RawMessage, error) {
	id, err := validateID("block", blockID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, instrumentation.OperationBlocksChildren, http.MethodGet, "/blocks/"+id+"/children", page.query(), nil)
}

// AppendBlockChildren appends blocks; children must be a JSON array.
func (c *Client) AppendBlockChildren(ctx context.Context, blockID string, children JSONValue) (json.RawMessage, error) {
	id, err := validateID("block", blockID)
	if err != nil {
		return nil, err
	}
	if err := children.MustArray("children"); err != nil {
		return nil, err
	}
	body := map[string]any{"children": children}
	return c.do(ctx, instrumentation.OperationBlocksAppend, http.MethodPatch, "/blocks/"+id+"/children", nil, body)
}

// DeleteBlock archives a block.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) (json.RawMessage, error) {
	id, err := validateID("block", blockID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, instrumentation.OperationBlocksDelete, http.MethodDelete, "/blocks/"+id, nil, nil)
}

// ListUsers lists workspace members and bots.
func (c *Client) ListUsers(ctx context.Context, page Pagination) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationUsersList, http.MethodGet, "/users", page.query(), nil)
}

// GetUser retrieves one user.
func (c *Client) GetUser(ctx context.Context, userID string) (json.RawMessage, error) {
	id, err := validateID("user", userID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, instrumentation.OperationUsersGet, http.MethodGet, "/users/"+id, nil, nil)
}

// GetSelf retrieves the integration's bot user.
func (c *Client) GetSelf(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationUsersMe, http.MethodGet, "/users/me", nil, nil)
}

// CreateCommentParams is the body of POST /comments. Exactly one of PageID
// and DiscussionID is set.
type CreateCommentParams struct {
	PageID       string
	DiscussionID string
	RichText     JSONValue
}

// CreateComment adds a comment to a page or replies in a discussion.
func (c *Client) CreateComment(ctx context.Context, p CreateCommentParams) (json.RawMessage, error) {
	if (p.PageID == "") == (p.DiscussionID == "") {
		return nil, fmt.Errorf("exactly one of page_id and discussion_id is required")
	}
	if err := p.RichText.MustArray("rich_text"); err != nil {
		return nil, err
	}
	body := map[string]any{"rich_text": p.RichText}
	if p.PageID != "" {
		id, err := validateID("page", p.PageID)
		if err != nil {
			return nil, err
		}
		body["parent"] = map[string]string{"page_id": id}
	} else {
		body["discussion_id"] = p.DiscussionID
	}
	return c.do(ctx, instrumentation.OperationCommentsCreate, http.MethodPost, "/comments", nil, body)
}

// ListComments lists unresolved comments on a block or page.
func (c *Client) ListComments(ctx context.Context, blockID string, page Pagination) (json.RawMessage, error) {
	id, err := validateID("block", blockID)
	if err != nil {
		return nil, err
	}
	q := page.query()
	q.Set("block_id", id)
	return c.do(ctx, instrumentation.OperationCommentsList, http.MethodGet, "/comments", q, nil)
}
