package notion

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
)

// DefaultAuthorizeURL and DefaultTokenURL are Notion's public OAuth endpoints.
const (
	DefaultAuthorizeURL = "https://api.notion.com/v1/oauth/authorize"
	DefaultTokenURL     = "https://api.notion.com/v1/oauth/token"
)

// OwnerUser asks Notion to install the integration for a user rather than
// a workspace.
const OwnerUser = "user"

// ErrInvalidState is returned when a callback state cannot be decoded.
var ErrInvalidState = errors.New("invalid state parameter")

// AuthorizeParams describes one redirect to Notion's consent screen.
type AuthorizeParams struct {
	BaseURL     string
	ClientID    string
	RedirectURI string
	// State is omitted from the URL when empty
	State string
	// Owner defaults to OwnerUser
	Owner string
}

// AuthorizeURL builds the upstream authorize URL with client_id,
// redirect_uri, response_type=code, owner and (when set) state.
func AuthorizeURL(p AuthorizeParams) (string, error) {
	if p.BaseURL == "" {
		return "", fmt.Errorf("authorize base URL is required")
	}
	if p.ClientID == "" {
		return "", fmt.Errorf("client id is required")
	}
	owner := p.Owner
	if owner == "" {
		owner = OwnerUser
	}

	cfg := oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: p.RedirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: p.BaseURL},
	}
	u := cfg.AuthCodeURL(p.State, oauth2.SetAuthURLParam("owner", owner))
	if p.State == "" {
		return stripEmptyState(u)
	}
	return u, nil
}

// stripEmptyState removes a "state=" pair that some x/oauth2 releases emit
// for an empty state.
func stripEmptyState(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid authorize URL: %w", err)
	}
	q := u.Query()
	if q.Has("state") && q.Get("state") == "" {
		q.Del("state")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// EncodeState packs an MCP authorization request into the upstream state
// parameter: base64(JSON(request)).
func EncodeState(req *oauth.AuthorizationRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("authorization request is required")
	}
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeState reverses EncodeState. Any failure is ErrInvalidState.
func DecodeState(state string) (*oauth.AuthorizationRequest, error) {
	if state == "" {
		return nil, ErrInvalidState
	}
	b, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	var req *oauth.AuthorizationRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if req == nil || req.ClientID == "" {
		return nil, ErrInvalidState
	}
	return req, nil
}
