package server

import (
	"encoding/base64"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/nedasvi/notion-mcp-server-remote/internal/approval"
	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
)

const (
	testBaseURL        = "http://localhost:8080"
	testClientRedirect = "http://localhost:3000/callback"
	testNotionClientID = "notion-client-id"
	testNotionSecret   = "notion-client-secret"
	testUpstreamAuth   = "https://api.notion.com/v1/oauth/authorize"
	testAccessToken    = "secret_upstream_access_token"
)

const successfulExchange = `{
	"access_token": "` + testAccessToken + `",
	"token_type": "bearer",
	"bot_id": "bot-123",
	"workspace_id": "ws-456",
	"workspace_name": "Acme",
	"owner": {"type": "user", "user": {"object": "user", "id": "user-789", "name": "Ada"}}
}`

type testEnv struct {
	oauth    *oauth.Handler
	consent  *ConsentHandler
	server   *OAuthHTTPServer
	router   http.Handler
	tokens   *TokenProvider
	key      approval.SigningKey
	upstream *httptest.Server
	clientID string
}

// newTestEnv builds the full HTTP surface against a fake Notion token
// endpoint served by upstream.
func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	oauthHandler, err := oauth.NewHandler(oauth.Config{
		Issuer: testBaseURL,
		Security: oauth.SecurityConfig{
			AllowPublicClientRegistration: true,
		},
	})
	require.NoError(t, err)
	t.Cleanup(oauthHandler.Stop)

	ts := httptest.NewServer(upstream)
	t.Cleanup(ts.Close)

	exchanger, err := notion.NewOAuthClient(notion.OAuthConfig{
		ClientID:     testNotionClientID,
		ClientSecret: testNotionSecret,
		TokenURL:     ts.URL,
	})
	require.NoError(t, err)

	key, err := approval.NewSigningKey("test-cookie-secret")
	require.NoError(t, err)

	store := memory.New()
	t.Cleanup(store.Stop)
	tokens := NewTokenProvider(store)

	consent, err := NewConsentHandler(ConsentConfig{
		BaseURL:      testBaseURL,
		AuthorizeURL: testUpstreamAuth,
		SigningKey:   key,
		AuthServer:   oauthHandler,
		Exchanger:    exchanger,
		Tokens:       tokens,
	})
	require.NoError(t, err)

	mcpSrv := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithToolCapabilities(true))
	srv, err := NewOAuthHTTPServer(mcpSrv, oauthHandler, consent, HTTPServerConfig{BaseURL: testBaseURL})
	require.NoError(t, err)
	srv.SetHealthChecker(NewHealthChecker(nil, oauthHandler, "test"))

	client, err := oauthHandler.Clients().RegisterClient(&oauth.ClientRegistrationRequest{
		RedirectURIs:            []string{testClientRedirect},
		TokenEndpointAuthMethod: oauth.AuthMethodNone,
		ClientName:              "Acme Agent",
	}, "192.0.2.1")
	require.NoError(t, err)

	return &testEnv{
		oauth:    oauthHandler,
		consent:  consent,
		server:   srv,
		router:   srv.Handler(),
		tokens:   tokens,
		key:      key,
		upstream: ts,
		clientID: client.ClientID,
	}
}

func notionTokenEndpoint(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// authorizeQuery returns a valid MCP /authorize query for clientID.
func authorizeQuery(clientID, verifier string) url.Values {
	return url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {testClientRedirect},
		"state":                 {"client-state"},
		"scope":                 {"notion"},
		"code_challenge":        {oauth.GenerateCodeChallenge(verifier)},
		"code_challenge_method": {oauth.CodeChallengeMethodS256},
	}
}

func (e *testEnv) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(t *testing.T, path string, query url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	target := path
	if query != nil {
		target += "?" + query.Encode()
	}
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return e.do(t, r)
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return e.do(t, r)
}

// hiddenState extracts the dialog's hidden state field.
func hiddenState(t *testing.T, body string) string {
	t.Helper()
	const marker = `name="state" value="`
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "dialog has no state field")
	rest := body[i+len(marker):]
	end := strings.IndexByte(rest, '"')
	require.GreaterOrEqual(t, end, 0)
	return html.UnescapeString(rest[:end])
}

func consentCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == approval.CookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", approval.CookieName)
	return nil
}

func httptestRequest(method, target, jsonBody string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(jsonBody))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json, text/event-stream")
	return r
}

func encodeStd(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
