package approval

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	htmlpkg "html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingRequest struct {
	ClientID string   `json:"clientId"`
	Scope    []string `json:"scope"`
	State    string   `json:"state"`
}

func testState(t *testing.T, clientID string) DialogState {
	t.Helper()
	state, err := NewDialogState(pendingRequest{ClientID: clientID, Scope: []string{"read"}, State: "xyz"})
	require.NoError(t, err)
	return state
}

func TestRenderApprovalDialog(t *testing.T) {
	state := testState(t, "abc")

	body, err := RenderApprovalDialog(DialogOptions{
		Client: ClientInfo{
			ClientName:   "Claude Desktop",
			ClientURI:    "https://claude.ai",
			RedirectURIs: []string{"https://claude.ai/callback"},
		},
		Server: ServerInfo{Name: "Notion MCP", Logo: "https://example.com/logo.png", Description: "Access your workspace"},
		State:  state,
	})
	require.NoError(t, err)

	html := string(body)
	assert.Contains(t, html, "Claude Desktop")
	assert.Contains(t, html, "Notion MCP")
	assert.Contains(t, html, `name="approved" value="true"`)
	assert.Contains(t, html, `https://claude.ai/callback`)
	assert.Contains(t, html, `src="https://example.com/logo.png"`)

	encoded, err := encodeDialogState(state)
	require.NoError(t, err)
	m := hiddenState.FindStringSubmatch(html)
	require.Len(t, m, 2)
	assert.Equal(t, encoded, htmlpkg.UnescapeString(m[1]))
}

var hiddenState = regexp.MustCompile(`name="state" value="([^"]*)"`)

func TestRenderApprovalDialog_EscapesClientMetadata(t *testing.T) {
	body, err := RenderApprovalDialog(DialogOptions{
		Client: ClientInfo{
			ClientName: `<script>alert("x")</script>`,
			ClientURI:  `javascript:alert(1)`,
			Contacts:   []string{`"><img src=x onerror=alert(1)>`},
		},
		Server: ServerInfo{Name: "Notion MCP"},
		State:  testState(t, "abc"),
	})
	require.NoError(t, err)

	html := string(body)
	assert.NotContains(t, html, `<script>alert`)
	assert.NotContains(t, html, `<img src=x`)
	assert.NotContains(t, html, `href="javascript:`)
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderApprovalDialog_DefaultName(t *testing.T) {
	body, err := RenderApprovalDialog(DialogOptions{Server: ServerInfo{Name: "s"}, State: testState(t, "abc")})
	require.NoError(t, err)
	assert.Contains(t, string(body), "Unknown MCP Client")
}

func TestWriteApprovalDialog_Headers(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteApprovalDialog(rec, DialogOptions{Server: ServerInfo{Name: "s"}, State: testState(t, "abc")}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "form-action 'self';")
}

func TestWriteApprovalDialog_UpstreamFormAction(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteApprovalDialog(rec, DialogOptions{
		Server:         ServerInfo{Name: "s"},
		State:          testState(t, "abc"),
		UpstreamOrigin: "https://api.notion.com",
	}))

	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "form-action 'self' https://api.notion.com;")
	assert.Contains(t, csp, "frame-ancestors 'none'")
}

func postForm(t *testing.T, form url.Values, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestParseApprovalSubmission(t *testing.T) {
	key := mustKey(t, "test-secret")
	state := testState(t, "abc")
	encoded, err := encodeDialogState(state)
	require.NoError(t, err)

	sub, err := ParseApprovalSubmission(postForm(t, url.Values{"approved": {"true"}, "state": {encoded}}), key)
	require.NoError(t, err)

	assert.JSONEq(t, string(state.OAuthReqInfo), string(sub.State.OAuthReqInfo))
	assert.Equal(t, "abc", sub.State.ClientID())

	clients, ok := DecodeApprovedClients(sub.Cookie.Value, key)
	require.True(t, ok)
	assert.Equal(t, []string{"abc"}, clients)
	assert.True(t, sub.Cookie.HttpOnly)
	assert.True(t, sub.Cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, sub.Cookie.SameSite)
	assert.Equal(t, CookieMaxAge, sub.Cookie.MaxAge)
	assert.Equal(t, "/", sub.Cookie.Path)
}

func TestParseApprovalSubmission_StateRoundTripsBytes(t *testing.T) {
	key := mustKey(t, "test-secret")
	raw := json.RawMessage(`{"clientId":"abc","scope":["a","b"],"extra":{"n":1.50}}`)
	encoded, err := encodeDialogState(DialogState{OAuthReqInfo: raw})
	require.NoError(t, err)

	sub, err := ParseApprovalSubmission(postForm(t, url.Values{"approved": {"true"}, "state": {encoded}}), key)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(sub.State.OAuthReqInfo))
}

func TestParseApprovalSubmission_AppendsToExistingCookie(t *testing.T) {
	key := mustKey(t, "test-secret")
	existing, err := EncodeApprovedClients([]string{"old", "abc"}, key)
	require.NoError(t, err)

	encoded, err := encodeDialogState(testState(t, "new"))
	require.NoError(t, err)
	sub, err := ParseApprovalSubmission(
		postForm(t, url.Values{"approved": {"true"}, "state": {encoded}}, &http.Cookie{Name: CookieName, Value: existing}),
		key,
	)
	require.NoError(t, err)

	clients, ok := DecodeApprovedClients(sub.Cookie.Value, key)
	require.True(t, ok)
	assert.Equal(t, []string{"old", "abc", "new"}, clients)

	// Approving an already approved client does not duplicate it.
	encoded, err = encodeDialogState(testState(t, "abc"))
	require.NoError(t, err)
	sub, err = ParseApprovalSubmission(
		postForm(t, url.Values{"approved": {"true"}, "state": {encoded}}, &http.Cookie{Name: CookieName, Value: existing}),
		key,
	)
	require.NoError(t, err)
	clients, _ = DecodeApprovedClients(sub.Cookie.Value, key)
	assert.Equal(t, []string{"old", "abc"}, clients)
}

func TestParseApprovalSubmission_TamperedCookieResets(t *testing.T) {
	key := mustKey(t, "test-secret")
	forged, err := EncodeApprovedClients([]string{"evil"}, mustKey(t, "attacker"))
	require.NoError(t, err)

	encoded, err := encodeDialogState(testState(t, "abc"))
	require.NoError(t, err)
	sub, err := ParseApprovalSubmission(
		postForm(t, url.Values{"approved": {"true"}, "state": {encoded}}, &http.Cookie{Name: CookieName, Value: forged}),
		key,
	)
	require.NoError(t, err)

	clients, ok := DecodeApprovedClients(sub.Cookie.Value, key)
	require.True(t, ok)
	assert.Equal(t, []string{"abc"}, clients)
}

func TestParseApprovalSubmission_Rejected(t *testing.T) {
	key := mustKey(t, "test-secret")
	valid, err := encodeDialogState(testState(t, "abc"))
	require.NoError(t, err)
	noClient, err := encodeDialogState(testState(t, ""))
	require.NoError(t, err)

	tests := []struct {
		name string
		form url.Values
	}{
		{"approved false", url.Values{"approved": {"false"}, "state": {valid}}},
		{"approved missing", url.Values{"state": {valid}}},
		{"approved TRUE", url.Values{"approved": {"TRUE"}, "state": {valid}}},
		{"approved 1", url.Values{"approved": {"1"}, "state": {valid}}},
		{"state missing", url.Values{"approved": {"true"}}},
		{"state not base64", url.Values{"approved": {"true"}, "state": {"%%%"}}},
		{"state not json", url.Values{"approved": {"true"}, "state": {base64.StdEncoding.EncodeToString([]byte("nope"))}}},
		{"state without request", url.Values{"approved": {"true"}, "state": {base64.StdEncoding.EncodeToString([]byte(`{}`))}}},
		{"state without client", url.Values{"approved": {"true"}, "state": {noClient}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := ParseApprovalSubmission(postForm(t, tt.form), key)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrApprovalDenied))
			assert.Nil(t, sub)
		})
	}
}
