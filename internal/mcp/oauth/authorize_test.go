package oauth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChallenge = GenerateCodeChallenge(strings.Repeat("v", 43))

func TestParseAuthRequest_Valid(t *testing.T) {
	h := newTestHandler(t)
	client := registerPublicClient(t, h)

	req, err := parseAuth(t, h, authorizeQuery(client.ClientID, testChallenge))
	require.NoError(t, err)
	assert.Equal(t, "code", req.ResponseType)
	assert.Equal(t, client.ClientID, req.ClientID)
	assert.Equal(t, "http://localhost:3000/callback", req.RedirectURI)
	assert.Equal(t, []string{"read", "write"}, req.Scope)
	assert.Equal(t, "client-state", req.State)
	assert.Equal(t, testChallenge, req.CodeChallenge)
	assert.Equal(t, "S256", req.CodeChallengeMethod)
}

func TestParseAuthRequest_DefaultsSingleRedirectURI(t *testing.T) {
	h := newTestHandler(t)
	client := registerPublicClient(t, h)

	q := authorizeQuery(client.ClientID, testChallenge)
	q.Del("redirect_uri")
	req, err := parseAuth(t, h, q)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/callback", req.RedirectURI)
}

func TestParseAuthRequest_Errors(t *testing.T) {
	h := newTestHandler(t, func(c *Config) { c.SupportedScopes = []string{"read", "write"} })
	client := registerPublicClient(t, h)

	tests := []struct {
		name     string
		mutate   func(url.Values)
		wantCode string
	}{
		{"missing client_id", func(q url.Values) { q.Del("client_id") }, "invalid_request"},
		{"unknown client", func(q url.Values) { q.Set("client_id", "nope") }, "invalid_client"},
		{"unregistered redirect", func(q url.Values) { q.Set("redirect_uri", "http://localhost:3000/evil") }, "invalid_redirect_uri"},
		{"wrong response type", func(q url.Values) { q.Set("response_type", "token") }, "unsupported_response_type"},
		{"missing state", func(q url.Values) { q.Del("state") }, "invalid_request"},
		{"missing challenge", func(q url.Values) { q.Del("code_challenge") }, "invalid_request"},
		{"plain method", func(q url.Values) { q.Set("code_challenge_method", "plain") }, "invalid_request"},
		{"short challenge", func(q url.Values) { q.Set("code_challenge", "abc") }, "invalid_request"},
		{"unsupported scope", func(q url.Values) { q.Set("scope", "admin") }, "invalid_scope"},
		{"foreign resource", func(q url.Values) { q.Set("resource", "https://other.example.com") }, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := authorizeQuery(client.ClientID, testChallenge)
			tt.mutate(q)
			_, err := parseAuth(t, h, q)
			require.Error(t, err)
			var oe *OAuthError
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, tt.wantCode, oe.Code)
			assert.Equal(t, http.StatusBadRequest, oe.Status)
		})
	}
}

func TestParseAuthRequest_StateOptionalWhenAllowed(t *testing.T) {
	h := newTestHandler(t, func(c *Config) { c.Security.AllowInsecureAuthWithoutState = true })
	client := registerPublicClient(t, h)
	q := authorizeQuery(client.ClientID, testChallenge)
	q.Del("state")
	_, err := parseAuth(t, h, q)
	assert.NoError(t, err)
}

func TestLookupClient(t *testing.T) {
	h := newTestHandler(t)
	client := registerPublicClient(t, h)

	got, err := h.LookupClient(t.Context(), client.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "Test Client", got.ClientName)

	_, err = h.LookupClient(t.Context(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, AsOAuthError(err).Status)
}

func TestCompleteAuthorization_Redirect(t *testing.T) {
	h := newTestHandler(t)
	client := registerPublicClient(t, h)
	req, err := parseAuth(t, h, authorizeQuery(client.ClientID, testChallenge))
	require.NoError(t, err)

	redirect, err := h.CompleteAuthorization(t.Context(), CompleteRequest{Request: req, UserID: "bot-1", Label: "Acme"})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", u.Host)
	assert.Equal(t, "/callback", u.Path)
	assert.NotEmpty(t, u.Query().Get("code"))
	assert.Equal(t, "client-state", u.Query().Get("state"))

	codes, _, _ := h.grants.Counts()
	assert.Equal(t, 1, codes)
}

func TestCompleteAuthorization_RevalidatesRequest(t *testing.T) {
	h := newTestHandler(t)
	client := registerPublicClient(t, h)
	good, err := parseAuth(t, h, authorizeQuery(client.ClientID, testChallenge))
	require.NoError(t, err)

	tests := []struct {
		name     string
		mutate   func(*AuthorizationRequest, *CompleteRequest)
		wantCode string
	}{
		{"nil request", func(_ *AuthorizationRequest, c *CompleteRequest) { c.Request = nil }, "invalid_request"},
		{"no user", func(_ *AuthorizationRequest, c *CompleteRequest) { c.UserID = "" }, "invalid_request"},
		{"forged client", func(r *AuthorizationRequest, _ *CompleteRequest) { r.ClientID = "forged" }, "invalid_client"},
		{"forged redirect", func(r *AuthorizationRequest, _ *CompleteRequest) { r.RedirectURI = "https://attacker.example/cb" }, "invalid_redirect_uri"},
		{"dropped challenge", func(r *AuthorizationRequest, _ *CompleteRequest) { r.CodeChallenge = "" }, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := *good
			complete := CompleteRequest{Request: &req, UserID: "bot-1"}
			tt.mutate(&req, &complete)
			_, err := h.CompleteAuthorization(t.Context(), complete)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, AsOAuthError(err).Code)
		})
	}
}
