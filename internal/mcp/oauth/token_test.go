package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	mu     sync.Mutex
	issued map[string]int
}

func (m *countingMetrics) RecordTokenIssued(_ context.Context, grantType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issued == nil {
		m.issued = map[string]int{}
	}
	m.issued[grantType]++
}

func codeForm(code, verifier, clientID string) url.Values {
	return url.Values{
		"grant_type":    {GrantTypeAuthorizationCode},
		"code":          {code},
		"redirect_uri":  {"http://localhost:3000/callback"},
		"client_id":     {clientID},
		"code_verifier": {verifier},
	}
}

func TestServeToken_AuthorizationCode(t *testing.T) {
	metrics := &countingMetrics{}
	h := newTestHandler(t, func(c *Config) { c.Metrics = metrics })
	code, verifier, clientID := authorizeCode(t, h, map[string]string{"accessToken": "secret_notion"})

	w := postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID))
	tokens := decodeTokens(t, w)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "bearer", tokens.TokenType)
	assert.Equal(t, int64(DefaultAccessTokenTTL.Seconds()), tokens.ExpiresIn)
	assert.Equal(t, "read write", tokens.Scope)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, 1, metrics.issued[GrantTypeAuthorizationCode])

	grant, err := h.grants.LookupAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bot-123", grant.UserID)
	assert.Equal(t, "Acme Workspace", grant.Label)
	assert.Equal(t, clientID, grant.ClientID)
	assert.Equal(t, "secret_notion", grant.Props["accessToken"])
}

func TestServeToken_CodeIsSingleUse(t *testing.T) {
	h := newTestHandler(t)
	code, verifier, clientID := authorizeCode(t, h, nil)

	decodeTokens(t, postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID)))

	w := postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeError(t, w).Error)
}

func TestServeToken_ConcurrentCodeRedemption(t *testing.T) {
	h := newTestHandler(t)
	code, verifier, clientID := authorizeCode(t, h, nil)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID)).Code == http.StatusOK {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestServeToken_AuthorizationCodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(url.Values)
		wantStatus int
		wantCode   string
	}{
		{"wrong verifier", func(f url.Values) { f.Set("code_verifier", strings.Repeat("a", 43)) }, http.StatusBadRequest, "invalid_grant"},
		{"missing verifier", func(f url.Values) { f.Del("code_verifier") }, http.StatusBadRequest, "invalid_grant"},
		{"wrong redirect", func(f url.Values) { f.Set("redirect_uri", "http://localhost:3000/other") }, http.StatusBadRequest, "invalid_grant"},
		{"unknown code", func(f url.Values) { f.Set("code", "bogus") }, http.StatusBadRequest, "invalid_grant"},
		{"missing code", func(f url.Values) { f.Del("code") }, http.StatusBadRequest, "invalid_request"},
		{"unknown client", func(f url.Values) { f.Set("client_id", "ghost") }, http.StatusUnauthorized, "invalid_client"},
		{"no client", func(f url.Values) { f.Del("client_id") }, http.StatusUnauthorized, "invalid_client"},
		{"bad grant type", func(f url.Values) { f.Set("grant_type", "password") }, http.StatusBadRequest, "unsupported_grant_type"},
		{"no grant type", func(f url.Values) { f.Del("grant_type") }, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t)
			code, verifier, clientID := authorizeCode(t, h, nil)
			form := codeForm(code, verifier, clientID)
			tt.mutate(form)

			w := postForm(h.ServeToken, PathToken, form)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Error)
		})
	}
}

func TestServeToken_CodeBoundToClient(t *testing.T) {
	h := newTestHandler(t)
	code, verifier, _ := authorizeCode(t, h, nil)
	other := registerPublicClient(t, h)

	w := postForm(h.ServeToken, PathToken, codeForm(code, verifier, other.ClientID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeError(t, w).Error)
}

func TestServeToken_ConfidentialClient(t *testing.T) {
	h := newTestHandler(t)
	client := registerClient(t, h, ClientRegistrationRequest{
		RedirectURIs: []string{"http://localhost:3000/callback"},
	})
	require.NotEmpty(t, client.ClientSecret)

	verifier, _ := GenerateCodeVerifier()
	req, err := parseAuth(t, h, authorizeQuery(client.ClientID, GenerateCodeChallenge(verifier)))
	require.NoError(t, err)
	redirect, err := h.CompleteAuthorization(t.Context(), CompleteRequest{Request: req, UserID: "bot-9"})
	require.NoError(t, err)
	u, _ := url.Parse(redirect)
	code := u.Query().Get("code")

	form := codeForm(code, verifier, "")
	form.Del("client_id")

	w := postForm(h.ServeToken, PathToken, form, func(r *http.Request) {
		r.SetBasicAuth(client.ClientID, "wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the failed attempt authenticated nothing, so the code is still live
	w = postForm(h.ServeToken, PathToken, form, func(r *http.Request) {
		r.SetBasicAuth(client.ClientID, client.ClientSecret)
	})
	decodeTokens(t, w)
}

func TestServeToken_RefreshRotation(t *testing.T) {
	metrics := &countingMetrics{}
	h := newTestHandler(t, func(c *Config) { c.Metrics = metrics })
	code, verifier, clientID := authorizeCode(t, h, map[string]string{"botId": "bot-123"})
	first := decodeTokens(t, postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID)))

	refreshForm := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {first.RefreshToken},
		"client_id":     {clientID},
	}
	second := decodeTokens(t, postForm(h.ServeToken, PathToken, refreshForm))
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, metrics.issued[GrantTypeRefreshToken])

	_, err := h.grants.LookupAccessToken(first.AccessToken)
	assert.Error(t, err, "old access token should be invalid after rotation")

	grant, err := h.grants.LookupAccessToken(second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bot-123", grant.Props["botId"])

	w := postForm(h.ServeToken, PathToken, refreshForm)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeError(t, w).Error)
}

func TestServeRevoke(t *testing.T) {
	h := newTestHandler(t)
	code, verifier, clientID := authorizeCode(t, h, nil)
	tokens := decodeTokens(t, postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID)))

	w := postForm(h.ServeRevoke, PathRevoke, url.Values{"token": {tokens.RefreshToken}, "client_id": {clientID}})
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := h.grants.LookupAccessToken(tokens.AccessToken)
	assert.Error(t, err, "revoking the refresh token revokes the grant")

	// unknown tokens still succeed
	w = postForm(h.ServeRevoke, PathRevoke, url.Values{"token": {"unknown"}, "client_id": {clientID}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeRevoke_OtherClientCannotRevoke(t *testing.T) {
	h := newTestHandler(t)
	code, verifier, clientID := authorizeCode(t, h, nil)
	tokens := decodeTokens(t, postForm(h.ServeToken, PathToken, codeForm(code, verifier, clientID)))
	other := registerPublicClient(t, h)

	w := postForm(h.ServeRevoke, PathRevoke, url.Values{"token": {tokens.AccessToken}, "client_id": {other.ClientID}})
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := h.grants.LookupAccessToken(tokens.AccessToken)
	assert.NoError(t, err)
}
