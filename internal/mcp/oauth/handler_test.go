package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_IssuerValidation(t *testing.T) {
	tests := []struct {
		name    string
		issuer  string
		wantErr bool
	}{
		{"https", "https://mcp.example.com", false},
		{"localhost http", "http://localhost:8080", false},
		{"loopback ip", "http://127.0.0.1:8080", false},
		{"ipv6 loopback", "http://[::1]:8080", false},
		{"plain http in production", "http://mcp.example.com", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHandler(Config{
				Issuer:   tt.issuer,
				Security: SecurityConfig{AllowPublicClientRegistration: true},
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewHandler_RequiresRegistrationTokenWhenClosed(t *testing.T) {
	_, err := NewHandler(Config{Issuer: testIssuer})
	assert.Error(t, err)

	h, err := NewHandler(Config{
		Issuer:   testIssuer,
		Security: SecurityConfig{RegistrationAccessToken: "reg-secret"},
	})
	require.NoError(t, err)
	h.Stop()
}

func TestNewHandler_RejectsShortEncryptionKey(t *testing.T) {
	_, err := NewHandler(Config{
		Issuer: testIssuer,
		Security: SecurityConfig{
			AllowPublicClientRegistration: true,
			EncryptionKey:                 []byte("short"),
		},
	})
	assert.Error(t, err)
}

func TestNewHandler_TrimsIssuer(t *testing.T) {
	h := newTestHandler(t, func(c *Config) { c.Issuer = "https://mcp.example.com/" })
	assert.Equal(t, "https://mcp.example.com", h.Issuer())
}

func TestServeAuthorizationServerMetadata(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.ServeAuthorizationServerMetadata(w, httptest.NewRequest(http.MethodGet, PathAuthorizationServerMeta, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var meta AuthorizationServerMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, testIssuer, meta.Issuer)
	assert.Equal(t, testIssuer+"/authorize", meta.AuthorizationEndpoint)
	assert.Equal(t, testIssuer+"/token", meta.TokenEndpoint)
	assert.Equal(t, testIssuer+"/register", meta.RegistrationEndpoint)
	assert.Equal(t, testIssuer+"/revoke", meta.RevocationEndpoint)
	assert.Equal(t, []string{"S256"}, meta.CodeChallengeMethodsSupported)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "no HSTS on plain http issuer")
}

func TestServeProtectedResourceMetadata(t *testing.T) {
	h := newTestHandler(t, func(c *Config) {
		c.Issuer = "https://mcp.example.com"
		c.SupportedScopes = []string{"notion"}
	})

	w := httptest.NewRecorder()
	h.ServeProtectedResourceMetadata(w, httptest.NewRequest(http.MethodGet, PathProtectedResourceMeta, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var meta ProtectedResourceMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, "https://mcp.example.com", meta.Resource)
	assert.Equal(t, []string{"https://mcp.example.com"}, meta.AuthorizationServers)
	assert.Equal(t, []string{"notion"}, meta.ScopesSupported)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestMetadata_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	h.ServeAuthorizationServerMetadata(w, httptest.NewRequest(http.MethodPost, PathAuthorizationServerMeta, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAsOAuthError(t *testing.T) {
	oe := ErrInvalidGrant("expired")
	assert.Same(t, oe, AsOAuthError(oe))

	generic := AsOAuthError(assert.AnError)
	assert.Equal(t, "server_error", generic.Code)
	assert.Equal(t, http.StatusInternalServerError, generic.Status)
	assert.NotContains(t, generic.Description, assert.AnError.Error())
}

func TestHandler_Stats(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, Stats{}, h.Stats())

	authorizeCode(t, h, map[string]string{"accessToken": "secret"})

	stats := h.Stats()
	assert.Equal(t, 1, stats.Clients)
	assert.Equal(t, 1, stats.PendingCodes)
	assert.Zero(t, stats.AccessTokens)
}
