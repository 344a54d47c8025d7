package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedasvi/notion-mcp-server-remote/internal/mcp/oauth"
	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
)

// newSelfServer answers /users/me with the bearer token it saw.
func newSelfServer(t *testing.T) *notion.API {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Notion-Version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"user","auth":"` + r.Header.Get("Authorization") + `"}`))
	}))
	t.Cleanup(ts.Close)
	return notion.NewAPI(notion.APIConfig{BaseURL: ts.URL})
}

func TestNewServerContext_Validation(t *testing.T) {
	tokens := newTestTokenProvider(t)
	api := notion.NewAPI(notion.APIConfig{})

	_, err := NewServerContext(context.Background(), nil, tokens, nil)
	assert.Error(t, err)
	_, err = NewServerContext(context.Background(), api, nil, nil)
	assert.Error(t, err)

	sc, err := NewServerContext(context.Background(), api, tokens, nil)
	require.NoError(t, err)
	assert.NotNil(t, sc.Logger())
	assert.Same(t, tokens, sc.Tokens())
}

func TestServerContext_NotionClient(t *testing.T) {
	api := newSelfServer(t)
	tokens := newTestTokenProvider(t)
	ctx := context.Background()
	require.NoError(t, tokens.SaveToken(ctx, DefaultAccount, "secret_default"))
	require.NoError(t, tokens.SaveToken(ctx, "bot-stored", "secret_stored"))

	sc, err := NewServerContext(ctx, api, tokens, nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		grant     *oauth.Grant
		wantToken string
	}{
		{
			name:      "no grant uses default account",
			wantToken: "secret_default",
		},
		{
			name: "grant carries upstream token",
			grant: &oauth.Grant{UserID: "bot-stored", Props: map[string]string{
				notion.PropAccessToken: "secret_from_grant",
			}},
			wantToken: "secret_from_grant",
		},
		{
			name:      "grant without token uses store",
			grant:     &oauth.Grant{UserID: "bot-stored"},
			wantToken: "secret_stored",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqCtx := ctx
			if tt.grant != nil {
				reqCtx = oauth.ContextWithGrant(ctx, tt.grant)
			}
			client, err := sc.NotionClient(reqCtx)
			require.NoError(t, err)

			raw, err := client.GetSelf(reqCtx)
			require.NoError(t, err)
			assert.Contains(t, string(raw), "Bearer "+tt.wantToken)
		})
	}
}

func TestServerContext_NotionClientNoCredential(t *testing.T) {
	sc, err := NewServerContext(context.Background(), notion.NewAPI(notion.APIConfig{}), newTestTokenProvider(t), nil)
	require.NoError(t, err)

	_, err = sc.NotionClient(context.Background())
	assert.True(t, errors.Is(err, ErrNoCredential))

	_, err = sc.NotionClient(oauth.ContextWithGrant(context.Background(), &oauth.Grant{UserID: "bot-unknown"}))
	assert.True(t, errors.Is(err, ErrNoCredential))
}

func TestServerContext_Shutdown(t *testing.T) {
	sc, err := NewServerContext(context.Background(), notion.NewAPI(notion.APIConfig{}), newTestTokenProvider(t), nil)
	require.NoError(t, err)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())
	require.NoError(t, sc.Shutdown())
}

func TestServerContext_Instrumentation(t *testing.T) {
	sc, err := NewServerContext(context.Background(), notion.NewAPI(notion.APIConfig{}), newTestTokenProvider(t), nil)
	require.NoError(t, err)

	assert.Nil(t, sc.Metrics())
	assert.Nil(t, sc.AuditLogger())
}
