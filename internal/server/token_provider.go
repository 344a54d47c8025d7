package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/oauth2"

	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
)

// DefaultAccount is the token store key used when no authenticated
// installation is attached to the request, e.g. on the stdio transport.
const DefaultAccount = "default"

// ErrTokenNotFound is returned when the store holds no token for an account.
var ErrTokenNotFound = errors.New("token not found")

// TokenProvider keeps Notion access tokens per installation on top of an
// mcp-oauth TokenStore.
type TokenProvider struct {
	store storage.TokenStore
}

// NewTokenProvider creates a new token provider from an mcp-oauth TokenStore.
func NewTokenProvider(store storage.TokenStore) *TokenProvider {
	return &TokenProvider{store: store}
}

// SaveToken stores a raw access token under account.
func (p *TokenProvider) SaveToken(ctx context.Context, account, accessToken string) error {
	if account == "" || accessToken == "" {
		return fmt.Errorf("account and access token are required")
	}
	return p.store.SaveToken(ctx, account, &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// SaveCredential stores the access token of a completed exchange under the
// installation's user id. Notion tokens do not expire, so no expiry is set.
func (p *TokenProvider) SaveCredential(ctx context.Context, cred *notion.Credential) error {
	if cred == nil {
		return fmt.Errorf("credential is required")
	}
	token := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if err := p.store.SaveToken(ctx, cred.UserID(), token); err != nil {
		return fmt.Errorf("failed to store Notion token: %w", err)
	}
	return nil
}

// TokenSource returns a static token source for account. Any store lookup
// failure is reported as ErrTokenNotFound.
func (p *TokenProvider) TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error) {
	token, err := p.store.GetToken(ctx, account)
	if err != nil || token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w for account %q", ErrTokenNotFound, account)
	}
	return oauth2.StaticTokenSource(token), nil
}

// HasToken reports whether account has a stored token.
func (p *TokenProvider) HasToken(ctx context.Context, account string) bool {
	_, err := p.TokenSource(ctx, account)
	return err == nil
}
