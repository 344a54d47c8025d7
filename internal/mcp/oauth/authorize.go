package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// ParseAuthRequest validates an MCP client's /authorize query. The client
// must be registered and the redirect URI must be one it registered.
func (h *Handler) ParseAuthRequest(r *http.Request) (*AuthorizationRequest, error) {
	q := r.URL.Query()

	req := &AuthorizationRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               strings.Fields(q.Get("scope")),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Resource:            q.Get("resource"),
	}
	if req.Scope == nil {
		req.Scope = []string{}
	}

	if req.ClientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}
	client, ok := h.clients.GetClient(req.ClientID)
	if !ok {
		return nil, ErrUnknownClient("unknown client_id")
	}

	if req.RedirectURI == "" {
		if len(client.RedirectURIs) != 1 {
			return nil, ErrInvalidRequest("redirect_uri is required")
		}
		req.RedirectURI = client.RedirectURIs[0]
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		h.audit.failure(AuditEventInvalidRedirect, req.ClientID, getClientIP(r, h.config.RateLimit.TrustProxy), "redirect_uri not registered")
		return nil, ErrInvalidRedirectURI("redirect_uri is not registered for this client")
	}

	if req.ResponseType != "code" {
		return nil, ErrUnsupportedResponseType("response_type must be \"code\"")
	}
	if req.State == "" && !h.config.Security.AllowInsecureAuthWithoutState {
		return nil, ErrInvalidRequest("state parameter is required")
	}
	if err := validateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return nil, err
	}
	if err := h.validateScopes(req.Scope); err != nil {
		return nil, err
	}
	if req.Resource != "" && strings.TrimRight(req.Resource, "/") != h.issuer {
		return nil, ErrInvalidRequest("resource does not identify this server")
	}
	return req, nil
}

func validateCodeChallenge(challenge, method string) error {
	if challenge == "" {
		return ErrInvalidRequest("code_challenge is required")
	}
	if !slices.Contains(SupportedCodeChallengeMethods, method) {
		return ErrInvalidRequest("code_challenge_method must be S256")
	}
	// base64url of a SHA-256 digest is always 43 characters
	if len(challenge) != 43 {
		return ErrInvalidRequest("code_challenge is malformed")
	}
	return nil
}

func (h *Handler) validateScopes(scopes []string) error {
	if len(h.config.SupportedScopes) == 0 {
		return nil
	}
	for _, s := range scopes {
		if !slices.Contains(h.config.SupportedScopes, s) {
			return ErrInvalidScope(fmt.Sprintf("unsupported scope %q", s))
		}
	}
	return nil
}

// LookupClient returns a registered client. Unknown ids give an
// invalid_client error with status 400.
func (h *Handler) LookupClient(_ context.Context, clientID string) (*Client, error) {
	client, ok := h.clients.GetClient(clientID)
	if !ok {
		return nil, ErrUnknownClient("unknown client_id")
	}
	return client, nil
}

// CompleteAuthorization records the grant for an authorization request and
// returns the client redirect URL carrying the code and the client's state.
//
// The request usually comes back from the browser, so the client and redirect
// URI are checked again here.
func (h *Handler) CompleteAuthorization(ctx context.Context, complete CompleteRequest) (string, error) {
	req := complete.Request
	if req == nil {
		return "", ErrInvalidRequest("authorization request is required")
	}
	if complete.UserID == "" {
		return "", ErrInvalidRequest("user id is required")
	}
	client, ok := h.clients.GetClient(req.ClientID)
	if !ok {
		return "", ErrUnknownClient("unknown client_id")
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		return "", ErrInvalidRedirectURI("redirect_uri is not registered for this client")
	}
	if err := validateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return "", err
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", ErrInvalidRedirectURI("redirect_uri is malformed")
	}

	code, err := h.grants.CreateCode(req, complete)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to create authorization code", "error", err)
		return "", ErrServerError("failed to create authorization code")
	}

	q := redirect.Query()
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()

	h.audit.LogEvent(AuditEvent{
		EventType: AuditEventAuthorizationCompleted,
		UserID:    complete.UserID,
		ClientID:  req.ClientID,
		Success:   true,
		Metadata:  map[string]string{"scope": strings.Join(req.Scope, " ")},
	})
	return redirect.String(), nil
}
