package oauth

import (
	"net/http"
	"strings"
)

// ServeToken handles the token endpoint for the authorization_code and
// refresh_token grants.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeOAuthError(w, ErrInvalidRequest("Failed to parse form"))
		return
	}

	var (
		tokens *IssuedTokens
		err    error
	)
	grantType := r.PostForm.Get("grant_type")
	switch grantType {
	case GrantTypeAuthorizationCode:
		tokens, err = h.exchangeAuthorizationCode(r)
	case GrantTypeRefreshToken:
		tokens, err = h.exchangeRefreshToken(r)
	case "":
		err = ErrInvalidRequest("grant_type is required")
	default:
		err = ErrUnsupportedGrantType("grant_type must be authorization_code or refresh_token")
	}
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}

	if h.config.Metrics != nil {
		h.config.Metrics.RecordTokenIssued(r.Context(), grantType)
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  tokens.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
		RefreshToken: tokens.RefreshToken,
		Scope:        strings.Join(tokens.Scope, " "),
	})
}

func (h *Handler) exchangeAuthorizationCode(r *http.Request) (*IssuedTokens, error) {
	form := r.PostForm
	ip := getClientIP(r, h.config.RateLimit.TrustProxy)

	client, err := h.authenticateClient(r)
	if err != nil {
		return nil, err
	}

	code := form.Get("code")
	if code == "" {
		return nil, ErrInvalidRequest("code is required")
	}
	record, err := h.grants.ConsumeCode(code)
	if err != nil {
		h.audit.failure(AuditEventInvalidGrant, client.ClientID, ip, "unknown or expired authorization code")
		return nil, ErrInvalidGrant("authorization code is invalid or expired")
	}
	if record.ClientID != client.ClientID {
		h.audit.failure(AuditEventInvalidGrant, client.ClientID, ip, "authorization code issued to another client")
		return nil, ErrInvalidGrant("authorization code was issued to another client")
	}
	if redirectURI := form.Get("redirect_uri"); redirectURI != "" && redirectURI != record.RedirectURI {
		return nil, ErrInvalidGrant("redirect_uri does not match the authorization request")
	}
	if err := validatePKCE(form.Get("code_verifier"), record.CodeChallenge, record.CodeChallengeMethod); err != nil {
		h.audit.failure(AuditEventInvalidPKCE, client.ClientID, ip, err.Error())
		return nil, ErrInvalidGrant(err.Error())
	}

	tokens, err := h.grants.IssueTokens(record)
	if err != nil {
		h.logger.Error("Failed to issue tokens", "error", err)
		return nil, ErrServerError("failed to issue tokens")
	}
	h.audit.LogEvent(AuditEvent{
		EventType: AuditEventTokenIssued,
		UserID:    record.UserID,
		ClientID:  record.ClientID,
		IPAddress: ip,
		Success:   true,
		Metadata:  map[string]string{"scope": strings.Join(record.Scope, " ")},
	})
	return tokens, nil
}

// exchangeRefreshToken always rotates: the presented refresh token and its
// access token are invalidated.
func (h *Handler) exchangeRefreshToken(r *http.Request) (*IssuedTokens, error) {
	ip := getClientIP(r, h.config.RateLimit.TrustProxy)

	client, err := h.authenticateClient(r)
	if err != nil {
		return nil, err
	}

	refreshToken := r.PostForm.Get("refresh_token")
	if refreshToken == "" {
		return nil, ErrInvalidRequest("refresh_token is required")
	}
	record, err := h.grants.ConsumeRefreshToken(refreshToken)
	if err != nil {
		h.audit.failure(AuditEventInvalidGrant, client.ClientID, ip, "unknown or expired refresh token")
		return nil, ErrInvalidGrant("refresh token is invalid or expired")
	}
	if record.ClientID != client.ClientID {
		h.audit.failure(AuditEventInvalidGrant, client.ClientID, ip, "refresh token issued to another client")
		return nil, ErrInvalidGrant("refresh token was issued to another client")
	}

	tokens, err := h.grants.IssueTokens(record)
	if err != nil {
		h.logger.Error("Failed to issue tokens", "error", err)
		return nil, ErrServerError("failed to issue tokens")
	}
	h.audit.LogEvent(AuditEvent{
		EventType: AuditEventTokenRefreshed,
		UserID:    record.UserID,
		ClientID:  record.ClientID,
		IPAddress: ip,
		Success:   true,
	})
	return tokens, nil
}

// authenticateClient identifies the client from HTTP Basic credentials or
// the form. Public clients only need a known client_id.
func (h *Handler) authenticateClient(r *http.Request) (*Client, error) {
	clientID := r.PostForm.Get("client_id")
	secret := r.PostForm.Get("client_secret")
	if user, pass, ok := r.BasicAuth(); ok {
		if clientID != "" && clientID != user {
			return nil, ErrInvalidClient("client_id does not match credentials")
		}
		clientID, secret = user, pass
	}
	if clientID == "" {
		return nil, ErrInvalidClient("client authentication required")
	}

	client, ok := h.clients.GetClient(clientID)
	if !ok {
		return nil, ErrInvalidClient("invalid client")
	}
	if client.IsPublic() {
		return client, nil
	}
	if secret == "" || !h.clients.ValidateClientSecret(clientID, secret) {
		h.audit.failure(AuditEventClientAuthFailure, clientID, getClientIP(r, h.config.RateLimit.TrustProxy), "client secret mismatch")
		return nil, ErrInvalidClient("client authentication failed")
	}
	return client, nil
}

// ServeRevoke handles RFC 7009 token revocation. Unknown tokens still get a
// 200 so that clients cannot probe for valid tokens.
func (h *Handler) ServeRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeOAuthError(w, ErrInvalidRequest("Failed to parse form"))
		return
	}
	client, err := h.authenticateClient(r)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	token := r.PostForm.Get("token")
	if token == "" {
		h.writeOAuthError(w, ErrInvalidRequest("token is required"))
		return
	}

	grantClient, found := h.grants.Peek(token)
	if found && grantClient == client.ClientID {
		h.grants.Revoke(token)
		h.audit.LogEvent(AuditEvent{
			EventType: AuditEventTokenRevoked,
			ClientID:  client.ClientID,
			IPAddress: getClientIP(r, h.config.RateLimit.TrustProxy),
			Success:   true,
			Metadata:  map[string]string{"token_type_hint": r.PostForm.Get("token_type_hint")},
		})
	}
	h.setSecurityHeaders(w)
	w.WriteHeader(http.StatusOK)
}
