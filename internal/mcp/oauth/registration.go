package oauth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
)

// ServeClientRegistration handles Dynamic Client Registration (RFC 7591).
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clientIP := getClientIP(r, h.config.RateLimit.TrustProxy)

	if !h.config.Security.AllowPublicClientRegistration {
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.config.Security.RegistrationAccessToken)) != 1 {
			h.logger.Warn("Client registration rejected: invalid registration token", "client_ip", clientIP)
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeOAuthError(w, ErrInvalidToken("Registration access token required"))
			return
		}
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBodyBytes)).Decode(&req); err != nil {
		h.writeOAuthError(w, ErrInvalidClientMetadata("Failed to parse registration request"))
		return
	}

	if err := h.validateRegistration(&req); err != nil {
		h.audit.failure(AuditEventInvalidRedirect, "", clientIP, err.Error())
		h.writeOAuthError(w, err)
		return
	}

	if err := h.clients.CheckIPLimit(clientIP, h.config.Security.MaxClientsPerIP); err != nil {
		h.logger.Warn("Client registration limit exceeded",
			"client_ip", clientIP,
			"limit", h.config.Security.MaxClientsPerIP)
		h.writeOAuthError(w, ErrRateLimited(
			fmt.Sprintf("Client registration limit exceeded for your IP address (%d max)", h.config.Security.MaxClientsPerIP)))
		return
	}

	resp, err := h.clients.RegisterClient(&req, clientIP)
	if err != nil {
		h.logger.Error("Failed to register client", "error", err)
		h.writeOAuthError(w, ErrServerError("Failed to register client"))
		return
	}

	h.audit.LogEvent(AuditEvent{
		EventType: AuditEventClientRegistered,
		ClientID:  resp.ClientID,
		IPAddress: clientIP,
		Success:   true,
		Metadata:  map[string]string{"auth_method": resp.TokenEndpointAuthMethod},
	})
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) validateRegistration(req *ClientRegistrationRequest) error {
	if len(req.RedirectURIs) == 0 {
		return ErrInvalidRedirectURI("At least one redirect_uri is required")
	}
	for _, uri := range req.RedirectURIs {
		if err := h.redirects.validate(uri); err != nil {
			return ErrInvalidRedirectURI(err.Error())
		}
	}
	if req.TokenEndpointAuthMethod != "" && !slices.Contains(SupportedTokenAuthMethods, req.TokenEndpointAuthMethod) {
		return ErrInvalidClientMetadata(fmt.Sprintf("unsupported token_endpoint_auth_method %q", req.TokenEndpointAuthMethod))
	}
	for _, gt := range req.GrantTypes {
		if !slices.Contains(DefaultGrantTypes, gt) {
			return ErrInvalidClientMetadata(fmt.Sprintf("unsupported grant_type %q", gt))
		}
	}
	for _, rt := range req.ResponseTypes {
		if !slices.Contains(DefaultResponseTypes, rt) {
			return ErrInvalidClientMetadata(fmt.Sprintf("unsupported response_type %q", rt))
		}
	}
	return nil
}
