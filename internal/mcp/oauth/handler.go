package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

// Handler is the OAuth 2.1 authorization server for MCP clients and the
// resource-server guard for the MCP endpoint.
type Handler struct {
	config      Config
	issuer      string
	clients     *ClientStore
	grants      *GrantStore
	redirects   *redirectPolicy
	rateLimiter *RateLimiter
	audit       *AuditLogger
	logger      *slog.Logger
}

// NewHandler validates config and builds a Handler.
// The issuer must be HTTPS unless it is a loopback address.
func NewHandler(config Config) (*Handler, error) {
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	issuer := strings.TrimRight(config.Issuer, "/")
	parsedURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}
	if parsedURL.Scheme != "https" && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("issuer must use HTTPS in production (got %s://)", parsedURL.Scheme)
	}

	config.applyDefaults()
	logger := logging.WithComponent(config.Logger, "oauth")

	redirects, err := newRedirectPolicy(parsedURL, config.Security)
	if err != nil {
		return nil, err
	}

	encryption, err := NewPropsEncryption(config.Security.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if !encryption.Enabled() {
		logger.Warn("Grant props are stored unencrypted in memory",
			"recommendation", "Set OAUTH_ENCRYPTION_KEY for production")
	}

	if config.Security.AllowInsecureAuthWithoutState {
		logger.Warn("SECURITY WARNING: state parameter is optional (CSRF protection weakened)")
	}
	if config.Security.AllowPublicClientRegistration {
		logger.Warn("SECURITY WARNING: public client registration is enabled",
			"recommendation", "Set REGISTRATION_ACCESS_TOKEN and disable public registration")
	} else if config.Security.RegistrationAccessToken == "" {
		return nil, fmt.Errorf("registration access token is required when public client registration is disabled")
	}

	var rateLimiter *RateLimiter
	if config.RateLimit.Rate > 0 {
		burst := config.RateLimit.Burst
		if burst == 0 {
			burst = config.RateLimit.Rate * 2
		}
		rateLimiter = NewRateLimiter(config.RateLimit.Rate, burst, config.RateLimit.TrustProxy, config.RateLimit.CleanupInterval)
		logger.Info("IP-based rate limiting enabled", "rate", config.RateLimit.Rate, "burst", burst)
	}

	return &Handler{
		config:      config,
		issuer:      issuer,
		clients:     NewClientStore(config.Logger),
		grants:      NewGrantStore(encryption, config.Security, config.CleanupInterval),
		redirects:   redirects,
		rateLimiter: rateLimiter,
		audit:       NewAuditLogger(config.Logger, config.Security.EnableAuditLogging),
		logger:      logger,
	}, nil
}

// Issuer returns the normalized issuer URL.
func (h *Handler) Issuer() string {
	return h.issuer
}

// Clients exposes the client registry.
func (h *Handler) Clients() *ClientStore {
	return h.clients
}

// Stats is a point-in-time count of the authorization server's state.
type Stats struct {
	Clients       int `json:"clients"`
	PendingCodes  int `json:"pending_codes"`
	AccessTokens  int `json:"access_tokens"`
	RefreshTokens int `json:"refresh_tokens"`
}

// Stats returns current store sizes. Expired entries not yet purged are
// included.
func (h *Handler) Stats() Stats {
	codes, access, refresh := h.grants.Counts()
	return Stats{
		Clients:       h.clients.Count(),
		PendingCodes:  codes,
		AccessTokens:  access,
		RefreshTokens: refresh,
	}
}

// Stop releases background goroutines.
func (h *Handler) Stop() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// ServeProtectedResourceMetadata serves RFC 9728 metadata pointing MCP
// clients at this server.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, ProtectedResourceMetadata{
		Resource:               h.issuer,
		AuthorizationServers:   []string{h.issuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	})
}

// ServeAuthorizationServerMetadata serves RFC 8414 metadata.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, AuthorizationServerMetadata{
		Issuer:                            h.issuer,
		AuthorizationEndpoint:             h.issuer + PathAuthorize,
		TokenEndpoint:                     h.issuer + PathToken,
		RegistrationEndpoint:              h.issuer + PathRegister,
		RevocationEndpoint:                h.issuer + PathRevoke,
		ScopesSupported:                   h.config.SupportedScopes,
		ResponseTypesSupported:            DefaultResponseTypes,
		GrantTypesSupported:               DefaultGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     SupportedCodeChallengeMethods,
	})
}

// setSecurityHeaders sets security headers on HTTP responses
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	if strings.HasPrefix(h.issuer, "https://") {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", logging.Err(err))
	}
}

// writeOAuthError writes err as an RFC 6749 error body.
func (h *Handler) writeOAuthError(w http.ResponseWriter, err error) {
	oauthErr := AsOAuthError(err)
	h.logger.Debug("OAuth error",
		"code", oauthErr.Code,
		"description", oauthErr.Description,
		"status", oauthErr.Status)
	h.writeJSON(w, oauthErr.Status, ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

// WriteError is exported for the authorize and callback handlers, which
// live outside this package but answer with the same error format.
func (h *Handler) WriteError(w http.ResponseWriter, err error) {
	h.writeOAuthError(w, err)
}
