package oauth

import (
	"context"
	"log/slog"
	"time"
)

// Config holds the authorization server configuration.
type Config struct {
	// Issuer is the public base URL of this server. It doubles as the RFC 8707
	// resource identifier and must be HTTPS unless it points at loopback.
	Issuer string

	// SupportedScopes restricts the scopes a client may request.
	// Empty means any scope is accepted.
	SupportedScopes []string

	RateLimit RateLimitConfig

	Security SecurityConfig

	// CleanupInterval is how often go-cache purges expired codes and tokens.
	// Default: 1 minute
	CleanupInterval time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Metrics receives token issuance counts. Optional.
	Metrics TokenMetrics
}

// TokenMetrics is the subset of the instrumentation metrics used here.
type TokenMetrics interface {
	RecordTokenIssued(ctx context.Context, grantType string)
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate int

	// Burst is the maximum burst size allowed per IP
	Burst int

	// CleanupInterval is how often to cleanup inactive rate limiters
	// Default: 5 minutes
	CleanupInterval time.Duration

	// TrustProxy indicates whether to trust X-Forwarded-For and X-Real-IP headers.
	// Only set to true if the server is behind a trusted proxy.
	TrustProxy bool
}

// SecurityConfig holds security settings. The zero value is the strict setting
// for every boolean.
type SecurityConfig struct {
	// AllowInsecureAuthWithoutState allows authorization requests without a state parameter.
	AllowInsecureAuthWithoutState bool

	// AllowPublicClientRegistration allows unauthenticated dynamic client registration.
	// When false, registration requires RegistrationAccessToken as a bearer token.
	AllowPublicClientRegistration bool

	// RegistrationAccessToken is the token required for client registration
	RegistrationAccessToken string

	// AccessTokenTTL defaults to DefaultAccessTokenTTL
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defaults to DefaultRefreshTokenTTL
	RefreshTokenTTL time.Duration

	// AuthorizationCodeTTL defaults to DefaultAuthorizationCodeTTL
	AuthorizationCodeTTL time.Duration

	// MaxClientsPerIP limits client registrations per IP. 0 means DefaultMaxClientsPerIP.
	MaxClientsPerIP int

	// AllowCustomRedirectSchemes allows non-http/https redirect URIs (e.g., cursor://)
	// validated against AllowedCustomSchemes.
	AllowCustomRedirectSchemes bool

	// AllowedCustomSchemes is a list of allowed custom scheme patterns (regex).
	// Default: DefaultRFC3986SchemePattern
	AllowedCustomSchemes []string

	// EncryptionKey is the AES-256 key for grant props at rest (32 bytes).
	// Nil disables encryption.
	EncryptionKey []byte

	// EnableAuditLogging enables security audit logging
	EnableAuditLogging bool
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.RateLimit.CleanupInterval <= 0 {
		c.RateLimit.CleanupInterval = DefaultRateLimitCleanupInterval
	}
	if c.Security.AccessTokenTTL <= 0 {
		c.Security.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.Security.RefreshTokenTTL <= 0 {
		c.Security.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if c.Security.AuthorizationCodeTTL <= 0 {
		c.Security.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if c.Security.MaxClientsPerIP <= 0 {
		c.Security.MaxClientsPerIP = DefaultMaxClientsPerIP
	}
	if c.Security.AllowCustomRedirectSchemes && len(c.Security.AllowedCustomSchemes) == 0 {
		c.Security.AllowedCustomSchemes = DefaultRFC3986SchemePattern
	}
}
