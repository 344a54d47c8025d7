package oauth

import "time"

// Token and code lifetimes
const (
	// DefaultAuthorizationCodeTTL is how long authorization codes are valid (10 minutes)
	DefaultAuthorizationCodeTTL = 10 * time.Minute

	// DefaultAccessTokenTTL is the default access token expiry (1 hour)
	DefaultAccessTokenTTL = 1 * time.Hour

	// DefaultRefreshTokenTTL is the default time-to-live for refresh tokens (30 days)
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultCleanupInterval is how often expired codes and tokens are purged
	DefaultCleanupInterval = 1 * time.Minute

	// DefaultRateLimitCleanupInterval is how often to cleanup inactive rate limiters
	DefaultRateLimitCleanupInterval = 5 * time.Minute

	// InactiveLimiterCleanupWindow is the time after which inactive limiters are removed
	InactiveLimiterCleanupWindow = 10 * time.Minute
)

// Client and security defaults
const (
	// DefaultMaxClientsPerIP is the default limit for client registrations per IP
	DefaultMaxClientsPerIP = 10

	// DefaultRateLimitRate is the default requests per second per IP
	DefaultRateLimitRate = 10

	// DefaultRateLimitBurst is the default burst size for rate limiting
	DefaultRateLimitBurst = 20

	// maxRegistrationBodyBytes bounds the size of a registration request.
	maxRegistrationBodyBytes = 64 << 10
)

// PKCE and token generation constants
const (
	// MinCodeVerifierLength is the minimum length for PKCE code_verifier (RFC 7636)
	MinCodeVerifierLength = 43

	// MaxCodeVerifierLength is the maximum length for PKCE code_verifier (RFC 7636)
	MaxCodeVerifierLength = 128

	// ClientSecretTokenLength is the number of random bytes in generated client secrets
	ClientSecretTokenLength = 32

	// AuthorizationCodeLength is the number of random bytes in authorization codes
	AuthorizationCodeLength = 32

	// AccessTokenLength is the number of random bytes in access tokens
	AccessTokenLength = 32

	// RefreshTokenLength is the number of random bytes in refresh tokens
	RefreshTokenLength = 32
)

// Endpoint paths relative to the issuer.
const (
	PathAuthorize               = "/authorize"
	PathCallback                = "/callback"
	PathToken                   = "/token"
	PathRegister                = "/register"
	PathRevoke                  = "/revoke"
	PathAuthorizationServerMeta = "/.well-known/oauth-authorization-server"
	PathProtectedResourceMeta   = "/.well-known/oauth-protected-resource"
)

// Grant types, methods and schemes
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"

	AuthMethodNone        = "none"
	AuthMethodSecretBasic = "client_secret_basic"
	AuthMethodSecretPost  = "client_secret_post"

	CodeChallengeMethodS256 = "S256"
)

var (
	// DangerousSchemes lists URI schemes that must never be allowed for security
	DangerousSchemes = []string{"javascript", "data", "file", "vbscript", "about"}

	// DefaultRFC3986SchemePattern is the default regex pattern for custom URI schemes (RFC 3986)
	DefaultRFC3986SchemePattern = []string{"^[a-z][a-z0-9+.-]*$"}

	// LoopbackAddresses lists recognized loopback addresses for development
	LoopbackAddresses = []string{"localhost", "127.0.0.1", "::1"}

	// DefaultGrantTypes are the grant types supported by default
	DefaultGrantTypes = []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken}

	// DefaultResponseTypes are the response types supported by default
	DefaultResponseTypes = []string{"code"}

	// SupportedCodeChallengeMethods are the PKCE methods we support.
	// "plain" is not accepted.
	SupportedCodeChallengeMethods = []string{CodeChallengeMethodS256}

	// SupportedTokenAuthMethods are the supported token endpoint auth methods
	SupportedTokenAuthMethods = []string{AuthMethodSecretBasic, AuthMethodSecretPost, AuthMethodNone}
)
