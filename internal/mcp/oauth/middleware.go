package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// contextKey is the type for context keys
type contextKey string

// grantContextKey is the key for storing the validated grant in the request context
const grantContextKey contextKey = "oauth_grant"

// ContextWithGrant returns a copy of ctx carrying grant.
func ContextWithGrant(ctx context.Context, grant *Grant) context.Context {
	return context.WithValue(ctx, grantContextKey, grant)
}

// GrantFromContext returns the grant stored by ValidateToken.
func GrantFromContext(ctx context.Context) (*Grant, bool) {
	grant, ok := ctx.Value(grantContextKey).(*Grant)
	return grant, ok && grant != nil
}

// ValidateToken guards the MCP endpoint. Requests without a valid bearer
// token get a 401 whose WWW-Authenticate header points at the protected
// resource metadata.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.writeUnauthorized(w, "invalid_token", "Missing or malformed Authorization header")
			return
		}

		grant, err := h.grants.LookupAccessToken(token)
		if err != nil {
			h.audit.failure(AuditEventInvalidToken, "", getClientIP(r, h.config.RateLimit.TrustProxy), err.Error())
			h.writeUnauthorized(w, "invalid_token", "Access token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithGrant(r.Context(), grant)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (h *Handler) writeUnauthorized(w http.ResponseWriter, errorCode, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm="%s", resource_metadata="%s%s", error="%s", error_description="%s"`,
		h.issuer, h.issuer, PathProtectedResourceMeta, errorCode, description,
	))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
