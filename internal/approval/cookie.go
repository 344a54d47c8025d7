package approval

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/nedasvi/notion-mcp-server-remote/internal/logging"
)

const (
	// CookieName is the name of the consent cookie.
	CookieName = "mcp-approved-clients"

	// CookieMaxAge is one year, in seconds.
	CookieMaxAge = 365 * 24 * 60 * 60

	cookieSeparator = "."
)

// EncodeApprovedClients serializes and signs a list of approved client IDs.
func EncodeApprovedClients(clients []string, key SigningKey) (string, error) {
	if key.IsZero() {
		return "", &ConfigurationError{Setting: "COOKIE_ENCRYPTION_KEY", Reason: "signing key not initialized"}
	}
	if clients == nil {
		clients = []string{}
	}

	payload, err := json.Marshal(clients)
	if err != nil {
		return "", err
	}

	signature := hex.EncodeToString(key.sign(payload))
	return signature + cookieSeparator + base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeApprovedClients verifies a consent cookie value and returns the
// client IDs it carries. ok is false for any malformed or unauthenticated
// value; the caller must then treat the browser as having no prior consent.
func DecodeApprovedClients(value string, key SigningKey) (clients []string, ok bool) {
	log := logger()

	parts := strings.Split(value, cookieSeparator)
	if len(parts) != 2 {
		log.Warn("consent cookie has unexpected format")
		return nil, false
	}

	if !isLowerHex(parts[0]) {
		log.Warn("consent cookie signature is not lowercase hex")
		return nil, false
	}
	signature, err := hex.DecodeString(parts[0])
	if err != nil {
		log.Warn("consent cookie signature is not hex", logging.Err(err))
		return nil, false
	}
	// Strict decoding rejects non-canonical padding bits, so every distinct
	// encoded value maps to distinct payload bytes.
	payload, err := base64.StdEncoding.Strict().DecodeString(parts[1])
	if err != nil {
		log.Warn("consent cookie payload is not base64", logging.Err(err))
		return nil, false
	}

	if !key.verify(payload, signature) {
		log.Warn("consent cookie signature verification failed")
		return nil, false
	}

	clients, err = parseClientList(payload)
	if err != nil {
		log.Warn("consent cookie payload rejected", logging.Err(err))
		return nil, false
	}
	return clients, true
}

var errNotStringArray = errors.New("payload is not a JSON array of strings")

// parseClientList accepts only a JSON array whose elements are all strings.
func parseClientList(payload []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNotStringArray
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, errNotStringArray
	}

	// Decoding null into a string yields "" without error, so element kinds
	// are checked before unmarshalling.
	clients := make([]string, 0, len(elems))
	for _, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 || elem[0] != '"' {
			return nil, errNotStringArray
		}
		var id string
		if err := json.Unmarshal(elem, &id); err != nil {
			return nil, errNotStringArray
		}
		clients = append(clients, id)
	}
	return clients, nil
}

// isLowerHex reports whether s uses only the digits and lowercase letters
// that EncodeApprovedClients emits.
func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ApprovedClientsFromRequest returns the verified client IDs from the
// request's consent cookie, or nil when there is none.
func ApprovedClientsFromRequest(r *http.Request, key SigningKey) []string {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	clients, ok := DecodeApprovedClients(cookie.Value, key)
	if !ok {
		return nil
	}
	return clients
}

// newConsentCookie builds the Set-Cookie directive carrying value.
func newConsentCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func appendUnique(clients []string, clientID string) []string {
	if slices.Contains(clients, clientID) {
		return clients
	}
	return append(clients, clientID)
}

func logger() *slog.Logger {
	return logging.WithComponent(slog.Default(), "approval")
}
