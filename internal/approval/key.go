package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// ConfigurationError reports deployment configuration that prevents the
// consent cache from working. It is not recoverable per request.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("approval: invalid configuration for %s: %s", e.Setting, e.Reason)
}

// SigningKey is an HMAC-SHA256 key used to sign consent cookies.
// The zero value is not usable; create one with NewSigningKey.
type SigningKey struct {
	key []byte
}

// NewSigningKey derives a signing key from the configured cookie secret.
func NewSigningKey(secret string) (SigningKey, error) {
	if secret == "" {
		return SigningKey{}, &ConfigurationError{
			Setting: "COOKIE_ENCRYPTION_KEY",
			Reason:  "cookie signing secret must not be empty",
		}
	}
	// The secret's UTF-8 bytes are the raw HMAC key.
	return SigningKey{key: []byte(secret)}, nil
}

// IsZero reports whether the key was never derived.
func (k SigningKey) IsZero() bool {
	return len(k.key) == 0
}

func (k SigningKey) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, k.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (k SigningKey) verify(payload, signature []byte) bool {
	if k.IsZero() {
		return false
	}
	return hmac.Equal(k.sign(payload), signature)
}
