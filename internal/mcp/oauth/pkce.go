package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// GenerateCodeVerifier generates a random RFC 7636 code verifier (43 chars).
func GenerateCodeVerifier() (string, error) {
	verifier, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return verifier, nil
}

// GenerateCodeChallenge derives the S256 challenge for verifier:
// BASE64URL(SHA256(ASCII(code_verifier)))
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// validatePKCE checks a token request's verifier against the stored challenge.
func validatePKCE(verifier, challenge, method string) error {
	if verifier == "" {
		return fmt.Errorf("code_verifier is required")
	}
	if len(verifier) < MinCodeVerifierLength || len(verifier) > MaxCodeVerifierLength {
		return fmt.Errorf("code_verifier must be between %d and %d characters", MinCodeVerifierLength, MaxCodeVerifierLength)
	}
	if method != CodeChallengeMethodS256 {
		return fmt.Errorf("unsupported code_challenge_method %q", method)
	}
	computed := GenerateCodeChallenge(verifier)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return fmt.Errorf("code_verifier does not match code_challenge")
	}
	return nil
}
