package oauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// PropsEncryption seals grant props with AES-256-GCM. A disabled instance
// stores the JSON encoding in the clear.
type PropsEncryption struct {
	aead cipher.AEAD
}

// NewPropsEncryption creates a new encryption instance.
// If key is nil or empty, encryption is disabled.
func NewPropsEncryption(key []byte) (*PropsEncryption, error) {
	if len(key) == 0 {
		return &PropsEncryption{}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes (256 bits), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &PropsEncryption{aead: aead}, nil
}

// Enabled reports whether props are encrypted.
func (e *PropsEncryption) Enabled() bool {
	return e != nil && e.aead != nil
}

// Seal encodes props and encrypts them.
// Output is base64(nonce || ciphertext || tag) when enabled.
func (e *PropsEncryption) Seal(props map[string]string) (string, error) {
	if len(props) == 0 {
		return "", nil
	}
	plaintext, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to encode props: %w", err)
	}
	if !e.Enabled() {
		return string(plaintext), nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (e *PropsEncryption) Open(sealed string) (map[string]string, error) {
	if sealed == "" {
		return map[string]string{}, nil
	}

	plaintext := []byte(sealed)
	if e.Enabled() {
		raw, err := base64.StdEncoding.DecodeString(sealed)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		nonceSize := e.aead.NonceSize()
		if len(raw) < nonceSize {
			return nil, fmt.Errorf("ciphertext too short")
		}
		plaintext, err = e.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt: %w", err)
		}
	}

	var props map[string]string
	if err := json.Unmarshal(plaintext, &props); err != nil {
		return nil, fmt.Errorf("failed to decode props: %w", err)
	}
	return props, nil
}

// GenerateEncryptionKey generates a new random 32-byte key for AES-256.
func GenerateEncryptionKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// EncryptionKeyFromBase64 decodes a base64-encoded encryption key
// (e.g. from OAUTH_ENCRYPTION_KEY).
func EncryptionKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d bytes", len(key))
	}
	return key, nil
}
