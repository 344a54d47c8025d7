package approval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigningKey(t *testing.T) {
	key, err := NewSigningKey("s3cret")
	require.NoError(t, err)
	assert.False(t, key.IsZero())
}

func TestNewSigningKey_Empty(t *testing.T) {
	key, err := NewSigningKey("")
	require.Error(t, err)
	assert.True(t, key.IsZero())

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "COOKIE_ENCRYPTION_KEY", cfgErr.Setting)
}

func TestSigningKey_Deterministic(t *testing.T) {
	k1, _ := NewSigningKey("secret")
	k2, _ := NewSigningKey("secret")
	payload := []byte(`["abc"]`)

	assert.Equal(t, k1.sign(payload), k2.sign(payload))
	assert.True(t, k2.verify(payload, k1.sign(payload)))
}

func TestSigningKey_ZeroNeverVerifies(t *testing.T) {
	var zero SigningKey
	assert.False(t, zero.verify([]byte("x"), nil))
}
