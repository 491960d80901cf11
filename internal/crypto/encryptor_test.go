package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oauth-token-cache/internal/common/errors"
)

func TestNewConfigEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"32 character key", "0123456789abcdef0123456789abcdef", false},
		{"short key is stretched", "short", false},
		{"empty key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewConfigEncryptor(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
				assert.Nil(t, enc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, enc)
		})
	}
}

func TestConfigEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewConfigEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	inputs := []string{
		`{"token":{"access_token":"eyJhbGciOi"},"expires_at":"2025-01-01T00:00:00Z"}`,
		"unicode: ✓ ü 漢字",
		"x",
	}
	for _, in := range inputs {
		sealed, err := enc.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, sealed)

		opened, err := enc.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, in, opened)
	}
}

func TestConfigEncryptor_EmptyValues(t *testing.T) {
	enc, err := NewConfigEncryptor("key")
	require.NoError(t, err)

	sealed, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestConfigEncryptor_NonceIsRandom(t *testing.T) {
	enc, err := NewConfigEncryptor("key")
	require.NoError(t, err)

	a, err := enc.Encrypt("same")
	require.NoError(t, err)
	b, err := enc.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestConfigEncryptor_SameKeyAcrossInstances(t *testing.T) {
	writer, err := NewConfigEncryptor("shared-key")
	require.NoError(t, err)
	reader, err := NewConfigEncryptor("shared-key")
	require.NoError(t, err)

	sealed, err := writer.Encrypt("payload")
	require.NoError(t, err)
	opened, err := reader.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", opened)
}

func TestConfigEncryptor_DecryptInvalid(t *testing.T) {
	enc, err := NewConfigEncryptor("key")
	require.NoError(t, err)
	other, err := NewConfigEncryptor("other-key")
	require.NoError(t, err)

	foreign, err := other.Encrypt("payload")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("abc"))},
		{"wrong key", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Decrypt(tt.input)
			assert.Error(t, err)
		})
	}
}
