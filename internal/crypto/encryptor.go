// Package crypto provides AES-256-GCM encryption for token payloads that are
// written to shared stores such as Redis.
//
// Each Encrypt call uses a fresh random nonce, so encrypting the same token
// twice yields different ciphertexts. Decrypt authenticates the payload and
// fails on tampered or foreign data.
//
// Example usage:
//
//	encryptor, err := crypto.NewConfigEncryptor(os.Getenv("CONFIG_ENCRYPTION_KEY"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	sealed, err := encryptor.Encrypt(`{"access_token":"..."}`)
//	plain, err := encryptor.Decrypt(sealed)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"oauth-token-cache/internal/common/errors"
)

const (
	kdfIterations = 10000
	keyLength     = 32
)

// kdfSalt is static so every process sharing a store derives the same key
// from the same CONFIG_ENCRYPTION_KEY.
var kdfSalt = []byte("oauth-token-cache-salt")

// ConfigEncryptor seals and opens strings with AES-256-GCM.
// It is safe for concurrent use.
type ConfigEncryptor struct {
	aead cipher.AEAD
}

// NewConfigEncryptor derives a 32-byte key from key with PBKDF2-SHA256.
// An empty key is rejected.
func NewConfigEncryptor(key string) (*ConfigEncryptor, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	derivedKey := pbkdf2.Key([]byte(key), kdfSalt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &ConfigEncryptor{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext). Empty input stays empty.
func (e *ConfigEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Empty input stays empty.
func (e *ConfigEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}
	return string(plaintext), nil
}
