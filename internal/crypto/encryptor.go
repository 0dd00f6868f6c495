package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryptor encrypts and decrypts small strings for storage at rest.
// The stored session token is recoverable by design, so this is an AEAD
// rather than a one-way hash.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type aeadEncryptor struct {
	key [32]byte
}

// NewEncryptor derives a chacha20poly1305 key from the configured secret.
func NewEncryptor(secret []byte) (Encryptor, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("encryption secret is empty")
	}
	return &aeadEncryptor{key: sha256.Sum256(secret)}, nil
}

// Encrypt seals plaintext with a random nonce and returns nonce||ciphertext
// base64 URL-encoded.
func (e *aeadEncryptor) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(e.key[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or foreign-key ciphertexts fail.
func (e *aeadEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(e.key[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
