// Package encryption implements the optional end-to-end AES-256-GCM
// layer for chat payloads. Clients never send their raw key; they send
// a published key hash, and both sides derive the cipher key from that
// hash with SHA-256. The derivation is fixed by the client protocol.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/Desarso/chatrelay/models"
)

// NonceSize is the GCM nonce length prepended to every payload.
const NonceSize = 12

// Cipher encrypts and decrypts opaque payloads under the registry's
// configured key. Every call is independent; safe for concurrent use.
type Cipher struct {
	registry *KeyRegistry
}

// NewCipher wires a cipher to its key registry.
func NewCipher(registry *KeyRegistry) *Cipher {
	return &Cipher{registry: registry}
}

// deriveKey turns the configured key hash into 32 bytes of AES-256 key
// material.
func (c *Cipher) deriveKey() []byte {
	sum := sha256.Sum256([]byte(c.registry.KeyHash()))
	return sum[:]
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey())
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// wire payload base64(nonce || ciphertext || tag). The key hash is
// validated against the registry first.
func (c *Cipher) Encrypt(plaintext []byte, keyHash string) (models.EncryptedPayload, error) {
	if !c.registry.Enabled() {
		return models.EncryptedPayload{}, ErrNotEnabled
	}
	if err := c.registry.Validate(keyHash); err != nil {
		return models.EncryptedPayload{}, err
	}

	aead, err := c.aead()
	if err != nil {
		return models.EncryptedPayload{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return models.EncryptedPayload{
		Data:    base64.StdEncoding.EncodeToString(sealed),
		KeyHash: keyHash,
	}, nil
}

// Decrypt authenticates and opens a wire payload. A bad base64 body or
// a decoded length under the nonce size is ErrMalformedPayload; a GCM
// tag mismatch is ErrAuthenticationFailed. Garbage is never returned.
func (c *Cipher) Decrypt(payload models.EncryptedPayload) ([]byte, error) {
	if !c.registry.Enabled() {
		return nil, ErrNotEnabled
	}
	if err := c.registry.Validate(payload.KeyHash); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	if len(raw) < NonceSize {
		return nil, ErrMalformedPayload
	}

	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := raw[:NonceSize], raw[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
