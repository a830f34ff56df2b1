// Package envelope implements the opaque encryption applied to task
// payloads that cross process boundaries on the queues. Render jobs and
// sanitiser verdicts carry personalisation values and recipient
// addresses, so they travel sealed; the codec is the only component that
// sees plaintext.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"postroom/internal/types"
)

// Codec seals and opens JSON payloads with an XChaCha20-Poly1305 AEAD.
// The wire form is base64(nonce || ciphertext); both sides derive the
// same key from the shared secret, so the codec is symmetric.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewCodec derives the sealing key from the shared secret and returns a
// ready codec. The secret is hashed to the fixed AEAD key length, so any
// non-empty secret works.
func NewCodec(secret types.SecretString) (*Codec, error) {
	if secret.Unmask() == "" {
		return nil, types.NewAppError(types.ErrCodeSealedPayload, "sealing secret is empty", nil)
	}
	key := sha256.Sum256([]byte(secret.Unmask()))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("envelope: init cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Seal JSON-encodes v and returns the sealed, base64 wire form.
func (c *Codec) Seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("envelope: marshal payload: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("envelope: nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open decodes and decrypts the wire form into v. Tampered, truncated or
// foreign-key payloads all surface as a sealed-payload AppError: the
// caller cannot distinguish them and must not retry any of them.
func (c *Codec) Open(data string, v any) error {
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return types.NewAppError(types.ErrCodeSealedPayload, "payload is not valid base64", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return types.NewAppError(types.ErrCodeSealedPayload, "payload shorter than nonce", nil)
	}

	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeSealedPayload, "payload failed authentication", err)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return types.NewAppError(types.ErrCodeSealedPayload, "payload is not valid JSON", err)
	}
	return nil
}
