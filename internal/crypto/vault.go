// Package crypto implements the token encryption vault: AES-256-GCM AEAD
// with a per-process static key and a unique nonce on every call.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	syncerrors "github.com/clipmetrics/syncengine/internal/errors"
)

const envelopePrefix = "v1:"

// Vault encrypts and decrypts opaque token strings with a single AES-256 key.
type Vault struct {
	key []byte // 32 bytes
}

// NewVault builds a Vault from a hex-encoded 32-byte key, as supplied by the
// token_enc_key configuration value. No key rotation is supported.
func NewVault(hexKey string) (*Vault, error) {
	if hexKey == "" {
		return nil, &syncerrors.CryptoKeyMissingError{Reason: "token_enc_key is empty"}
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &syncerrors.CryptoKeyMissingError{Reason: fmt.Sprintf("not valid hex: %v", err)}
	}
	if len(key) != 32 {
		return nil, &syncerrors.CryptoKeyMissingError{Reason: fmt.Sprintf("key is %d bytes, want 32", len(key))}
	}
	return &Vault{key: key}, nil
}

// Encrypt returns a versioned, base64url-encoded envelope: a fresh random
// nonce, followed by the GCM-sealed ciphertext (which carries its own tag).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("constructing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("constructing gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A failed tag check (tampering, wrong key, or a
// non-envelope input) surfaces as CryptoIntegrityFailureError so callers can
// mark the owning account ERROR rather than silently fail.
func (v *Vault) Decrypt(envelope string) (string, error) {
	rest, ok := strings.CutPrefix(envelope, envelopePrefix)
	if !ok {
		return "", &syncerrors.CryptoIntegrityFailureError{Err: fmt.Errorf("missing %q envelope prefix", envelopePrefix)}
	}

	sealed, err := base64.RawURLEncoding.DecodeString(rest)
	if err != nil {
		return "", &syncerrors.CryptoIntegrityFailureError{Err: fmt.Errorf("decoding base64: %w", err)}
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("constructing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("constructing gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", &syncerrors.CryptoIntegrityFailureError{Err: fmt.Errorf("ciphertext shorter than nonce")}
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &syncerrors.CryptoIntegrityFailureError{Err: err}
	}
	return string(plaintext), nil
}
