// Package keyvault encrypts custody private keys at rest with AES-256-GCM.
// Each blob is self-describing: a random nonce and the authentication tag
// travel with the ciphertext, so only the master key is held out-of-band.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// ErrCorruptCiphertext indicates a blob that is malformed or failed
// authentication. Decrypt never returns unauthenticated plaintext.
var ErrCorruptCiphertext = errors.New("corrupt ciphertext")

// Vault performs symmetric encryption of key material with a fixed
// 32-byte master key. The key is read-only after construction.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a 64-character hex master key.
func New(masterKeyHex string) (*Vault, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes hex (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns a
// base64 blob laid out as [12-byte nonce][16-byte tag][ciphertext].
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends ciphertext||tag; reorder to keep the tag ahead of the
	// ciphertext so the blob layout is stable for any payload length.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ct))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed or tampered
// input fails with ErrCorruptCiphertext.
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptCiphertext, err)
	}
	if len(raw) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: blob too short", ErrCorruptCiphertext)
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCorruptCiphertext)
	}
	return string(plaintext), nil
}
