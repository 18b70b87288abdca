// Package crypto seals connection credential payloads for storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

// ErrInvalidKey is returned when the sealing key is empty.
var ErrInvalidKey = errors.New("invalid credentials key: must not be empty")

// CredentialSealer encrypts credential maps with AES-256-GCM. The stored form
// is base64(nonce || ciphertext || tag).
type CredentialSealer struct {
	gcm cipher.AEAD
}

// NewCredentialSealer accepts a base64-encoded 32-byte key (openssl rand -base64 32)
// or any passphrase, which is hashed to 32 bytes with SHA-256.
func NewCredentialSealer(keyInput string) (*CredentialSealer, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	key, err := base64.StdEncoding.DecodeString(keyInput)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(keyInput))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &CredentialSealer{gcm: gcm}, nil
}

// SealJSON marshals creds and seals them. A nil or empty map seals to "",
// which is stored as NULL.
func (s *CredentialSealer) SealJSON(creds map[string]any) (string, error) {
	if len(creds) == 0 {
		return "", nil
	}
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenJSON reverses SealJSON. Anything that fails authentication, including
// data sealed under a different key, is ErrCredentialsKeyMismatch.
func (s *CredentialSealer) OpenJSON(sealed string) (map[string]any, error) {
	if sealed == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", apperrors.ErrCredentialsKeyMismatch)
	}
	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize+s.gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", apperrors.ErrCredentialsKeyMismatch)
	}

	plaintext, err := s.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", apperrors.ErrCredentialsKeyMismatch)
	}

	var creds map[string]any
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return creds, nil
}
