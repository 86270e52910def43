package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrEmptyKey         = errors.New("signing key must not be empty")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer computes and verifies HMAC-SHA256 integrity codes with a shared
// secret. The key is injected, never hardcoded; the same signer guards both
// the broker envelopes and the client frame signatures.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer from a base64-encoded shared secret.
func NewSigner(keyB64 string) (*Signer, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 signing key: %w", err)
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return &Signer{key: key}, nil
}

// NewSignerFromBytes creates a Signer from a raw key.
func NewSignerFromBytes(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return &Signer{key: key}, nil
}

// Sign returns the base64-encoded HMAC-SHA256 of data.
func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the integrity code over data and compares it to the
// transmitted signature in constant time.
func (s *Signer) Verify(data []byte, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: invalid base64 encoding", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
