package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrSealedValue indicates a stored value could not be opened with the key.
var ErrSealedValue = errors.New("sealed value cannot be opened")

// SealedKV encrypts values at rest with NaCl secretbox before handing them to
// the wrapped store. Keys are stored in the clear.
type SealedKV struct {
	inner KV
	key   [32]byte
}

// ParseSealKey decodes a 32-byte key given as 64 hex characters.
func ParseSealKey(s string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return key, fmt.Errorf("seal key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("seal key: want %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Sealed wraps inner so every value is encrypted with key.
func Sealed(inner KV, key [32]byte) *SealedKV {
	return &SealedKV{inner: inner, key: key}
}

func (s *SealedKV) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	box, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(box) < nonceSize {
		return "", false, ErrSealedValue
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", false, ErrSealedValue
	}
	return string(plain), true, nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(box))
}

func (s *SealedKV) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

func (s *SealedKV) Close() error {
	return s.inner.Close()
}
