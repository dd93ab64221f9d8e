package repository

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errUnsealFailed = errors.New("sealed token could not be opened")

// TokenSealer encrypts access tokens before they leave the process
type TokenSealer struct {
	key [32]byte
}

// NewTokenSealer derives the sealing key from secret
func NewTokenSealer(secret string) (*TokenSealer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	s := &TokenSealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("gitcoder session token"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, eris.Wrap(err, "failed to derive sealing key")
	}
	return s, nil
}

// Seal encrypts token into a base64 string carrying its own nonce
func (s *TokenSealer) Seal(token string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", eris.Wrap(err, "failed to generate nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal
func (s *TokenSealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", errUnsealFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	token, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errUnsealFailed
	}
	return string(token), nil
}
