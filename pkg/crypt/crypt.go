// Package crypt seals small secrets at rest, such as the client's saved
// session token.
//
// A sealed value is "v1." followed by base64url(salt || nonce || ciphertext).
// The key is derived from the passphrase and the per-value salt with
// Argon2id; the cipher is XChaCha20-Poly1305.
//
//	box, _ := crypt.New(passphrase)
//	sealed, _ := box.SealJSON(state)
//	err := box.OpenJSON(sealed, &state)
package crypt

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrOpen covers every failure to open a value: wrong passphrase, tampering
// or a malformed string.
var ErrOpen = errors.New("crypt: cannot open sealed value")

const (
	version  = "v1."
	saltSize = 16

	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
)

var encoding = base64.RawURLEncoding

type Box struct {
	passphrase []byte
}

func New(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("crypt: empty passphrase")
	}
	return &Box{passphrase: []byte(passphrase)}, nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(b.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	return chacha20poly1305.NewX(key)
}

func (b *Box) Seal(plain []byte) (string, error) {
	buf := make([]byte, saltSize+chacha20poly1305.NonceSizeX, saltSize+chacha20poly1305.NonceSizeX+len(plain)+chacha20poly1305.Overhead)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypt: random: %w", err)
	}
	salt, nonce := buf[:saltSize], buf[saltSize:]
	a, err := b.aead(salt)
	if err != nil {
		return "", fmt.Errorf("crypt: %w", err)
	}
	return version + encoding.EncodeToString(a.Seal(buf, nonce, plain, nil)), nil
}

func (b *Box) Open(sealed string) ([]byte, error) {
	body, ok := strings.CutPrefix(sealed, version)
	if !ok {
		return nil, ErrOpen
	}
	raw, err := encoding.DecodeString(body)
	if err != nil || len(raw) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrOpen
	}
	salt, rest := raw[:saltSize], raw[saltSize:]
	a, err := b.aead(salt)
	if err != nil {
		return nil, ErrOpen
	}
	plain, err := a.Open(nil, rest[:a.NonceSize()], rest[a.NonceSize():], nil)
	if err != nil {
		return nil, ErrOpen
	}
	return plain, nil
}

func (b *Box) SealJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypt: %w", err)
	}
	return b.Seal(raw)
}

func (b *Box) OpenJSON(sealed string, dest any) error {
	raw, err := b.Open(sealed)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
