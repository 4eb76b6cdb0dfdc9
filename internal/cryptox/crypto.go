// Package cryptox provides the secret-handling helpers used by the engines:
// generation of one-time transfer tokens and emergency pass codes, and the
// keyed digest under which they are stored.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// passCodeAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const passCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// PassCodeLength is the number of characters in an emergency pass code.
const PassCodeLength = 8

// Hasher computes keyed digests of one-time secrets. Only digests are
// persisted, so a database dump does not reveal usable tokens.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher keyed with secret. blake2b accepts keys of at
// most 64 bytes; longer secrets are rejected.
func NewHasher(secret []byte) (*Hasher, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("hasher: empty key")
	}
	if len(secret) > blake2b.Size {
		return nil, fmt.Errorf("hasher: key longer than %d bytes", blake2b.Size)
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return &Hasher{key: k}, nil
}

// Hash returns the hex encoded keyed blake2b-256 digest of secret.
// Pass codes are normalised to upper case before hashing.
func (h *Hasher) Hash(secret string) string {
	mac, _ := blake2b.New256(h.key) // only fails for oversize keys, checked in NewHasher
	mac.Write([]byte(strings.ToUpper(strings.TrimSpace(secret))))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether secret hashes to digest, in constant time.
func (h *Hasher) Equal(secret, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(secret)), []byte(digest)) == 1
}

// NewToken returns a random, URL-safe single-use token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewPassCode returns a random pass code drawn from passCodeAlphabet.
func NewPassCode() (string, error) {
	buf := make([]byte, PassCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, PassCodeLength)
	for i, b := range buf {
		out[i] = passCodeAlphabet[int(b)%len(passCodeAlphabet)]
	}
	return string(out), nil
}
