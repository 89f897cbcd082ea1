package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// DefaultRounds is the number of SHA-256 applications used for stored PINs
// and admin passwords. Changing it invalidates every stored digest.
const DefaultRounds = 150_000

// SaltBytes is the entropy of a freshly generated salt.
const SaltBytes = 16

// Hasher derives digests from a salt and a secret by iterating SHA-256.
type Hasher struct {
	Rounds int
}

// Default returns the hasher used for all persisted credentials.
func Default() Hasher {
	return Hasher{Rounds: DefaultRounds}
}

// Hash returns the hex digest of salt+secret after h.Rounds applications of SHA-256.
func (h Hasher) Hash(secret, salt string) string {
	rounds := h.Rounds
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	sum := []byte(salt + secret)
	for i := 0; i < rounds; i++ {
		d := sha256.Sum256(sum)
		sum = d[:]
	}
	return hex.EncodeToString(sum)
}

// Verify recomputes the digest for secret and compares it with digest in constant time.
func (h Hasher) Verify(secret, salt, digest string) bool {
	got := h.Hash(secret, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

// NewSalt returns SaltBytes of crypto/rand entropy, hex encoded.
func NewSalt() (string, error) {
	buf := make([]byte, SaltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashNew generates a salt and hashes secret with it.
func (h Hasher) HashNew(secret string) (digest, salt string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	return h.Hash(secret, salt), salt, nil
}
