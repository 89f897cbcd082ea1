package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHasher_Hash(t *testing.T) {
	t.Run("single round matches sha256 of salt and secret", func(t *testing.T) {
		h := Hasher{Rounds: 1}
		sum := sha256.Sum256([]byte("salt" + "4321"))
		want := hex.EncodeToString(sum[:])

		if got := h.Hash("4321", "salt"); got != want {
			t.Errorf("Hash() = %q, want %q", got, want)
		}
	})

	t.Run("rounds feed into each other", func(t *testing.T) {
		h := Hasher{Rounds: 2}
		first := sha256.Sum256([]byte("s" + "p"))
		second := sha256.Sum256(first[:])
		want := hex.EncodeToString(second[:])

		if got := h.Hash("p", "s"); got != want {
			t.Errorf("Hash() = %q, want %q", got, want)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		h := Default()
		a := h.Hash("admin123", "abcdef")
		b := h.Hash("admin123", "abcdef")
		if a != b {
			t.Errorf("Hash() not deterministic: %q != %q", a, b)
		}
		if len(a) != 64 {
			t.Errorf("len(Hash()) = %d, want 64", len(a))
		}
	})

	t.Run("salt changes digest", func(t *testing.T) {
		h := Hasher{Rounds: 10}
		if h.Hash("4321", "a") == h.Hash("4321", "b") {
			t.Error("Hash() produced equal digests for different salts")
		}
	})

	t.Run("empty secret hashes normally", func(t *testing.T) {
		h := Hasher{Rounds: 10}
		if got := h.Hash("", "salt"); len(got) != 64 {
			t.Errorf("Hash(\"\") = %q, want 64 hex chars", got)
		}
	})

	t.Run("zero rounds falls back to default", func(t *testing.T) {
		if (Hasher{}).Hash("x", "y") != Default().Hash("x", "y") {
			t.Error("zero-value Hasher does not use DefaultRounds")
		}
	})
}

func TestHasher_Verify(t *testing.T) {
	h := Hasher{Rounds: 1000}

	tests := []struct {
		name   string
		secret string
		salt   string
	}{
		{name: "pin", secret: "4321", salt: "0011223344556677"},
		{name: "password", secret: "correct horse battery staple", salt: "ffeeddccbbaa9988"},
		{name: "unicode", secret: "pässwörd", salt: "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest := h.Hash(tt.secret, tt.salt)
			if !h.Verify(tt.secret, tt.salt, digest) {
				t.Error("Verify() = false for correct secret")
			}
			if h.Verify(tt.secret+"x", tt.salt, digest) {
				t.Error("Verify() = true for wrong secret")
			}
			if h.Verify(tt.secret, tt.salt+"x", digest) {
				t.Error("Verify() = true for wrong salt")
			}
			if h.Verify(tt.secret, tt.salt, strings.ToUpper(digest)) {
				t.Error("Verify() = true for differently encoded digest")
			}
		})
	}
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	b, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}

	if len(a) != SaltBytes*2 {
		t.Errorf("len(NewSalt()) = %d, want %d", len(a), SaltBytes*2)
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Errorf("NewSalt() = %q is not hex: %v", a, err)
	}
	if a == b {
		t.Error("NewSalt() returned the same salt twice")
	}
}

func TestHasher_HashNew(t *testing.T) {
	h := Hasher{Rounds: 10}
	digest, salt, err := h.HashNew("4321")
	if err != nil {
		t.Fatalf("HashNew() error = %v", err)
	}
	if !h.Verify("4321", salt, digest) {
		t.Error("Verify() = false for HashNew() output")
	}
}
