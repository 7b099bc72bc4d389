package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	cfg := &BcryptConfig{Cost: bcrypt.MinCost}
	hash, err := HashPassword("s3cret", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal plain text")
	}
	if err := ComparePassword(hash, "s3cret"); err != nil {
		t.Fatalf("Compare ok: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, domain.ErrBadPassword) {
		t.Fatalf("Compare wrong = %v", err)
	}
}

func TestHashPassword_Length(t *testing.T) {
	cfg := &BcryptConfig{Cost: bcrypt.MinCost, MinLength: 6}
	if _, err := HashPassword("abc", cfg); !errors.Is(err, ErrPasswordTooShort) || !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("short err = %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", 73), cfg); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("long err = %v", err)
	}
}

func TestNewPublicToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok := NewPublicToken()
		if len(tok) != PublicTokenLen {
			t.Fatalf("len(%q) = %d", tok, len(tok))
		}
		seen[tok] = true
	}
	if len(seen) < 99 {
		t.Fatalf("tokens repeat too often: %d unique", len(seen))
	}
}

func TestRandomStringURLSafe(t *testing.T) {
	s, err := RandomStringURLSafe(16)
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(s, "+/=") {
		t.Fatalf("not url safe: %q", s)
	}
}
