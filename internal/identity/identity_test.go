package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"github.com/golang-jwt/jwt"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims AccessClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func claimsFor(sub string, role string, now time.Time) AccessClaims {
	return AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   sub,
			Issuer:    "cwrk-auth",
			Audience:  "cwrk-api",
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(15 * time.Minute).Unix(),
		},
		Role: role,
	}
}

func TestJWTVerifier_Authenticate(t *testing.T) {
	key := newKey(t)
	now := time.Now()
	v := NewJWTVerifier(&key.PublicKey, "cwrk-auth", "cwrk-api", 30*time.Second)

	caller, err := v.Authenticate(context.Background(), Credentials{Token: sign(t, key, claimsFor("42", "admin", now))})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if caller.UserID != 42 || !caller.IsAdmin() {
		t.Fatalf("caller = %+v", caller)
	}

	caller, err = v.Authenticate(context.Background(), Credentials{Token: sign(t, key, claimsFor("7", "", now))})
	if err != nil || caller.Role != domain.RoleUser {
		t.Fatalf("default role: %+v %v", caller, err)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	now := time.Now()
	v := NewJWTVerifier(&key.PublicKey, "cwrk-auth", "cwrk-api", 30*time.Second)

	expired := claimsFor("1", "", now.Add(-time.Hour))
	wrongAud := claimsFor("1", "", now)
	wrongAud.Audience = "someone-else"
	badSub := claimsFor("abc", "", now)

	cases := map[string]string{
		"missing":     "",
		"garbage":     "not.a.jwt",
		"foreign key": sign(t, other, claimsFor("1", "", now)),
		"expired":     sign(t, key, expired),
		"wrong aud":   sign(t, key, wrongAud),
		"non-int sub": sign(t, key, badSub),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Authenticate(context.Background(), Credentials{Token: tok})
			if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("err = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestJWTVerifier_ClockSkew(t *testing.T) {
	key := newKey(t)
	now := time.Now()
	v := NewJWTVerifier(&key.PublicKey, "", "", time.Minute)
	v.now = func() time.Time { return now.Add(15*time.Minute + 30*time.Second) }

	if _, err := v.Authenticate(context.Background(), Credentials{Token: sign(t, key, claimsFor("1", "", now))}); err != nil {
		t.Fatalf("within skew: %v", err)
	}
}

func TestLoadJWTVerifier(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "pub.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	v, err := LoadJWTVerifier(path, "cwrk-auth", "cwrk-api", 0)
	if err != nil {
		t.Fatalf("LoadJWTVerifier: %v", err)
	}
	if _, err := v.Authenticate(context.Background(), Credentials{Token: sign(t, key, claimsFor("3", "", time.Now()))}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestTrustedHeaders(t *testing.T) {
	var a TrustedHeaders
	caller, err := a.Authenticate(context.Background(), Credentials{Token: "t", UserID: "15", Role: "admin"})
	if err != nil || caller.UserID != 15 || !caller.IsAdmin() {
		t.Fatalf("caller = %+v, %v", caller, err)
	}
	for _, cred := range []Credentials{
		{UserID: "15"},
		{Token: "t"},
		{Token: "t", UserID: "-3"},
		{Token: "t", UserID: "x"},
	} {
		if _, err := a.Authenticate(context.Background(), cred); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%+v: err = %v", cred, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("got %q %v", tok, ok)
	}
	if tok, ok := BearerToken("bearer xyz"); !ok || tok != "xyz" {
		t.Fatalf("got %q %v", tok, ok)
	}
	if _, ok := BearerToken("Basic abc"); ok {
		t.Fatal("basic must be rejected")
	}
	if _, ok := BearerToken("Bearer    "); ok {
		t.Fatal("blank token must be rejected")
	}
}
