package media

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func TestGenerateChannelToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewSigner("app-1", "cert-secret", 30*time.Minute)
	s.now = func() time.Time { return now }

	tok, ok := s.GenerateChannelToken("abcd1234", 42)
	if !ok || tok == "" {
		t.Fatalf("token not issued")
	}

	claims := &channelClaims{}
	parser := &jwt.Parser{SkipClaimsValidation: true}
	if _, err := parser.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return []byte("cert-secret"), nil
	}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AppID != "app-1" || claims.Channel != "abcd1234" || claims.UID != 42 || claims.Role != RolePublisher {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ExpiresAt != now.Add(30*time.Minute).Unix() {
		t.Fatalf("exp = %d", claims.ExpiresAt)
	}
}

func TestGenerateChannelToken_NoCertificate(t *testing.T) {
	s := NewSigner("app-1", "", 0)
	if tok, ok := s.GenerateChannelToken("room", 1); ok || tok != "" {
		t.Fatalf("got %q %v, want disabled", tok, ok)
	}
	if s.TTL() != DefaultTokenTTL {
		t.Fatalf("ttl = %v", s.TTL())
	}
}
