package identity

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"github.com/golang-jwt/jwt"
)

// AccessClaims совпадают с тем, что выпускает auth-service, плюс роль.
type AccessClaims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

// JWTVerifier проверяет RS256 access-токены.
type JWTVerifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
}

func NewJWTVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *JWTVerifier {
	return &JWTVerifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// LoadJWTVerifier читает публичный ключ из PEM-файла.
func LoadJWTVerifier(path, issuer, audience string, clockSkew time.Duration) (*JWTVerifier, error) {
	pub, err := LoadRSAPublicKeyFromPEM(path)
	if err != nil {
		return nil, err
	}
	return NewJWTVerifier(pub, issuer, audience, clockSkew), nil
}

func (v *JWTVerifier) Authenticate(_ context.Context, cred Credentials) (domain.Caller, error) {
	if cred.Token == "" {
		return domain.Caller{}, ErrMissingToken
	}
	claims, err := v.ParseAndValidate(cred.Token)
	if err != nil {
		return domain.Caller{}, err
	}
	uid, err := parseUserID(claims.Subject)
	if err != nil {
		return domain.Caller{}, err
	}
	return domain.Caller{UserID: uid, Role: domain.ParseRole(claims.Role)}, nil
}

func (v *JWTVerifier) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := &jwt.Parser{SkipClaimsValidation: true} // время проверяем сами, с допуском clockSkew
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, ErrInvalidToken
		}
		return v.public, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidToken
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidToken
	}

	now := v.now()
	if claims.ExpiresAt == 0 {
		return nil, ErrTokenExpired
	}
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	if now.After(exp) || (claims.NotBefore != 0 && now.Before(nbf)) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
