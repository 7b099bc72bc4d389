// Package identity проверяет, кто делает запрос. Токены выпускает auth-service,
// здесь они только проверяются.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

var (
	ErrMissingToken   = fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	ErrInvalidToken   = fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	ErrInvalidSubject = fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
	ErrTokenExpired   = fmt.Errorf("%w: token expired or not valid yet", domain.ErrUnauthenticated)
)

// Credentials — то, что транспорт достал из запроса.
type Credentials struct {
	Token  string // без префикса Bearer
	UserID string // X-User-ID, только для режима доверенных заголовков
	Role   string // X-User-Role
}

type Authenticator interface {
	Authenticate(ctx context.Context, cred Credentials) (domain.Caller, error)
}

// BearerToken вырезает токен из "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	if len(header) <= 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(header[7:])
	return tok, tok != ""
}

// TrustedHeaders — режим за api-gateway: токен уже проверен шлюзом,
// личность берётся из X-User-ID / X-User-Role.
type TrustedHeaders struct{}

func (TrustedHeaders) Authenticate(_ context.Context, cred Credentials) (domain.Caller, error) {
	if cred.Token == "" {
		return domain.Caller{}, ErrMissingToken
	}
	if cred.UserID == "" {
		return domain.Caller{}, fmt.Errorf("%w: missing X-User-ID", domain.ErrUnauthenticated)
	}
	uid, err := parseUserID(cred.UserID)
	if err != nil {
		return domain.Caller{}, err
	}
	return domain.Caller{UserID: uid, Role: domain.ParseRole(cred.Role)}, nil
}

func parseUserID(s string) (domain.UserID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(ErrInvalidSubject, err)
	}
	return domain.UserID(id), nil
}
