// Package media выдаёт токены доступа к медиаканалу комнаты.
package media

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	RolePublisher   = "publisher"
	DefaultTokenTTL = time.Hour
)

type channelClaims struct {
	AppID   string `json:"app_id"`
	Channel string `json:"channel"`
	UID     int64  `json:"uid"`
	Role    string `json:"role"`
	jwt.StandardClaims
}

// Signer подписывает токены сертификатом приложения. Без сертификата токены
// не выдаются (режим разработки), клиент подключается к каналу без токена.
type Signer struct {
	appID       string
	certificate []byte
	ttl         time.Duration
	now         func() time.Time
}

func NewSigner(appID, certificate string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{
		appID:       appID,
		certificate: []byte(certificate),
		ttl:         ttl,
		now:         time.Now,
	}
}

func (s *Signer) AppID() string      { return s.appID }
func (s *Signer) TTL() time.Duration { return s.ttl }
func (s *Signer) Enabled() bool      { return len(s.certificate) > 0 }

// GenerateChannelToken возвращает ("", false), если сертификат не задан.
func (s *Signer) GenerateChannelToken(channel string, uid int64) (string, bool) {
	if !s.Enabled() {
		return "", false
	}
	now := s.now()
	claims := channelClaims{
		AppID:   s.appID,
		Channel: channel,
		UID:     uid,
		Role:    RolePublisher,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.certificate)
	if err != nil {
		return "", false
	}
	return tok, true
}
