package security

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"github.com/google/uuid"
)

// PublicTokenLen — длина публичного токена комнаты.
const PublicTokenLen = 8

// NewPublicToken — короткий токен для ссылки на комнату: первые 8 hex-символов uuid v4.
func NewPublicToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:PublicTokenLen]
}

// RandomBytes генерирует криптостойкие байты
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}

// RandomStringURLSafe генерирует base64url
func RandomStringURLSafe(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
