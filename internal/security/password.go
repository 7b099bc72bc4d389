package security

import (
	"errors"
	"fmt"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordTooShort = fmt.Errorf("%w: room password too short", domain.ErrInvalidArgument)

type BcryptConfig struct {
	Cost      int // по умолчанию bcrypt.DefaultCost
	MinLength int // по умолчанию 4
}

func HashPassword(plain string, cfg *BcryptConfig) (string, error) {
	minLen := 4
	cost := bcrypt.DefaultCost

	if cfg != nil {
		if cfg.MinLength > 0 {
			minLen = cfg.MinLength
		}
		if cfg.Cost > 0 {
			cost = cfg.Cost
		}
	}

	if len(plain) < minLen {
		return "", ErrPasswordTooShort
	}
	// bcrypt молча не принимает больше 72 байт
	if len(plain) > 72 {
		return "", fmt.Errorf("%w: room password too long", domain.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword: nil при совпадении, domain.ErrBadPassword при несовпадении.
func ComparePassword(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrBadPassword
	}
	return err
}
