// Package auth provides password hashing and bearer tokens for the HTTP
// layer.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/slot-engine/booking"
)

// BcryptHasher implements booking.PasswordHasher.
type BcryptHasher struct {
	// Cost defaults to bcrypt.DefaultCost when zero.
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare maps a mismatch to booking.ErrInvalidCredentials.
func (h BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return booking.ErrInvalidCredentials
	}
	return err
}

var _ booking.PasswordHasher = BcryptHasher{}
