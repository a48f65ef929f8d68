// password.go - Salted password hashing

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt" // Password hashing
)

const saltBytes = 16

// ErrMismatch is returned when a password does not match the stored hash.
var ErrMismatch = errors.New("password mismatch")

// NewSalt returns a random hex-encoded salt.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword returns a fresh salt and the bcrypt hash of salt+password.
// The pair is pre-hashed with SHA-256 so long passwords are not truncated
// at bcrypt's 72-byte limit.
func HashPassword(password string) (hash, salt string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	b, err := bcrypt.GenerateFromPassword(prehash(salt, password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), salt, nil
}

// CheckPassword compares a candidate password against the stored hash and salt.
func CheckPassword(hash, salt, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(salt, password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}

func prehash(salt, password string) []byte {
	sum := sha256.Sum256([]byte(salt + password))
	return []byte(hex.EncodeToString(sum[:]))
}
