package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PasswordCost is the bcrypt work factor for stored passwords.
	PasswordCost = 12
	bcryptLimit  = 72
)

// ErrPasswordEmpty is returned when hashing an empty password.
var ErrPasswordEmpty = errors.New("password cannot be empty")

// HashPassword returns a salted bcrypt hash of password.
// Inputs longer than bcrypt's 72-byte limit are pre-hashed with SHA-256.
func HashPassword(password string) (string, error) {
	return hashPasswordCost(password, PasswordCost)
}

func hashPasswordCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrPasswordEmpty
	}

	hash, err := bcrypt.GenerateFromPassword(passwordInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// ComparePassword reports whether password matches hash. Any error, including
// a malformed hash, is a mismatch.
func ComparePassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), passwordInput(password)) == nil
}

func passwordInput(password string) []byte {
	if len(password) <= bcryptLimit {
		return []byte(password)
	}

	sum := sha256.Sum256([]byte(password))

	return sum[:]
}
