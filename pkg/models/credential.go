package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the default cost parameter for bcrypt hashing.
// Cost 12 keeps interactive logins under ~300ms on current hardware.
const DefaultBcryptCost = 12

// Password length constraints. bcrypt silently truncates at 72 bytes,
// so the upper bound is enforced explicitly.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Password validation errors.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters")
)

// TokenPrefix is the printable prefix of every issued API token secret.
// It lets clients and log scrubbers recognise a hub token on sight.
const TokenPrefix = "silo_"

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword checks if a password matches a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks if a password meets the length requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// NewTokenSecret generates a fresh API token secret and its stored digest.
//
// The secret is returned exactly once; only the digest is persisted.
// Tokens are looked up by digest, so the digest must be deterministic:
// SHA-256 of the secret, hex encoded.
func NewTokenSecret() (secret, digest string, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate token secret: %w", err)
	}

	secret = TokenPrefix + hex.EncodeToString(raw)
	return secret, DigestTokenSecret(secret), nil
}

// DigestTokenSecret returns the stored digest for a token secret.
func DigestTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyTokenSecret compares a presented secret against a stored digest
// in constant time.
func VerifyTokenSecret(secret, digest string) bool {
	computed := DigestTokenSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
