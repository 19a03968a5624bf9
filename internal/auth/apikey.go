package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/pgsteward/pgsteward/internal/models"
)

// VerifyAPIKey compares a presented API key against the configured bcrypt
// hash. bcrypt comparison is constant-time with respect to the key.
func VerifyAPIKey(hash, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return models.ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey produces a bcrypt hash suitable for AUTH_API_KEY_HASH. Used
// by operators to provision a key, never on the request path.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
