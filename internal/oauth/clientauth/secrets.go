package clientauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "authserver/pkg/domain-errors"
)

// GenerateSecret creates a random client secret, base64url encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate client secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret returns the bcrypt hash stored in Client.SecretHash.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeValidation, "client secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "client secret is too long")
		}
		return "", fmt.Errorf("could not hash client secret: %w", err)
	}
	return string(hashed), nil
}

// VerifySecret compares a presented secret with its bcrypt hash. A mismatch is
// reported as invalid_client; malformed hashes are internal errors.
func VerifySecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidClient, msgAuthenticationFailed)
		}
		return fmt.Errorf("could not verify client secret: %w", err)
	}
	return nil
}
