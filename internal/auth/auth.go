// Package auth verifies USSD user credentials against the record store.
//
// A secret may be an account password or, when PIN login is enabled, a 4-digit
// PIN. Exactly-4-digit secrets are tried against the PIN hash first, then fall
// back to the password hash.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Verifier is the credential verification contract consumed by the dialog engine.
type Verifier interface {
	// Verify checks phone + secret and returns the matching user.
	// Returns models.ErrUnknownUser or models.ErrInvalidCredentials on failure.
	Verify(ctx context.Context, phone, secret string) (*models.User, error)
}

// UserSource is the subset of the record store the verifier needs.
type UserSource interface {
	GetUserByPhone(phone string) (*models.User, error)
}

// StoreVerifier verifies credentials against bcrypt hashes held in the record store.
type StoreVerifier struct {
	users UserSource
}

// NewStoreVerifier creates a Verifier backed by the given user source.
func NewStoreVerifier(users UserSource) *StoreVerifier {
	return &StoreVerifier{users: users}
}

// Verify implements Verifier.
func (v *StoreVerifier) Verify(ctx context.Context, phone, secret string) (*models.User, error) {
	user, err := v.users.GetUserByPhone(phone)
	if err != nil {
		slog.Error("StoreVerifier Verify lookup failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		slog.Debug("StoreVerifier Verify unknown phone", "phone", phone)
		return nil, models.ErrUnknownUser
	}

	if IsPINCandidate(secret) && user.PINEnabled && user.PINHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(secret)) == nil {
			slog.Debug("StoreVerifier Verify succeeded via PIN", "phone", phone)
			return user, nil
		}
		// A 4-digit password is legal, so fall through to the password hash.
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)) == nil {
		slog.Debug("StoreVerifier Verify succeeded via password", "phone", phone)
		return user, nil
	}

	slog.Warn("StoreVerifier Verify failed", "phone", phone)
	return nil, models.ErrInvalidCredentials
}

// IsPINCandidate reports whether the secret has the shape of a 4-digit PIN.
func IsPINCandidate(secret string) bool {
	if len(secret) != 4 {
		return false
	}
	for i := 0; i < len(secret); i++ {
		if secret[i] < '0' || secret[i] > '9' {
			return false
		}
	}
	return true
}

// HashSecret hashes a password or PIN for storage.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}
