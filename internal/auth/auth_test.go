package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

type fakeUserSource struct {
	users map[string]*models.User
	err   error
}

func (f *fakeUserSource) GetUserByPhone(phone string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[phone], nil
}

func newSource(t *testing.T, password, pin string, pinEnabled bool) *fakeUserSource {
	t.Helper()
	u := &models.User{ID: "u1", PhoneNumber: "+254700000001", PINEnabled: pinEnabled}
	var err error
	if u.PasswordHash, err = HashSecret(password); err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if pin != "" {
		if u.PINHash, err = HashSecret(pin); err != nil {
			t.Fatalf("failed to hash PIN: %v", err)
		}
	}
	return &fakeUserSource{users: map[string]*models.User{u.PhoneNumber: u}}
}

func TestVerifyPassword(t *testing.T) {
	v := NewStoreVerifier(newSource(t, "orchid22", "", false))
	u, err := v.Verify(context.Background(), "+254700000001", "orchid22")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestVerifyPIN(t *testing.T) {
	v := NewStoreVerifier(newSource(t, "orchid22", "4321", true))
	if _, err := v.Verify(context.Background(), "+254700000001", "4321"); err != nil {
		t.Fatalf("PIN verify failed: %v", err)
	}
}

// A 4-digit password is legal; a PIN-shaped secret that misses the PIN hash
// must still be checked against the password hash.
func TestVerifyFourDigitPasswordFallsThrough(t *testing.T) {
	v := NewStoreVerifier(newSource(t, "9876", "4321", true))
	if _, err := v.Verify(context.Background(), "+254700000001", "9876"); err != nil {
		t.Fatalf("4-digit password verify failed: %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewStoreVerifier(newSource(t, "orchid22", "", false))
	_, err := v.Verify(context.Background(), "+254700000001", "nope")
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyPINDisabled(t *testing.T) {
	v := NewStoreVerifier(newSource(t, "orchid22", "4321", false))
	_, err := v.Verify(context.Background(), "+254700000001", "4321")
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("disabled PIN should not verify, got %v", err)
	}
}

func TestVerifyUnknownPhone(t *testing.T) {
	v := NewStoreVerifier(newSource(t, "orchid22", "", false))
	_, err := v.Verify(context.Background(), "+254799999999", "orchid22")
	if !errors.Is(err, models.ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestVerifyLookupError(t *testing.T) {
	v := NewStoreVerifier(&fakeUserSource{err: errors.New("db down")})
	_, err := v.Verify(context.Background(), "+254700000001", "orchid22")
	if err == nil || errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("lookup failure should surface as a distinct error, got %v", err)
	}
}

func TestIsPINCandidate(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"1234", true},
		{"0000", true},
		{"123", false},
		{"12345", false},
		{"12a4", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPINCandidate(tt.secret); got != tt.want {
			t.Errorf("IsPINCandidate(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
