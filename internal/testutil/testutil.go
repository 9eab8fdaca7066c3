// Package testutil provides common test utilities and helpers for AfyaDial tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/api"
	"github.com/AfyaLink/AfyaDial/internal/auth"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/session"
	"github.com/AfyaLink/AfyaDial/internal/store"
	"github.com/AfyaLink/AfyaDial/internal/ussd"
)

// NewTestServer creates a test API server with in-memory dependencies.
// This centralizes the test server creation logic used across multiple test files.
func NewTestServer() (*api.Server, *store.InMemoryStore) {
	records := store.NewInMemoryStore()
	sessions := session.NewInMemoryStore()
	engine := ussd.NewEngine(sessions, records, auth.NewStoreVerifier(records), messaging.NoopNotifier{})
	return api.NewServer(engine), records
}

// SeedUser registers a user with the given phone number and password and
// returns the stored record.
func SeedUser(t *testing.T, records store.Store, phone, password string) models.User {
	t.Helper()
	hash, err := auth.HashSecret(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := models.User{
		ID:           uuid.NewString(),
		PhoneNumber:  phone,
		Name:         "Test User",
		AccountType:  models.AccountTypeAdolescent,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := records.SaveUser(u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

// NewUssdRequest builds the form-encoded POST an aggregator gateway sends.
func NewUssdRequest(t *testing.T, sessionID, phone, text string) *http.Request {
	t.Helper()
	form := url.Values{}
	form.Set("sessionId", sessionID)
	form.Set("phoneNumber", phone)
	form.Set("text", text)
	req, err := http.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("failed to create USSD request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertReplyPrefix checks that a USSD reply starts with CON or END as expected.
func AssertReplyPrefix(t *testing.T, rr *httptest.ResponseRecorder, prefix string) string {
	t.Helper()
	body := rr.Body.String()
	if !strings.HasPrefix(body, prefix+" ") {
		t.Errorf("expected reply starting with %q, got %q", prefix, body)
	}
	return strings.TrimPrefix(body, prefix+" ")
}
