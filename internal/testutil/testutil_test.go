package testutil

import (
	"net/http/httptest"
	"testing"
)

func TestNewTestServerServesHealth(t *testing.T) {
	server, _ := NewTestServer()
	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	AssertHTTPStatus(t, 200, rr.Code, "health check")
}

func TestSeedUserIsRetrievable(t *testing.T) {
	_, records := NewTestServer()
	u := SeedUser(t, records, "+254700000001", "secret123")

	got, err := records.GetUserByPhone("+254700000001")
	if err != nil {
		t.Fatalf("GetUserByPhone failed: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("seeded user not found by phone")
	}
}
