package session

import (
	"context"
	"testing"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	got, err := s.Get(ctx, "+254700000001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for an unknown phone")
	}

	sess := models.DialogSession{
		PhoneNumber:    "+254700000001",
		Entries:        []string{"secret", "1"},
		LastActivity:   time.Now(),
		TimeoutMinutes: 2,
	}
	if err := s.Put(ctx, sess.PhoneNumber, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err = s.Get(ctx, sess.PhoneNumber)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || len(got.Entries) != 2 {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := s.Clear(ctx, sess.PhoneNumber); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got, _ := s.Get(ctx, sess.PhoneNumber); got != nil {
		t.Error("session should be gone after Clear")
	}
}

func TestInMemoryStoreClearMissingIsNotError(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Clear(context.Background(), "+254700000009"); err != nil {
		t.Errorf("clearing a missing session should not fail: %v", err)
	}
}

// Mutating a returned session must not leak back into the store.
func TestInMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	sess := models.DialogSession{
		PhoneNumber: "+254700000001",
		Entries:     []string{"secret"},
		Resume:      &models.ResumeSnapshot{Service: "cycle", Entries: []string{"1", "5"}},
	}
	if err := s.Put(ctx, sess.PhoneNumber, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := s.Get(ctx, sess.PhoneNumber)
	got.Entries[0] = "mutated"
	got.Resume.Entries[0] = "mutated"
	got.Resume.Service = "mutated"

	fresh, _ := s.Get(ctx, sess.PhoneNumber)
	if fresh.Entries[0] != "secret" {
		t.Error("entry mutation leaked into the store")
	}
	if fresh.Resume.Entries[0] != "1" || fresh.Resume.Service != "cycle" {
		t.Error("resume snapshot mutation leaked into the store")
	}
}
