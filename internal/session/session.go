// Package session provides storage for USSD dialog sessions keyed by phone number.
//
// Sessions are small, short-lived records; staleness is evaluated lazily by the
// dialog engine on next contact, so no expiry sweep runs here.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Store is the dialog session storage contract. Implementations must be safe
// for concurrent use across distinct phone numbers; last-writer-wins per key
// is acceptable since the gateway serializes requests per session.
type Store interface {
	// Get returns the session for a phone number, or nil if none exists.
	Get(ctx context.Context, phone string) (*models.DialogSession, error)

	// Put stores or replaces the session for a phone number.
	Put(ctx context.Context, phone string, sess models.DialogSession) error

	// Clear removes the session for a phone number. Clearing a missing
	// session is not an error.
	Clear(ctx context.Context, phone string) error
}

// InMemoryStore keeps sessions in a mutex-guarded map. Suitable for a single
// instance and for tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.DialogSession
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.DialogSession)}
}

// Get returns a copy of the stored session, or nil if absent.
func (s *InMemoryStore) Get(ctx context.Context, phone string) (*models.DialogSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[phone]
	if !ok {
		return nil, nil
	}
	cp := sess
	cp.Entries = append([]string(nil), sess.Entries...)
	if sess.Resume != nil {
		rc := *sess.Resume
		rc.Entries = append([]string(nil), sess.Resume.Entries...)
		cp.Resume = &rc
	}
	return &cp, nil
}

// Put stores or replaces the session.
func (s *InMemoryStore) Put(ctx context.Context, phone string, sess models.DialogSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[phone] = sess
	slog.Debug("InMemoryStore Put", "phone", phone, "entries", len(sess.Entries))
	return nil
}

// Clear removes the session.
func (s *InMemoryStore) Clear(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
	slog.Debug("InMemoryStore Clear", "phone", phone)
	return nil
}
