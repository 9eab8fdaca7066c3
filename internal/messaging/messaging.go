// Package messaging provides the outbound message-dispatch sink for AfyaDial.
//
// The dialog engine treats dispatch as fire-and-forget: delivery failures are
// logged, never surfaced to the USSD user.
package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Notifier is the message-dispatch contract consumed by the dialog engine.
type Notifier interface {
	// Notify sends a message to a phone number. Category classifies the
	// message for inbox storage and delivery policy.
	Notify(ctx context.Context, to string, body string, category models.NotificationCategory) error
}

// NoopNotifier discards all messages. Used when no SMS provider is configured.
type NoopNotifier struct{}

// Notify implements Notifier by logging and discarding the message.
func (NoopNotifier) Notify(ctx context.Context, to string, body string, category models.NotificationCategory) error {
	slog.Debug("NoopNotifier dropping message", "to", to, "category", category)
	return nil
}

// Sent is one message captured by a RecordingNotifier.
type Sent struct {
	To       string
	Body     string
	Category models.NotificationCategory
}

// RecordingNotifier captures messages in memory for tests.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent
}

// Notify implements Notifier by recording the message.
func (r *RecordingNotifier) Notify(ctx context.Context, to string, body string, category models.NotificationCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{To: to, Body: body, Category: category})
	return nil
}

// Messages returns a copy of everything recorded so far.
func (r *RecordingNotifier) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
