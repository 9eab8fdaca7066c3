package reminder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

var sweepNow = time.Date(2026, 8, 27, 7, 0, 0, 0, time.UTC)

func seedSweepUser(t *testing.T, records *store.InMemoryStore, id, phone string, lastStart time.Time) models.User {
	t.Helper()
	u := models.User{
		ID:               id,
		PhoneNumber:      phone,
		AccountType:      models.AccountTypeAdolescent,
		RemindersEnabled: true,
	}
	if err := records.SaveUser(u); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	if !lastStart.IsZero() {
		r := models.CycleRecord{ID: id + "-r1", UserID: id, StartDate: lastStart}
		if err := records.CreateCycleRecord(r); err != nil {
			t.Fatalf("CreateCycleRecord failed: %v", err)
		}
	}
	return u
}

func TestSweepSendsWhenPredictionIsTwoDaysOut(t *testing.T) {
	records := store.NewInMemoryStore()
	notifier := &messaging.RecordingNotifier{}

	// Default 28-day cycle from a 1 Aug start predicts 29 Aug, two days away.
	seedSweepUser(t, records, "u1", "+254700000001", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	sweeper := NewSweeper(records, notifier, func() time.Time { return sweepNow })
	sweeper.Sweep(context.Background())

	msgs := notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(msgs))
	}
	if msgs[0].To != "+254700000001" {
		t.Errorf("reminder sent to %s", msgs[0].To)
	}
	if msgs[0].Category != models.NotificationCategoryReminder {
		t.Errorf("category = %s, want reminder", msgs[0].Category)
	}
	if !strings.Contains(msgs[0].Body, "29 Aug") {
		t.Errorf("body should name the predicted date: %q", msgs[0].Body)
	}

	notes, err := records.GetNotifications("u1", 0)
	if err != nil {
		t.Fatalf("GetNotifications failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Category != models.NotificationCategoryReminder {
		t.Errorf("reminder not stored in the inbox: %+v", notes)
	}
}

func TestSweepSkipsUsersNotDue(t *testing.T) {
	records := store.NewInMemoryStore()
	notifier := &messaging.RecordingNotifier{}

	// Predicted 7 Sep, eleven days away.
	seedSweepUser(t, records, "u1", "+254700000001", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))

	sweeper := NewSweeper(records, notifier, func() time.Time { return sweepNow })
	sweeper.Sweep(context.Background())

	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("expected no reminders, got %d", len(msgs))
	}
}

func TestSweepSkipsUsersWithoutHistory(t *testing.T) {
	records := store.NewInMemoryStore()
	notifier := &messaging.RecordingNotifier{}

	seedSweepUser(t, records, "u1", "+254700000001", time.Time{})

	sweeper := NewSweeper(records, notifier, func() time.Time { return sweepNow })
	sweeper.Sweep(context.Background())

	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("expected no reminders without cycle history, got %d", len(msgs))
	}
}

func TestSweepIgnoresOptedOutUsers(t *testing.T) {
	records := store.NewInMemoryStore()
	notifier := &messaging.RecordingNotifier{}

	u := seedSweepUser(t, records, "u1", "+254700000001", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	u.RemindersEnabled = false
	if err := records.SaveUser(u); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	sweeper := NewSweeper(records, notifier, func() time.Time { return sweepNow })
	sweeper.Sweep(context.Background())

	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("opted-out user should not be reminded, got %d messages", len(msgs))
	}
}
