package ussd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// maxInboxMessages bounds the recent-messages screen.
const maxInboxMessages = 3

// notificationsHandler serves the notifications branch: the message inbox and
// the reminder delivery preference.
type notificationsHandler struct {
	records store.Store
}

func (h *notificationsHandler) Name() string { return "Notifications" }

func (h *notificationsHandler) submenu(user *models.User) string {
	state := "off"
	if user.RemindersEnabled {
		state = "on"
	}
	return withNav("Notifications\n1. Recent messages\n2. Reminders (now " + state + ")")
}

func (h *notificationsHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(h.submenu(user))
	}
	rest := entries[1:]
	switch entries[0] {
	case "1":
		return h.recent(ctx, user)
	case "2":
		return h.toggleReminders(ctx, user, rest)
	default:
		return Continue("Invalid choice.\n" + h.submenu(user))
	}
}

func (h *notificationsHandler) recent(ctx context.Context, user *models.User) Outcome {
	notes, err := h.records.GetNotifications(user.ID, maxInboxMessages)
	if err != nil {
		slog.Error("notificationsHandler.recent: query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(notes) == 0 {
		return End("No messages yet.")
	}
	var b strings.Builder
	b.WriteString("Recent messages:\n")
	for _, n := range notes {
		b.WriteString(n.CreatedAt.Format("02 Jan") + ": " + n.Body + "\n")
		if !n.Read {
			if err := h.records.MarkNotificationRead(n.ID); err != nil {
				slog.Error("notificationsHandler.recent: mark read failed", "error", err, "notificationID", n.ID)
			}
		}
	}
	return End(strings.TrimRight(b.String(), "\n"))
}

func (h *notificationsHandler) toggleReminders(ctx context.Context, user *models.User, entries []string) Outcome {
	values, _, out := collect(entries, qChoice("Reminder messages:\n1. Turn on\n2. Turn off", "1", "2"))
	if out != nil {
		return *out
	}
	u := *user
	u.RemindersEnabled = values[0] == "1"
	if err := h.records.SaveUser(u); err != nil {
		slog.Error("notificationsHandler.toggleReminders: save failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if u.RemindersEnabled {
		return End("Reminders turned on.")
	}
	return End("Reminders turned off.")
}
