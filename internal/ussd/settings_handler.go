package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/auth"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// settingsHandler serves account settings: PIN management, session timeout,
// and the profile screen.
type settingsHandler struct {
	records  store.Store
	verifier auth.Verifier
	now      func() time.Time
}

func (h *settingsHandler) Name() string { return "Settings" }

func (h *settingsHandler) submenu() string {
	return withNav("Settings\n1. Change PIN\n2. Session timeout\n3. My profile")
}

func (h *settingsHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(h.submenu())
	}
	rest := entries[1:]
	switch entries[0] {
	case "1":
		return h.changePIN(ctx, user, rest)
	case "2":
		return h.timeout(ctx, user, rest)
	case "3":
		return h.profile(user)
	default:
		return Continue("Invalid choice.\n" + h.submenu())
	}
}

func (h *settingsHandler) changePIN(ctx context.Context, user *models.User, entries []string) Outcome {
	values, _, out := collect(entries,
		qText("Enter your current password or PIN:"),
		question{
			prompt: "Enter your new 4-digit PIN:",
			parse: func(entry string) (string, error) {
				if !auth.IsPINCandidate(entry) {
					return "", errors.New("the PIN must be exactly 4 digits")
				}
				return entry, nil
			},
		},
	)
	if out != nil {
		return *out
	}

	if _, err := h.verifier.Verify(ctx, user.PhoneNumber, values[0]); err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			return End("Current password or PIN did not match. Nothing was changed. Please dial again to retry.")
		}
		slog.Error("settingsHandler.changePIN: verify failed", "error", err, "userID", user.ID)
		return endSystemError()
	}

	hash, err := auth.HashSecret(values[1])
	if err != nil {
		slog.Error("settingsHandler.changePIN: hash failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	u := *user
	u.PINHash = hash
	u.PINEnabled = true
	u.UpdatedAt = h.now()
	if err := h.records.SaveUser(u); err != nil {
		slog.Error("settingsHandler.changePIN: save failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	return End("PIN updated. You can now log in with your new 4-digit PIN.")
}

func (h *settingsHandler) timeout(ctx context.Context, user *models.User, entries []string) Outcome {
	prompt := fmt.Sprintf("Session timeout in minutes (%d-%d), currently %d:",
		models.MinSessionTimeoutMinutes, models.MaxSessionTimeoutMinutes, user.TimeoutMinutes())
	values, _, out := collect(entries, qNumber(prompt,
		models.MinSessionTimeoutMinutes, models.MaxSessionTimeoutMinutes,
		fmt.Errorf("timeout must be between %d and %d minutes", models.MinSessionTimeoutMinutes, models.MaxSessionTimeoutMinutes)))
	if out != nil {
		return *out
	}

	u := *user
	u.SessionTimeoutMinutes = mustInt(values[0])
	u.UpdatedAt = h.now()
	if err := h.records.SaveUser(u); err != nil {
		slog.Error("settingsHandler.timeout: save failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	return End(fmt.Sprintf("Session timeout set to %d minutes.", u.SessionTimeoutMinutes))
}

func (h *settingsHandler) profile(user *models.User) Outcome {
	pin := "not set"
	if user.PINEnabled {
		pin = "enabled"
	}
	reminders := "off"
	if user.RemindersEnabled {
		reminders = "on"
	}
	name := user.Name
	if name == "" {
		name = "(no name)"
	}
	return End(fmt.Sprintf("My profile\nName: %s\nPhone: %s\nAccount: %s\nPIN login: %s\nReminders: %s\nTimeout: %d min",
		name, user.PhoneNumber, user.AccountType, pin, reminders, user.TimeoutMinutes()))
}
