package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// parentalHandler serves the caregiver dashboard. Child summaries show only
// coarse activity (appointments, meals); cycle details stay private to the
// adolescent's own account.
type parentalHandler struct {
	records store.Store
	now     func() time.Time
}

func (h *parentalHandler) Name() string { return "Parental Dashboard" }

func (h *parentalHandler) submenu() string {
	return withNav("Parental Dashboard\n1. My children\n2. Child summary\n3. Link a child")
}

func (h *parentalHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if user.AccountType != models.AccountTypeCaregiver {
		return End("The parental dashboard is only available on caregiver accounts.")
	}
	if len(entries) == 0 {
		return Continue(h.submenu())
	}
	rest := entries[1:]
	switch entries[0] {
	case "1":
		return h.listChildren(ctx, user)
	case "2":
		return h.childSummary(ctx, user, rest)
	case "3":
		return h.linkChild(ctx, user, rest)
	default:
		return Continue("Invalid choice.\n" + h.submenu())
	}
}

func (h *parentalHandler) listChildren(ctx context.Context, user *models.User) Outcome {
	minors, err := h.records.GetLinkedMinors(user.ID)
	if err != nil {
		slog.Error("parentalHandler.listChildren: query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(minors) == 0 {
		return End("No children linked yet. Use 'Link a child' to add one.")
	}
	var b strings.Builder
	b.WriteString("Linked children:\n")
	for i, m := range minors {
		name := m.Name
		if name == "" {
			name = m.PhoneNumber
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	return End(strings.TrimRight(b.String(), "\n"))
}

func (h *parentalHandler) childSummary(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	minors, err := h.records.GetLinkedMinors(user.ID)
	if err != nil {
		slog.Error("parentalHandler.childSummary: query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(minors) == 0 {
		return End("No children linked yet. Use 'Link a child' to add one.")
	}

	if len(entries) == 0 {
		var b strings.Builder
		b.WriteString("Summary for which child?\n")
		for i, m := range minors {
			name := m.Name
			if name == "" {
				name = m.PhoneNumber
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
		return Continue(withNav(strings.TrimRight(b.String(), "\n")))
	}

	idx, err := strconv.Atoi(entries[len(entries)-1])
	if err != nil || idx < 1 || idx > len(minors) {
		return Continue(fmt.Sprintf("Invalid choice. Reply with a number from 1 to %d.", len(minors)))
	}
	child := minors[idx-1]

	appts, err := h.records.GetAppointments(child.ID)
	if err != nil {
		slog.Error("parentalHandler.childSummary: appointment query failed", "error", err, "childID", child.ID)
		return endSystemError()
	}
	weekAgo := models.DateOnly(now).AddDate(0, 0, -7)
	meals, err := h.records.GetMealLogs(child.ID, weekAgo)
	if err != nil {
		slog.Error("parentalHandler.childSummary: meal query failed", "error", err, "childID", child.ID)
		return endSystemError()
	}

	name := child.Name
	if name == "" {
		name = child.PhoneNumber
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s this week:\nMeals logged: %d\n", name, len(meals))
	if len(appts) > 0 {
		fmt.Fprintf(&b, "Next appointment: %s (%s)", appts[0].Date.Format("02 Jan"), appts[0].Reason)
	} else {
		b.WriteString("No upcoming appointments.")
	}
	return End(b.String())
}

func (h *parentalHandler) linkChild(ctx context.Context, user *models.User, entries []string) Outcome {
	values, _, out := collect(entries, qText("Enter the child's registered phone number:"))
	if out != nil {
		return *out
	}
	child, err := h.records.GetUserByPhone(values[0])
	if err != nil {
		slog.Error("parentalHandler.linkChild: lookup failed", "error", err)
		return endSystemError()
	}
	if child == nil {
		return End("That number is not registered. Please register the child at your clinic first.")
	}
	if child.AccountType != models.AccountTypeAdolescent {
		return End("Only adolescent accounts can be linked to a caregiver.")
	}
	if child.CaregiverID == user.ID {
		return End("That child is already linked to your account.")
	}

	u := *child
	u.CaregiverID = user.ID
	u.UpdatedAt = h.now()
	if err := h.records.SaveUser(u); err != nil {
		slog.Error("parentalHandler.linkChild: save failed", "error", err, "childID", child.ID)
		return endSystemError()
	}
	name := u.Name
	if name == "" {
		name = u.PhoneNumber
	}
	return End(name + " linked to your account.")
}
