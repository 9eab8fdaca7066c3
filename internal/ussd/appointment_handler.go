package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// maxListedAppointments bounds the upcoming and cancel lists for small screens.
const maxListedAppointments = 3

// appointmentHandler serves the clinic appointment branch.
type appointmentHandler struct {
	records  store.Store
	notifier messaging.Notifier
	now      func() time.Time
}

func (h *appointmentHandler) Name() string { return "Appointments" }

func (h *appointmentHandler) submenu() string {
	return withNav("Appointments\n1. Book an appointment\n2. Upcoming appointments\n3. Cancel an appointment")
}

func (h *appointmentHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(h.submenu())
	}
	rest := entries[1:]
	switch entries[0] {
	case "1":
		return h.book(ctx, user, rest)
	case "2":
		return h.upcoming(ctx, user)
	case "3":
		return h.cancel(ctx, user, rest)
	default:
		return Continue("Invalid choice.\n" + h.submenu())
	}
}

func (h *appointmentHandler) book(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	values, _, out := collect(entries,
		qFutureDate("Appointment date (DD-MM-YYYY), or 1 for today:", now),
		qText("Reason for the visit? (short description)"),
	)
	if out != nil {
		return *out
	}
	date := mustDate(values[0], now.Location())

	appt := models.Appointment{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Date:      date,
		Reason:    values[1],
		Status:    models.AppointmentStatusBooked,
		CreatedAt: now,
	}
	if err := h.records.CreateAppointment(appt); err != nil {
		slog.Error("appointmentHandler.book: create failed", "error", err, "userID", user.ID)
		return endSystemError()
	}

	body := "AfyaDial: appointment booked for " + date.Format("02 Jan 2006") + " (" + appt.Reason + ")."
	dispatchNotification(ctx, h.records, h.notifier, user, body, models.NotificationCategoryAppointment, now)
	return End("Appointment booked for " + date.Format("02 Jan 2006") + ". You will receive an SMS confirmation.")
}

func (h *appointmentHandler) upcoming(ctx context.Context, user *models.User) Outcome {
	appts, err := h.records.GetAppointments(user.ID)
	if err != nil {
		slog.Error("appointmentHandler.upcoming: query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(appts) == 0 {
		return End("No upcoming appointments.")
	}
	if len(appts) > maxListedAppointments {
		appts = appts[:maxListedAppointments]
	}
	var b strings.Builder
	b.WriteString("Upcoming appointments:\n")
	for _, a := range appts {
		b.WriteString(a.Date.Format("02 Jan") + " - " + a.Reason + "\n")
	}
	return End(strings.TrimRight(b.String(), "\n"))
}

func (h *appointmentHandler) cancel(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	appts, err := h.records.GetAppointments(user.ID)
	if err != nil {
		slog.Error("appointmentHandler.cancel: query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(appts) == 0 {
		return End("No upcoming appointments to cancel.")
	}
	if len(appts) > maxListedAppointments {
		appts = appts[:maxListedAppointments]
	}

	if len(entries) == 0 {
		var b strings.Builder
		b.WriteString("Cancel which appointment?\n")
		for i, a := range appts {
			fmt.Fprintf(&b, "%d. %s - %s\n", i+1, a.Date.Format("02 Jan"), a.Reason)
		}
		return Continue(withNav(strings.TrimRight(b.String(), "\n")))
	}

	idx, err := strconv.Atoi(entries[len(entries)-1])
	if err != nil || idx < 1 || idx > len(appts) {
		return Continue(fmt.Sprintf("Invalid choice. Reply with a number from 1 to %d.", len(appts)))
	}
	target := appts[idx-1]
	if err := h.records.CancelAppointment(target.ID); err != nil {
		slog.Error("appointmentHandler.cancel: cancel failed", "error", err, "appointmentID", target.ID)
		return endSystemError()
	}

	body := "AfyaDial: your appointment on " + target.Date.Format("02 Jan 2006") + " has been cancelled."
	dispatchNotification(ctx, h.records, h.notifier, user, body, models.NotificationCategoryAppointment, now)
	return End("Appointment on " + target.Date.Format("02 Jan 2006") + " cancelled.")
}
