package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/cycle"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

const historyPageSize = 3

// cycleHandler serves the cycle tracking branch: period logging, status,
// history, predictions, and cycle info updates.
type cycleHandler struct {
	records  store.Store
	notifier messaging.Notifier
	now      func() time.Time
}

func (h *cycleHandler) Name() string { return "Cycle Tracking" }

func (h *cycleHandler) submenu() string {
	return withNav("Cycle Tracking\n" +
		"1. Log period start\n" +
		"2. Log period end\n" +
		"3. Current status\n" +
		"4. History\n" +
		"5. Predictions\n" +
		"6. Update cycle info")
}

// Step dispatches on the submenu selection; deeper entries continue the
// selected sub-flow.
func (h *cycleHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(h.submenu())
	}
	rest := entries[1:]
	switch entries[0] {
	case "1":
		return h.logStart(ctx, user, rest)
	case "2":
		return h.logEnd(ctx, user, rest)
	case "3":
		return h.status(ctx, user)
	case "4":
		return h.history(ctx, user, rest)
	case "5":
		return h.predictions(ctx, user, rest)
	case "6":
		return h.updateInfo(ctx, user, rest)
	default:
		return Continue("Invalid choice.\n" + h.submenu())
	}
}

// logStart collects first-time cycle info when missing, then the start date,
// and creates the new record at the terminal step. The previous record's
// cycle length is derived retroactively from the new start date.
func (h *cycleHandler) logStart(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	onboarding := !user.HasProvidedCycleInfo
	var qs []question
	if onboarding {
		qs = append(qs,
			qNumber("First, a quick setup. Your average cycle length in days (21-40):",
				models.MinCycleLength, models.MaxCycleLength, models.ErrCycleLengthOutOfRange),
			qNumber("Your usual period length in days (3-8):",
				models.MinPeriodLength, models.MaxPeriodLength, models.ErrPeriodLengthOutOfRange),
		)
	}
	qs = append(qs, qPastDate("Period start date (DD-MM-YYYY), or 1 for today:", now))

	values, _, out := collect(entries, qs...)
	if out != nil {
		return *out
	}
	var cycleLen, periodLen int
	dateIdx := 0
	if onboarding {
		cycleLen = mustInt(values[0])
		periodLen = mustInt(values[1])
		dateIdx = 2
	}
	start := mustDate(values[dateIdx], now.Location())

	records, err := h.records.GetCycleRecords(user.ID)
	if err != nil {
		slog.Error("cycleHandler.logStart: record query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	for _, r := range records {
		if r.Active() {
			return End("You already have an open period that started " + r.StartDate.Format("02 Jan") +
				". Log its end first, then start a new one.")
		}
	}
	if len(records) > 0 {
		prev := records[0]
		if !start.After(models.DateOnly(prev.StartDate)) {
			return End("That date is on or before your last logged period start (" +
				prev.StartDate.Format("02 Jan") + "). Please dial again and check the date.")
		}
		if prev.EndDate != nil && !start.After(models.DateOnly(*prev.EndDate)) {
			return End("That date falls inside your last logged period. Please dial again and check the date.")
		}
	}

	// Terminal step: all writes happen here. The previous record's derived
	// cycle length is set first so a failed create can be rolled back
	// without leaving a half-written record.
	if len(records) > 0 {
		prev := records[0]
		derived := models.DaysBetween(prev.StartDate, start)
		prev.CycleLength = &derived
		prev.UpdatedAt = now
		if err := h.records.UpdateCycleRecord(prev); err != nil {
			slog.Error("cycleHandler.logStart: previous record update failed", "error", err, "recordID", prev.ID)
			return endSystemError()
		}
	}
	rec := models.CycleRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		StartDate: start,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.records.CreateCycleRecord(rec); err != nil {
		slog.Error("cycleHandler.logStart: record create failed", "error", err, "userID", user.ID)
		if len(records) > 0 {
			prev := records[0]
			prev.CycleLength = nil
			prev.UpdatedAt = now
			if rbErr := h.records.UpdateCycleRecord(prev); rbErr != nil {
				slog.Error("cycleHandler.logStart: rollback failed", "error", rbErr, "recordID", prev.ID)
			}
		}
		return endSystemError()
	}

	if onboarding {
		u := *user
		u.CycleLength = &cycleLen
		u.PeriodLength = &periodLen
		u.HasProvidedCycleInfo = true
		u.UpdatedAt = now
		if err := h.records.SaveUser(u); err != nil {
			slog.Error("cycleHandler.logStart: profile update failed", "error", err, "userID", user.ID)
		} else {
			user = &u
		}
	}

	updated := append([]models.CycleRecord{rec}, records...)
	next := cycle.NextPredictedStart(updated, user, now)
	if user.RemindersEnabled {
		body := "AfyaDial: your next period is predicted around " + next.Format("02 Jan 2006") + "."
		dispatchNotification(ctx, h.records, h.notifier, user, body, models.NotificationCategoryPrediction, now)
	}
	return End("Period start logged for " + start.Format("02 Jan 2006") + ".\n" +
		"Next period predicted around " + next.Format("02 Jan 2006") + ".")
}

// logEnd closes the active record, deriving the period length. Lengths over
// LongPeriodWarningDays require explicit confirmation before saving.
func (h *cycleHandler) logEnd(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	values, rest, out := collect(entries, qPastDate("Period end date (DD-MM-YYYY), or 1 for today:", now))
	if out != nil {
		return *out
	}

	records, err := h.records.GetCycleRecords(user.ID)
	if err != nil {
		slog.Error("cycleHandler.logEnd: record query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	var active *models.CycleRecord
	for i := range records {
		if records[i].Active() {
			active = &records[i]
			break
		}
	}
	if active == nil {
		return End("No open period to end. Log a period start first.")
	}

	end := mustDate(values[0], now.Location())
	if end.Before(models.DateOnly(active.StartDate)) {
		return End("The end date cannot be before the period start on " +
			active.StartDate.Format("02 Jan") + ". Nothing was changed. Please dial again to retry.")
	}

	length := models.DaysBetween(active.StartDate, end) + 1
	if length > models.LongPeriodWarningDays {
		if len(rest) == 0 {
			return Continue(fmt.Sprintf("That period would be %d days long, which is unusually long.\n1. Save anyway\n2. Cancel", length))
		}
		switch rest[0] {
		case "1":
			// confirmed
		case "2":
			return End("Not saved. If long periods continue, please visit a clinic.")
		default:
			return Continue("Invalid choice.\n1. Save anyway\n2. Cancel")
		}
	}

	active.EndDate = &end
	active.PeriodLength = &length
	active.UpdatedAt = now
	if err := h.records.UpdateCycleRecord(*active); err != nil {
		slog.Error("cycleHandler.logEnd: record update failed", "error", err, "recordID", active.ID)
		return endSystemError()
	}
	return End(fmt.Sprintf("Period end logged for %s.\nPeriod length: %d days.", end.Format("02 Jan 2006"), length))
}

// status summarizes today's phase and the next predicted period.
func (h *cycleHandler) status(ctx context.Context, user *models.User) Outcome {
	now := h.now()
	records, err := h.records.GetCycleRecords(user.ID)
	if err != nil {
		slog.Error("cycleHandler.status: record query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(records) == 0 {
		return End("No cycle history yet. Log a period start to begin tracking.")
	}

	params := cycle.DeriveParams(records, user)
	phase := cycle.PhaseOn(records[0].StartDate, params, now)
	next := cycle.NextPredictedStart(records, user, now)
	days := models.DaysBetween(now, next)

	var b strings.Builder
	if phase != "" {
		b.WriteString("Today: " + phase + ".\n")
	}
	switch {
	case days > 0:
		fmt.Fprintf(&b, "Next period predicted around %s (in %d days).", next.Format("02 Jan"), days)
	case days == 0:
		b.WriteString("Your next period is predicted to start today.")
	default:
		fmt.Fprintf(&b, "Your period is %d days later than predicted (%s).", -days, next.Format("02 Jan"))
	}
	return End(b.String())
}

// history pages through logged cycles, most recent first.
func (h *cycleHandler) history(ctx context.Context, user *models.User, entries []string) Outcome {
	records, err := h.records.GetCycleRecords(user.ID)
	if err != nil {
		slog.Error("cycleHandler.history: record query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(records) == 0 {
		return End("No cycle history yet. Log a period start to begin tracking.")
	}

	page := 0
	badLast := false
	for i, e := range entries {
		if e == "1" {
			page++
		} else {
			badLast = i == len(entries)-1
		}
	}
	maxPage := (len(records) - 1) / historyPageSize
	if page > maxPage {
		page = maxPage
	}

	var b strings.Builder
	if badLast {
		b.WriteString("Invalid choice.\n")
	}
	fmt.Fprintf(&b, "Cycle history (page %d/%d)\n", page+1, maxPage+1)
	from := page * historyPageSize
	to := from + historyPageSize
	if to > len(records) {
		to = len(records)
	}
	for _, r := range records[from:to] {
		line := r.StartDate.Format("02 Jan 06")
		if r.EndDate != nil {
			line += "-" + r.EndDate.Format("02 Jan 06")
		} else {
			line += " (open)"
		}
		if r.CycleLength != nil {
			line += fmt.Sprintf(" cycle %dd", *r.CycleLength)
		}
		b.WriteString(line + "\n")
	}
	text := strings.TrimRight(b.String(), "\n")
	if page < maxPage {
		text += "\n1. More"
	}
	return Continue(withNav(text))
}

// predictions walks the month-by-month projection. "1" pages forward, "2"
// pages back — except at offset 0, where "2" shows the user's cycle settings
// instead of a month. That asymmetry is a product shortcut, kept on purpose.
func (h *cycleHandler) predictions(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	records, err := h.records.GetCycleRecords(user.ID)
	if err != nil {
		slog.Error("cycleHandler.predictions: record query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}

	offset := 0
	showConfig := false
	badLast := false
	for i, e := range entries {
		bad := false
		if showConfig {
			if e == "1" {
				showConfig = false
			} else {
				bad = true
			}
		} else {
			switch e {
			case "1":
				offset++
			case "2":
				if offset == 0 {
					showConfig = true
				} else {
					offset--
				}
			default:
				bad = true
			}
		}
		badLast = bad && i == len(entries)-1
	}

	var b strings.Builder
	if badLast {
		b.WriteString("Invalid choice.\n")
	}
	if showConfig {
		params := cycle.DeriveParams(records, user)
		fmt.Fprintf(&b, "My cycle settings\nCycle length: %d days (%s)\nPeriod length: %d days\n1. Back to predictions",
			params.CycleLength, sourceLabel(params.Source), params.PeriodLength)
		return Continue(withNav(b.String()))
	}

	proj := cycle.Project(records, user, offset, now)
	b.WriteString(strings.TrimRight(cycle.RenderMonth(proj), "\n"))
	b.WriteString("\n1. Next month  2. Previous")
	return Continue(withNav(b.String()))
}

// updateInfo replaces the user's personal cycle values.
func (h *cycleHandler) updateInfo(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	values, _, out := collect(entries,
		qNumber("Your average cycle length in days (21-40):",
			models.MinCycleLength, models.MaxCycleLength, models.ErrCycleLengthOutOfRange),
		qNumber("Your usual period length in days (3-8):",
			models.MinPeriodLength, models.MaxPeriodLength, models.ErrPeriodLengthOutOfRange),
	)
	if out != nil {
		return *out
	}
	cycleLen := mustInt(values[0])
	periodLen := mustInt(values[1])

	u := *user
	u.CycleLength = &cycleLen
	u.PeriodLength = &periodLen
	u.HasProvidedCycleInfo = true
	u.UpdatedAt = now
	if err := h.records.SaveUser(u); err != nil {
		slog.Error("cycleHandler.updateInfo: profile update failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	return End(fmt.Sprintf("Cycle info updated: %d-day cycle, %d-day period.", cycleLen, periodLen))
}

// sourceLabel names where prediction parameters came from, for display.
func sourceLabel(s cycle.Source) string {
	switch s {
	case cycle.SourceHistory:
		return "from your history"
	case cycle.SourceProfile:
		return "from your profile"
	default:
		return "default"
	}
}
