// Package reminder implements the daily period-reminder sweep.
//
// The sweep scans opted-in users, predicts each user's next period start, and
// sends an SMS when it falls within the lead window. Sent reminders are also
// stored in the user's notification inbox.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/cycle"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// leadDays is how many days before a predicted period start the reminder goes out.
const leadDays = 2

// Sweeper runs the reminder sweep against the record store.
type Sweeper struct {
	records  store.Store
	notifier messaging.Notifier
	now      func() time.Time
}

// NewSweeper creates a reminder sweeper.
func NewSweeper(records store.Store, notifier messaging.Notifier, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{records: records, notifier: notifier, now: now}
}

// Sweep sends a reminder to every opted-in user whose predicted period start
// is exactly leadDays away. Running the sweep once per day therefore sends at
// most one reminder per user per cycle. Per-user failures are logged and do
// not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	today := models.DateOnly(s.now())
	users, err := s.records.GetRemindableUsers()
	if err != nil {
		slog.Error("Sweeper.Sweep: user query failed", "error", err)
		return
	}
	slog.Debug("Sweeper.Sweep: starting", "users", len(users), "date", today.Format(models.DateLayout))

	sent := 0
	for i := range users {
		user := &users[i]
		records, err := s.records.GetCycleRecords(user.ID)
		if err != nil {
			slog.Error("Sweeper.Sweep: cycle query failed", "error", err, "userID", user.ID)
			continue
		}
		if len(records) == 0 {
			continue
		}

		next := models.DateOnly(cycle.NextPredictedStart(records, user, today))
		if models.DaysBetween(today, next) != leadDays {
			continue
		}

		body := "AfyaDial: your next period is predicted to start around " + next.Format("02 Jan") + ". Remember to stock up on supplies."
		note := models.Notification{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Body:      body,
			Category:  models.NotificationCategoryReminder,
			CreatedAt: s.now(),
		}
		if err := s.records.CreateNotification(note); err != nil {
			slog.Error("Sweeper.Sweep: notification store failed", "error", err, "userID", user.ID)
		}
		if err := s.notifier.Notify(ctx, user.PhoneNumber, body, models.NotificationCategoryReminder); err != nil {
			slog.Error("Sweeper.Sweep: notify failed", "error", err, "userID", user.ID)
			continue
		}
		sent++
	}
	slog.Info("Sweeper.Sweep: finished", "sent", sent)
}
