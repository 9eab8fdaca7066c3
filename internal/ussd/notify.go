package ussd

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// dispatchNotification stores an inbox copy and sends the message through the
// dispatch sink. Delivery is fire-and-forget: failures are logged, never
// surfaced to the dialog.
func dispatchNotification(ctx context.Context, records store.Store, notifier messaging.Notifier, user *models.User, body string, category models.NotificationCategory, now time.Time) {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Body:      body,
		Category:  category,
		CreatedAt: now,
	}
	if err := records.CreateNotification(n); err != nil {
		slog.Error("dispatchNotification: inbox store failed", "error", err, "userID", user.ID, "category", category)
	}
	if err := notifier.Notify(ctx, user.PhoneNumber, body, category); err != nil {
		slog.Error("dispatchNotification: delivery failed", "error", err, "phone", user.PhoneNumber, "category", category)
	}
}
