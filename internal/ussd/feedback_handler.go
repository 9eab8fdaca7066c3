package ussd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// feedbackHandler collects a 1-5 service rating plus an optional comment.
type feedbackHandler struct {
	records store.Store
	now     func() time.Time
}

func (h *feedbackHandler) Name() string { return "Feedback" }

func (h *feedbackHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	values, _, out := collect(entries,
		qNumber("How would you rate AfyaDial? (1 poor - 5 excellent)", 1, 5, errors.New("rating must be between 1 and 5")),
		qText("Any comment? (type a short message, or 1 to skip)"),
	)
	if out != nil {
		return *out
	}

	comment := values[1]
	if comment == "1" {
		comment = ""
	}
	fb := models.Feedback{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Rating:    mustInt(values[0]),
		Comment:   comment,
		CreatedAt: h.now(),
	}
	if err := h.records.CreateFeedback(fb); err != nil {
		slog.Error("feedbackHandler.Step: create failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	return End("Thank you! Your feedback helps us improve AfyaDial.")
}
