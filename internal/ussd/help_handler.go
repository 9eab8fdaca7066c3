package ussd

import (
	"context"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// helpHandler shows a static help screen and ends the session.
type helpHandler struct{}

func (h *helpHandler) Name() string { return "Help" }

func (h *helpHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	return End("AfyaDial help\nPress 0 to go back one step, 00 for the main menu.\nDates are DD-MM-YYYY, or press 1 for today.\nFor support call " + SupportLine + " (toll free, Mon-Sat 8am-6pm).")
}
