package ussd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// nutritionTips rotate daily on the tips screen.
var nutritionTips = []string{
	"Iron matters during your period: beans, spinach and liver help replace what is lost.",
	"Drink water through the day. Aim for 6-8 cups, more in hot weather.",
	"Add a fruit or vegetable to every meal, even a small one.",
	"Calcium builds growing bones: milk, omena or leafy greens daily.",
	"Eat a proper breakfast. It helps concentration at school and work.",
}

var mealTypeByChoice = map[string]models.MealType{
	"1": models.MealTypeBreakfast,
	"2": models.MealTypeLunch,
	"3": models.MealTypeDinner,
	"4": models.MealTypeSnack,
}

// mealHandler serves the meal logging branch.
type mealHandler struct {
	records store.Store
	now     func() time.Time
}

func (h *mealHandler) Name() string { return "Meal Logging" }

func (h *mealHandler) submenu() string {
	return withNav("Meal Logging\n1. Log a meal\n2. Today's meals\n3. Nutrition tip")
}

func (h *mealHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(h.submenu())
	}
	rest := entries[1:]
	switch entries[0] {
	case "1":
		return h.logMeal(ctx, user, rest)
	case "2":
		return h.todaysMeals(ctx, user)
	case "3":
		return h.tip()
	default:
		return Continue("Invalid choice.\n" + h.submenu())
	}
}

func (h *mealHandler) logMeal(ctx context.Context, user *models.User, entries []string) Outcome {
	now := h.now()
	values, _, out := collect(entries,
		qChoice("Which meal?\n1. Breakfast\n2. Lunch\n3. Dinner\n4. Snack", "1", "2", "3", "4"),
		qText("What did you eat? (short description)"),
	)
	if out != nil {
		return *out
	}

	meal := models.MealLog{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		MealType:    mealTypeByChoice[values[0]],
		Description: values[1],
		LoggedAt:    now,
	}
	if err := h.records.CreateMealLog(meal); err != nil {
		slog.Error("mealHandler.logMeal: create failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	return End("Meal logged: " + string(meal.MealType) + " - " + meal.Description + ".")
}

func (h *mealHandler) todaysMeals(ctx context.Context, user *models.User) Outcome {
	now := h.now()
	logs, err := h.records.GetMealLogs(user.ID, models.DateOnly(now))
	if err != nil {
		slog.Error("mealHandler.todaysMeals: query failed", "error", err, "userID", user.ID)
		return endSystemError()
	}
	if len(logs) == 0 {
		return End("No meals logged today yet.")
	}
	var b strings.Builder
	b.WriteString("Today's meals:\n")
	for _, m := range logs {
		b.WriteString(string(m.MealType) + ": " + m.Description + "\n")
	}
	return End(strings.TrimRight(b.String(), "\n"))
}

func (h *mealHandler) tip() Outcome {
	day := h.now().YearDay()
	return End("Tip: " + nutritionTips[day%len(nutritionTips)])
}
