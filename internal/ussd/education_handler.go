package ussd

import (
	"context"
	"log/slog"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Answerer answers a free-text health question. Implemented by the genai
// client; nil disables the ask-a-question branch.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// educationTopic is a short, paginated lesson.
type educationTopic struct {
	title string
	pages []string
}

var educationTopics = map[string]educationTopic{
	"1": {
		title: "Menstrual health",
		pages: []string{
			"A cycle counts from the first day of one period to the first day of the next. 21-35 days is common, and cycles can be irregular for the first few years.",
			"Cramps, mood changes and tiredness are common before and during a period. A warm compress and light exercise can ease cramps.",
			"See a health worker if bleeding lasts over 10 days, soaks a pad hourly, or if you miss three periods in a row.",
		},
	},
	"2": {
		title: "Nutrition",
		pages: []string{
			"Eat from the three food groups daily: energy (ugali, rice), body-building (beans, eggs, fish) and protective (fruits, vegetables).",
			"During your period, iron-rich foods like beans, liver and leafy greens help replace lost iron.",
		},
	},
	"3": {
		title: "Hygiene",
		pages: []string{
			"Change pads or cloths every 4-6 hours, and wash reusable cloths with soap and dry them in the sun.",
			"Wash hands before and after changing protection. Clean the outside of your body with water only.",
		},
	},
}

// educationHandler serves the health education branch: static topics plus an
// optional free-text question answered by the GenAI client.
type educationHandler struct {
	answerer Answerer
	now      func() time.Time
}

func (h *educationHandler) Name() string { return "Health Education" }

func (h *educationHandler) submenu() string {
	return withNav("Health Education\n1. Menstrual health\n2. Nutrition\n3. Hygiene\n4. Ask a question")
}

func (h *educationHandler) Step(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(h.submenu())
	}
	rest := entries[1:]
	if topic, ok := educationTopics[entries[0]]; ok {
		return h.showTopic(topic, rest)
	}
	if entries[0] == "4" {
		return h.ask(ctx, rest)
	}
	return Continue("Invalid choice.\n" + h.submenu())
}

// showTopic pages through a topic; "1" advances, the final page terminates.
func (h *educationHandler) showTopic(topic educationTopic, entries []string) Outcome {
	page := 0
	badLast := false
	for i, e := range entries {
		if e == "1" {
			page++
		} else {
			badLast = i == len(entries)-1
		}
	}
	if page >= len(topic.pages) {
		page = len(topic.pages) - 1
	}

	text := topic.title + "\n" + topic.pages[page]
	if badLast {
		text = "Invalid choice.\n" + text
	}
	if page == len(topic.pages)-1 {
		return End(text)
	}
	return Continue(withNav(text + "\n1. More"))
}

func (h *educationHandler) ask(ctx context.Context, entries []string) Outcome {
	if h.answerer == nil {
		return End("Question service is not available right now. Please ask at your clinic or call " + SupportLine + ".")
	}
	values, _, out := collect(entries, qText("Type your health question:"))
	if out != nil {
		return *out
	}
	answer, err := h.answerer.Answer(ctx, values[0])
	if err != nil {
		slog.Error("educationHandler.ask: answer failed", "error", err)
		return End("Could not fetch an answer right now. Please try again later or call " + SupportLine + ".")
	}
	return End(answer)
}
