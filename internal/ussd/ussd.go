// Package ussd implements the AfyaDial dialog engine.
//
// USSD is a stateless request/response protocol: every inbound request carries
// the full *-delimited keystroke history for the session. The engine replays
// that history on each request to recover the dialog position, so handlers are
// pure functions of (identity, replayed entries) with all memory living in the
// entry sequence and the record store.
package ussd

import (
	"context"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Reserved navigation entries and root-menu selectors.
const (
	// EntryBack navigates one level up; at shallow depths it collapses to the
	// root menu, and at the root menu it exits.
	EntryBack = "0"
	// EntryHome returns to the root menu from anywhere.
	EntryHome = "00"

	SelectorCycle         = "1"
	SelectorMeals         = "2"
	SelectorAppointments  = "3"
	SelectorEducation     = "4"
	SelectorNotifications = "5"
	SelectorParental      = "6"
	SelectorSettings      = "7"
	SelectorFeedback      = "8"
	SelectorHelp          = "9"
)

// SupportLine is shown in terminal error messages and the help screen.
const SupportLine = "0800 222 333"

// Outcome is a service handler's reply for one dialog turn.
type Outcome struct {
	Kind models.ResponseKind
	Text string
}

// Continue returns an outcome that keeps the session open.
func Continue(text string) Outcome {
	return Outcome{Kind: models.KindContinue, Text: text}
}

// End returns an outcome that terminates the session.
func End(text string) Outcome {
	return Outcome{Kind: models.KindEnd, Text: text}
}

// endSystemError is the generic terminal reply for persistence failures.
func endSystemError() Outcome {
	return End("Sorry, something went wrong on our side. Please try again later or call " + SupportLine + ".")
}

// Handler serves one root-menu service. entries excludes the service selector;
// its length is the depth within the service.
type Handler interface {
	// Name is the label shown in the root menu.
	Name() string
	// Step computes the reply for the replayed entry sequence. It must be
	// deterministic: same user, entries, and stored records give the same
	// outcome.
	Step(ctx context.Context, user *models.User, entries []string) Outcome
}

// question is one prompt in a multi-step collection flow.
type question struct {
	prompt string
	parse  func(entry string) (string, error)
}

// collect replays entries against an ordered question list. Each valid entry
// answers the pending question; invalid entries are consumed without advancing
// so the pending question is asked again with guidance. Returns the collected
// values and any leftover entries once all questions are answered, or a
// Continue outcome prompting for the pending question.
func collect(entries []string, qs ...question) (values []string, rest []string, out *Outcome) {
	values = make([]string, 0, len(qs))
	qi := 0
	for i, e := range entries {
		if qi >= len(qs) {
			return values, entries[i:], nil
		}
		v, err := qs[qi].parse(e)
		if err != nil {
			if i == len(entries)-1 {
				o := Continue(err.Error() + "\n" + qs[qi].prompt)
				return nil, nil, &o
			}
			// An older invalid entry; the user was re-prompted at the time.
			continue
		}
		values = append(values, v)
		qi++
	}
	if qi < len(qs) {
		o := Continue(qs[qi].prompt)
		return nil, nil, &o
	}
	return values, nil, nil
}

// withNav appends the standard navigation footer to a menu screen.
func withNav(text string) string {
	return text + "\n0 Back  00 Main menu"
}
