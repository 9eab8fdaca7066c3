package ussd

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// qNumber builds a question accepting an integer in [min, max].
func qNumber(prompt string, min, max int, rangeErr error) question {
	return question{
		prompt: prompt,
		parse: func(entry string) (string, error) {
			n, err := strconv.Atoi(strings.TrimSpace(entry))
			if err != nil {
				return "", rangeErr
			}
			if n < min || n > max {
				return "", rangeErr
			}
			return strconv.Itoa(n), nil
		},
	}
}

// qPastDate builds a question accepting DD-MM-YYYY or the "1"/"today"
// shortcut, rejecting future dates and dates too far back.
func qPastDate(prompt string, now time.Time) question {
	return question{
		prompt: prompt,
		parse: func(entry string) (string, error) {
			d, err := models.ParseEntryDate(entry, now)
			if err != nil {
				return "", err
			}
			return d.Format(models.DateLayout), nil
		},
	}
}

// qFutureDate builds a question accepting DD-MM-YYYY or "1" for today,
// rejecting past dates. Used for appointment booking.
func qFutureDate(prompt string, now time.Time) question {
	return question{
		prompt: prompt,
		parse: func(entry string) (string, error) {
			today := models.DateOnly(now)
			trimmed := strings.TrimSpace(entry)
			if trimmed == "1" || strings.EqualFold(trimmed, "today") {
				return today.Format(models.DateLayout), nil
			}
			d, err := time.ParseInLocation(models.DateLayout, trimmed, now.Location())
			if err != nil {
				return "", models.ErrInvalidDate
			}
			if d.Before(today) {
				return "", errors.New("date cannot be in the past")
			}
			return d.Format(models.DateLayout), nil
		},
	}
}

// qText builds a question accepting any non-empty free text.
func qText(prompt string) question {
	return question{
		prompt: prompt,
		parse: func(entry string) (string, error) {
			t := strings.TrimSpace(entry)
			if t == "" {
				return "", errors.New("please enter a value")
			}
			return t, nil
		},
	}
}

// qChoice builds a question accepting one of an enumerated set of digits.
func qChoice(prompt string, choices ...string) question {
	return question{
		prompt: prompt,
		parse: func(entry string) (string, error) {
			t := strings.TrimSpace(entry)
			for _, c := range choices {
				if t == c {
					return t, nil
				}
			}
			return "", errors.New("invalid choice")
		},
	}
}

// mustDate parses a value previously normalized by a date question.
func mustDate(value string, loc *time.Location) time.Time {
	d, _ := time.ParseInLocation(models.DateLayout, value, loc)
	return d
}

// mustInt parses a value previously normalized by qNumber.
func mustInt(value string) int {
	n, _ := strconv.Atoi(value)
	return n
}
