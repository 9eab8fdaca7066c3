// Package models defines the core data structures for AfyaDial.
//
// It includes the dialog session, user identity, and health record types shared
// across the USSD engine, stores, and messaging modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for dates entered over USSD (e.g. 14-03-2026).
const DateLayout = "02-01-2006"

// Validation constants for cycle data entry.
const (
	// MinCycleLength is the shortest cycle length accepted from user input, in days.
	MinCycleLength = 21
	// MaxCycleLength is the longest cycle length accepted from user input, in days.
	MaxCycleLength = 40
	// MinPeriodLength is the shortest period length accepted from user input, in days.
	MinPeriodLength = 3
	// MaxPeriodLength is the longest period length accepted from user input, in days.
	MaxPeriodLength = 8
	// LongPeriodWarningDays is the period length above which logging requires confirmation.
	LongPeriodWarningDays = 10
	// MaxBackdateDays is how far in the past a period start may be logged.
	MaxBackdateDays = 180
	// DefaultCycleLength is used when neither history nor personal values exist.
	DefaultCycleLength = 28
	// DefaultPeriodLength is used when neither history nor personal values exist.
	DefaultPeriodLength = 5
	// DefaultSessionTimeoutMinutes is the staleness threshold for dialog sessions.
	DefaultSessionTimeoutMinutes = 2
	// MinSessionTimeoutMinutes and MaxSessionTimeoutMinutes bound the per-user setting.
	MinSessionTimeoutMinutes = 1
	MaxSessionTimeoutMinutes = 10
)

// Error variables for validation and business-rule conflicts.
var (
	ErrInvalidDate            = errors.New("date must be DD-MM-YYYY or 1 for today")
	ErrFutureDate             = errors.New("date cannot be in the future")
	ErrDateTooOld             = errors.New("date is more than 180 days in the past")
	ErrCycleLengthOutOfRange  = fmt.Errorf("cycle length must be between %d and %d days", MinCycleLength, MaxCycleLength)
	ErrPeriodLengthOutOfRange = fmt.Errorf("period length must be between %d and %d days", MinPeriodLength, MaxPeriodLength)
	ErrActiveCycleExists      = errors.New("a period is already open; log its end first")
	ErrNoActiveCycle          = errors.New("no open period to end")
	ErrEndBeforeStart         = errors.New("end date cannot be before the start date")
	ErrUnknownUser            = errors.New("phone number is not registered")
	ErrInvalidCredentials     = errors.New("invalid password or PIN")
	ErrNotFound               = errors.New("record not found")
)

// AccountType classifies a registered user.
type AccountType string

const (
	AccountTypeAdolescent AccountType = "adolescent"
	AccountTypeCaregiver  AccountType = "caregiver"
	AccountTypeProvider   AccountType = "provider"
	AccountTypeAdmin      AccountType = "admin"
)

// User is the identity record fetched from the credential store.
type User struct {
	ID          string      `json:"id"`
	PhoneNumber string      `json:"phone_number"`
	Name        string      `json:"name,omitempty"`
	AccountType AccountType `json:"account_type"`

	PasswordHash string `json:"-"`
	PINHash      string `json:"-"`
	PINEnabled   bool   `json:"pin_enabled"`

	// Cycle profile fields. Nil means the user never supplied a value.
	CycleLength          *int `json:"cycle_length,omitempty"`
	PeriodLength         *int `json:"period_length,omitempty"`
	HasProvidedCycleInfo bool `json:"has_provided_cycle_info"`

	RemindersEnabled      bool   `json:"reminders_enabled"`
	SessionTimeoutMinutes int    `json:"session_timeout_minutes,omitempty"`
	CaregiverID           string `json:"caregiver_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeoutMinutes returns the user's configured session timeout, or the default.
func (u *User) TimeoutMinutes() int {
	if u.SessionTimeoutMinutes >= MinSessionTimeoutMinutes && u.SessionTimeoutMinutes <= MaxSessionTimeoutMinutes {
		return u.SessionTimeoutMinutes
	}
	return DefaultSessionTimeoutMinutes
}

// ResumeSnapshot preserves in-progress dialog state so a timed-out session can
// continue where it left off. Entries carry the full position, pagination
// included: re-injecting them reproduces the interrupted view exactly.
type ResumeSnapshot struct {
	Service string   `json:"service"`
	Entries []string `json:"entries"`
}

// DialogSession is the durable per-phone-number record backing one logical
// USSD conversation.
type DialogSession struct {
	PhoneNumber    string          `json:"phone_number"`
	Entries        []string        `json:"entries"`
	LastActivity   time.Time       `json:"last_activity"`
	TimeoutMinutes int             `json:"timeout_minutes"`
	ResumeOffered  bool            `json:"resume_offered"`
	Resume         *ResumeSnapshot `json:"resume,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Stale reports whether the session has been idle longer than its timeout.
func (s *DialogSession) Stale(now time.Time) bool {
	timeout := s.TimeoutMinutes
	if timeout <= 0 {
		timeout = DefaultSessionTimeoutMinutes
	}
	return now.Sub(s.LastActivity) > time.Duration(timeout)*time.Minute
}

// CycleRecord is one logged menstrual cycle. EndDate is nil while the period
// is still open ("active"); CycleLength is derived retroactively when the next
// record's start date becomes known, never authored directly.
type CycleRecord struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	CycleLength  *int       `json:"cycle_length,omitempty"`
	PeriodLength *int       `json:"period_length,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the record is still open (no end date logged).
func (r *CycleRecord) Active() bool {
	return r.EndDate == nil
}

// Completed reports whether the record carries a derived cycle length and can
// feed statistics.
func (r *CycleRecord) Completed() bool {
	return r.CycleLength != nil
}

// MealType classifies a logged meal.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// MealLog is one logged meal.
type MealLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MealType    MealType  `json:"meal_type"`
	Description string    `json:"description"`
	LoggedAt    time.Time `json:"logged_at"`
}

// AppointmentStatus tracks the lifecycle of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked clinic visit.
type Appointment struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Date      time.Time         `json:"date"`
	Reason    string            `json:"reason"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// NotificationCategory classifies outbound notifications.
type NotificationCategory string

const (
	NotificationCategoryPrediction  NotificationCategory = "prediction"
	NotificationCategoryReminder    NotificationCategory = "reminder"
	NotificationCategoryAppointment NotificationCategory = "appointment"
	NotificationCategoryFeedback    NotificationCategory = "feedback"
	NotificationCategorySystem      NotificationCategory = "system"
)

// Notification is a stored copy of an outbound message for the in-app inbox.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Body      string               `json:"body"`
	Category  NotificationCategory `json:"category"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
}

// Feedback is a user rating with an optional free-text comment.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UssdRequest is one inbound gateway callback. Text carries the full
// *-delimited keystroke history for the logical session, empty on first contact.
type UssdRequest struct {
	SessionID   string
	PhoneNumber string
	Text        string
}

// ResponseKind tags a USSD reply as expecting further input or ending the session.
type ResponseKind string

const (
	// KindContinue keeps the session open and expects another entry.
	KindContinue ResponseKind = "CON"
	// KindEnd terminates the session after displaying the text.
	KindEnd ResponseKind = "END"
)

// UssdResponse is the reply rendered back to the gateway.
type UssdResponse struct {
	Kind ResponseKind
	Text string
}

// Render produces the wire form expected by the aggregator ("CON ..."/"END ...").
func (r UssdResponse) Render() string {
	return string(r.Kind) + " " + r.Text
}

// ValidateCycleLength checks a user-supplied cycle length in days.
func ValidateCycleLength(days int) error {
	if days < MinCycleLength || days > MaxCycleLength {
		return ErrCycleLengthOutOfRange
	}
	return nil
}

// ValidatePeriodLength checks a user-supplied period length in days.
func ValidatePeriodLength(days int) error {
	if days < MinPeriodLength || days > MaxPeriodLength {
		return ErrPeriodLengthOutOfRange
	}
	return nil
}

// ParseEntryDate parses a date entered over USSD. "1" and "today" are
// shortcuts for the current date. Future dates and dates more than
// MaxBackdateDays in the past are rejected.
func ParseEntryDate(entry string, now time.Time) (time.Time, error) {
	today := DateOnly(now)
	trimmed := strings.TrimSpace(entry)
	if trimmed == "1" || strings.EqualFold(trimmed, "today") {
		return today, nil
	}
	d, err := time.ParseInLocation(DateLayout, trimmed, now.Location())
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if d.After(today) {
		return time.Time{}, ErrFutureDate
	}
	if today.Sub(d) > time.Duration(MaxBackdateDays)*24*time.Hour {
		return time.Time{}, ErrDateTooOld
	}
	return d, nil
}

// DateOnly truncates a timestamp to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the whole-day delta from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// IntPtr returns a pointer to v. Convenience for optional numeric fields.
func IntPtr(v int) *int {
	return &v
}
