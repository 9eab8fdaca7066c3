// Package store provides record storage backends for AfyaDial.
//
// It defines the Store interface consumed by the USSD engine and implements
// in-memory, SQLite, and PostgreSQL backends.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Opts holds configuration options for persistent store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// postgres:// URL or key=value string for PostgreSQL.
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds the backend implied by the options: PostgreSQL or SQLite
// when a DSN is set, in-memory otherwise.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		return NewInMemoryStore(), nil
	case DetectDSNType(cfg.DSN) == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// Store is the record storage contract for users and health entities.
type Store interface {
	// Users
	GetUserByPhone(phone string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	SaveUser(u models.User) error
	GetLinkedMinors(caregiverID string) ([]models.User, error)
	GetRemindableUsers() ([]models.User, error)

	// Cycle records. GetCycleRecords returns most recent first.
	CreateCycleRecord(r models.CycleRecord) error
	GetCycleRecords(userID string) ([]models.CycleRecord, error)
	UpdateCycleRecord(r models.CycleRecord) error

	// Meal logs. GetMealLogs returns logs at or after since, most recent first.
	CreateMealLog(m models.MealLog) error
	GetMealLogs(userID string, since time.Time) ([]models.MealLog, error)

	// Appointments. GetAppointments returns booked appointments, soonest first.
	CreateAppointment(a models.Appointment) error
	GetAppointments(userID string) ([]models.Appointment, error)
	CancelAppointment(id string) error

	// Notifications. GetNotifications returns most recent first, up to limit.
	CreateNotification(n models.Notification) error
	GetNotifications(userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(id string) error

	// Feedback
	CreateFeedback(f models.Feedback) error

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store used for tests and
// single-instance development runs.
type InMemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User // keyed by ID
	cycleRecords  map[string]models.CycleRecord
	mealLogs      map[string]models.MealLog
	appointments  map[string]models.Appointment
	notifications map[string]models.Notification
	feedback      map[string]models.Feedback
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:         make(map[string]models.User),
		cycleRecords:  make(map[string]models.CycleRecord),
		mealLogs:      make(map[string]models.MealLog),
		appointments:  make(map[string]models.Appointment),
		notifications: make(map[string]models.Notification),
		feedback:      make(map[string]models.Feedback),
	}
}

// GetUserByPhone returns the user registered with the phone number, or nil.
func (s *InMemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.PhoneNumber == phone {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetUserByID returns the user with the given ID, or nil.
func (s *InMemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

// SaveUser stores or replaces a user record.
func (s *InMemoryStore) SaveUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// GetLinkedMinors returns users whose caregiver is the given user.
func (s *InMemoryStore) GetLinkedMinors(caregiverID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var minors []models.User
	for _, u := range s.users {
		if u.CaregiverID == caregiverID {
			minors = append(minors, u)
		}
	}
	sort.Slice(minors, func(i, j int) bool { return minors[i].PhoneNumber < minors[j].PhoneNumber })
	return minors, nil
}

// GetRemindableUsers returns users who have opted in to reminder messages.
func (s *InMemoryStore) GetRemindableUsers() ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, u := range s.users {
		if u.RemindersEnabled {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].PhoneNumber < users[j].PhoneNumber })
	return users, nil
}

// CreateCycleRecord stores a new cycle record.
func (s *InMemoryStore) CreateCycleRecord(r models.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycleRecords[r.ID] = r
	return nil
}

// GetCycleRecords returns the user's cycle records, most recent start first.
func (s *InMemoryStore) GetCycleRecords(userID string) ([]models.CycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []models.CycleRecord
	for _, r := range s.cycleRecords {
		if r.UserID == userID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartDate.After(records[j].StartDate) })
	return records, nil
}

// UpdateCycleRecord replaces an existing cycle record.
func (s *InMemoryStore) UpdateCycleRecord(r models.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycleRecords[r.ID]; !ok {
		return models.ErrNotFound
	}
	s.cycleRecords[r.ID] = r
	return nil
}

// CreateMealLog stores a new meal log.
func (s *InMemoryStore) CreateMealLog(m models.MealLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mealLogs[m.ID] = m
	return nil
}

// GetMealLogs returns the user's meal logs at or after since, most recent first.
func (s *InMemoryStore) GetMealLogs(userID string, since time.Time) ([]models.MealLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var logs []models.MealLog
	for _, m := range s.mealLogs {
		if m.UserID == userID && !m.LoggedAt.Before(since) {
			logs = append(logs, m)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].LoggedAt.After(logs[j].LoggedAt) })
	return logs, nil
}

// CreateAppointment stores a new appointment.
func (s *InMemoryStore) CreateAppointment(a models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
	return nil
}

// GetAppointments returns the user's booked appointments, soonest first.
func (s *InMemoryStore) GetAppointments(userID string) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var appts []models.Appointment
	for _, a := range s.appointments {
		if a.UserID == userID && a.Status == models.AppointmentStatusBooked {
			appts = append(appts, a)
		}
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].Date.Before(appts[j].Date) })
	return appts, nil
}

// CancelAppointment marks an appointment cancelled.
func (s *InMemoryStore) CancelAppointment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return models.ErrNotFound
	}
	a.Status = models.AppointmentStatusCancelled
	s.appointments[id] = a
	return nil
}

// CreateNotification stores a new notification.
func (s *InMemoryStore) CreateNotification(n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return nil
}

// GetNotifications returns the user's notifications, most recent first, up to limit.
func (s *InMemoryStore) GetNotifications(userID string, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var notes []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

// MarkNotificationRead marks a notification read.
func (s *InMemoryStore) MarkNotificationRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return models.ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

// CreateFeedback stores a feedback entry.
func (s *InMemoryStore) CreateFeedback(f models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback[f.ID] = f
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
