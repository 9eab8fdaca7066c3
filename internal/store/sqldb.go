// Package store provides record storage backends for AfyaDial.
//
// This file implements the Store methods shared by the SQLite and PostgreSQL
// backends. Queries are written with ? placeholders and rebound for Postgres.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// SQLStore implements Store over a database/sql connection.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

func (s *SQLStore) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(rebind(query, s.postgres), args...)
}

func (s *SQLStore) query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(rebind(query, s.postgres), args...)
}

func (s *SQLStore) queryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(rebind(query, s.postgres), args...)
}

const userColumns = `id, phone_number, name, account_type, password_hash, pin_hash, pin_enabled,
	cycle_length, period_length, has_provided_cycle_info, reminders_enabled,
	session_timeout_minutes, caregiver_id, created_at, updated_at`

// GetUserByPhone returns the user registered with the phone number, or nil.
func (s *SQLStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.queryRow(`SELECT `+userColumns+` FROM users WHERE phone_number = ?`, phone)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user by phone: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the user with the given ID, or nil.
func (s *SQLStore) GetUserByID(id string) (*models.User, error) {
	row := s.queryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLStore GetUserByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return &u, nil
}

// SaveUser stores or replaces a user record.
func (s *SQLStore) SaveUser(u models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone_number = excluded.phone_number,
			name = excluded.name,
			account_type = excluded.account_type,
			password_hash = excluded.password_hash,
			pin_hash = excluded.pin_hash,
			pin_enabled = excluded.pin_enabled,
			cycle_length = excluded.cycle_length,
			period_length = excluded.period_length,
			has_provided_cycle_info = excluded.has_provided_cycle_info,
			reminders_enabled = excluded.reminders_enabled,
			session_timeout_minutes = excluded.session_timeout_minutes,
			caregiver_id = excluded.caregiver_id,
			updated_at = excluded.updated_at`
	_, err := s.exec(query,
		u.ID, u.PhoneNumber, nilIfEmpty(u.Name), u.AccountType, u.PasswordHash,
		nilIfEmpty(u.PINHash), u.PINEnabled, nilIfNilInt(u.CycleLength), nilIfNilInt(u.PeriodLength),
		u.HasProvidedCycleInfo, u.RemindersEnabled, nilIfZeroInt(u.SessionTimeoutMinutes),
		nilIfEmpty(u.CaregiverID), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLStore SaveUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	slog.Debug("SQLStore SaveUser succeeded", "id", u.ID)
	return nil
}

// GetLinkedMinors returns users whose caregiver is the given user.
func (s *SQLStore) GetLinkedMinors(caregiverID string) ([]models.User, error) {
	rows, err := s.query(`SELECT `+userColumns+` FROM users WHERE caregiver_id = ? ORDER BY phone_number`, caregiverID)
	if err != nil {
		slog.Error("SQLStore GetLinkedMinors query failed", "error", err, "caregiverID", caregiverID)
		return nil, fmt.Errorf("failed to query linked minors: %w", err)
	}
	defer rows.Close()

	var minors []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		minors = append(minors, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate linked minors: %w", err)
	}
	return minors, nil
}

// GetRemindableUsers returns users who have opted in to reminder messages.
func (s *SQLStore) GetRemindableUsers() ([]models.User, error) {
	rows, err := s.query(`SELECT ` + userColumns + ` FROM users WHERE reminders_enabled = TRUE ORDER BY phone_number`)
	if err != nil {
		slog.Error("SQLStore GetRemindableUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query remindable users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate remindable users: %w", err)
	}
	return users, nil
}

const cycleColumns = `id, user_id, start_date, end_date, cycle_length, period_length, notes, created_at, updated_at`

// CreateCycleRecord stores a new cycle record.
func (s *SQLStore) CreateCycleRecord(r models.CycleRecord) error {
	var endDate interface{}
	if r.EndDate != nil {
		endDate = *r.EndDate
	}
	_, err := s.exec(`INSERT INTO cycle_records (`+cycleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.StartDate, endDate, nilIfNilInt(r.CycleLength), nilIfNilInt(r.PeriodLength),
		nilIfEmpty(r.Notes), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateCycleRecord failed", "error", err, "id", r.ID, "userID", r.UserID)
		return fmt.Errorf("failed to insert cycle record: %w", err)
	}
	slog.Debug("SQLStore CreateCycleRecord succeeded", "id", r.ID, "userID", r.UserID)
	return nil
}

// GetCycleRecords returns the user's cycle records, most recent start first.
func (s *SQLStore) GetCycleRecords(userID string) ([]models.CycleRecord, error) {
	rows, err := s.query(`SELECT `+cycleColumns+` FROM cycle_records WHERE user_id = ? ORDER BY start_date DESC`, userID)
	if err != nil {
		slog.Error("SQLStore GetCycleRecords query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query cycle records: %w", err)
	}
	defer rows.Close()

	var records []models.CycleRecord
	for rows.Next() {
		r, err := scanCycleRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycle records: %w", err)
	}
	slog.Debug("SQLStore GetCycleRecords succeeded", "userID", userID, "count", len(records))
	return records, nil
}

// UpdateCycleRecord replaces an existing cycle record.
func (s *SQLStore) UpdateCycleRecord(r models.CycleRecord) error {
	var endDate interface{}
	if r.EndDate != nil {
		endDate = *r.EndDate
	}
	res, err := s.exec(`
		UPDATE cycle_records
		SET start_date = ?, end_date = ?, cycle_length = ?, period_length = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		r.StartDate, endDate, nilIfNilInt(r.CycleLength), nilIfNilInt(r.PeriodLength),
		nilIfEmpty(r.Notes), r.UpdatedAt, r.ID,
	)
	if err != nil {
		slog.Error("SQLStore UpdateCycleRecord failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to update cycle record %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	slog.Debug("SQLStore UpdateCycleRecord succeeded", "id", r.ID)
	return nil
}

// CreateMealLog stores a new meal log.
func (s *SQLStore) CreateMealLog(m models.MealLog) error {
	_, err := s.exec(`INSERT INTO meal_logs (id, user_id, meal_type, description, logged_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.MealType, nilIfEmpty(m.Description), m.LoggedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateMealLog failed", "error", err, "id", m.ID)
		return fmt.Errorf("failed to insert meal log: %w", err)
	}
	return nil
}

// GetMealLogs returns the user's meal logs at or after since, most recent first.
func (s *SQLStore) GetMealLogs(userID string, since time.Time) ([]models.MealLog, error) {
	rows, err := s.query(`
		SELECT id, user_id, meal_type, description, logged_at
		FROM meal_logs WHERE user_id = ? AND logged_at >= ? ORDER BY logged_at DESC`, userID, since)
	if err != nil {
		slog.Error("SQLStore GetMealLogs query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query meal logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MealLog
	for rows.Next() {
		var m models.MealLog
		var description sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.MealType, &description, &m.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan meal log failed: %w", err)
		}
		m.Description = description.String
		logs = append(logs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meal logs: %w", err)
	}
	return logs, nil
}

// CreateAppointment stores a new appointment.
func (s *SQLStore) CreateAppointment(a models.Appointment) error {
	_, err := s.exec(`INSERT INTO appointments (id, user_id, date, reason, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Date, nilIfEmpty(a.Reason), a.Status, a.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateAppointment failed", "error", err, "id", a.ID)
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

// GetAppointments returns the user's booked appointments, soonest first.
func (s *SQLStore) GetAppointments(userID string) ([]models.Appointment, error) {
	rows, err := s.query(`
		SELECT id, user_id, date, reason, status, created_at
		FROM appointments WHERE user_id = ? AND status = ? ORDER BY date`, userID, models.AppointmentStatusBooked)
	if err != nil {
		slog.Error("SQLStore GetAppointments query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appts []models.Appointment
	for rows.Next() {
		var a models.Appointment
		var reason sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Date, &reason, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment failed: %w", err)
		}
		a.Reason = reason.String
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appts, nil
}

// CancelAppointment marks an appointment cancelled.
func (s *SQLStore) CancelAppointment(id string) error {
	res, err := s.exec(`UPDATE appointments SET status = ? WHERE id = ?`, models.AppointmentStatusCancelled, id)
	if err != nil {
		slog.Error("SQLStore CancelAppointment failed", "error", err, "id", id)
		return fmt.Errorf("failed to cancel appointment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateNotification stores a new notification.
func (s *SQLStore) CreateNotification(n models.Notification) error {
	_, err := s.exec(`INSERT INTO notifications (id, user_id, body, category, read, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Body, n.Category, n.Read, n.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateNotification failed", "error", err, "id", n.ID)
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetNotifications returns the user's notifications, most recent first, up to limit.
func (s *SQLStore) GetNotifications(userID string, limit int) ([]models.Notification, error) {
	rows, err := s.query(`
		SELECT id, user_id, body, category, read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		slog.Error("SQLStore GetNotifications query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notes []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Body, &n.Category, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification failed: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notes, nil
}

// MarkNotificationRead marks a notification read.
func (s *SQLStore) MarkNotificationRead(id string) error {
	res, err := s.exec(`UPDATE notifications SET read = ? WHERE id = ?`, true, id)
	if err != nil {
		slog.Error("SQLStore MarkNotificationRead failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateFeedback stores a feedback entry.
func (s *SQLStore) CreateFeedback(f models.Feedback) error {
	_, err := s.exec(`INSERT INTO feedback (id, user_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Rating, nilIfEmpty(f.Comment), f.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLStore CreateFeedback failed", "error", err, "id", f.ID)
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	slog.Debug("Closing record store database connection")
	return s.db.Close()
}
