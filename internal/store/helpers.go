package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// rebind rewrites ? placeholders to $1..$n for PostgreSQL. SQLite queries are
// returned unchanged.
func rebind(query string, postgres bool) string {
	if !postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfNilInt adapts an optional integer to a nullable column value.
func nilIfNilInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nilIfZeroInt adapts a zero-means-unset integer to a nullable column value.
func nilIfZeroInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a User from a row or rows cursor.
func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var name, pinHash, caregiverID sql.NullString
	var cycleLength, periodLength, timeoutMinutes sql.NullInt64
	err := row.Scan(
		&u.ID, &u.PhoneNumber, &name, &u.AccountType, &u.PasswordHash, &pinHash, &u.PINEnabled,
		&cycleLength, &periodLength, &u.HasProvidedCycleInfo, &u.RemindersEnabled,
		&timeoutMinutes, &caregiverID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return u, fmt.Errorf("scan user failed: %w", err)
	}
	u.Name = name.String
	u.PINHash = pinHash.String
	u.CaregiverID = caregiverID.String
	if cycleLength.Valid {
		u.CycleLength = models.IntPtr(int(cycleLength.Int64))
	}
	if periodLength.Valid {
		u.PeriodLength = models.IntPtr(int(periodLength.Int64))
	}
	if timeoutMinutes.Valid {
		u.SessionTimeoutMinutes = int(timeoutMinutes.Int64)
	}
	return u, nil
}

// scanCycleRecord scans a CycleRecord from a row or rows cursor.
func scanCycleRecord(row rowScanner) (models.CycleRecord, error) {
	var r models.CycleRecord
	var endDate sql.NullTime
	var cycleLength, periodLength sql.NullInt64
	var notes sql.NullString
	err := row.Scan(
		&r.ID, &r.UserID, &r.StartDate, &endDate, &cycleLength, &periodLength,
		&notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("scan cycle record failed: %w", err)
	}
	if endDate.Valid {
		t := endDate.Time
		r.EndDate = &t
	}
	if cycleLength.Valid {
		r.CycleLength = models.IntPtr(int(cycleLength.Int64))
	}
	if periodLength.Valid {
		r.PeriodLength = models.IntPtr(int(periodLength.Int64))
	}
	r.Notes = notes.String
	return r, nil
}
