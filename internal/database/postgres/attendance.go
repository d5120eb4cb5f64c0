package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func localTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	lt := t.Time.In(time.Local)
	return &lt
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// GetAttendance returns the record for an employee and date, nil if absent.
func (s *Store) GetAttendance(ctx context.Context, employeeID, date string) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var checkIn, checkOut sql.NullTime
	var status string

	err := s.pool.QueryRow(ctx, `
		SELECT id, employee_id, to_char(date, 'YYYY-MM-DD'), check_in, check_out, status
		FROM attendance
		WHERE employee_id = $1 AND date = $2
	`, employeeID, date).Scan(&rec.ID, &rec.EmployeeID, &rec.Date, &checkIn, &checkOut, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}

	rec.CheckIn = localTime(checkIn)
	rec.CheckOut = localTime(checkOut)
	rec.Status = database.AttendanceStatus(status)
	return &rec, nil
}

// InsertAttendance creates the day's record. The UNIQUE(employee_id, date)
// constraint turns a concurrent second insert into ErrAttendanceExists.
func (s *Store) InsertAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO attendance (employee_id, date, check_in, check_out, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rec.EmployeeID, rec.Date, nullTime(rec.CheckIn), nullTime(rec.CheckOut), string(rec.Status)).Scan(&rec.ID)
	if err != nil {
		switch {
		case isCode(err, codeUniqueViolation):
			return database.ErrAttendanceExists
		case isCode(err, codeForeignKeyViolation):
			return database.ErrNotFound
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// PunchOut sets check_out only while it is still NULL.
func (s *Store) PunchOut(ctx context.Context, employeeID, date string, at time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE attendance SET check_out = $3
		WHERE employee_id = $1 AND date = $2 AND check_out IS NULL
	`, employeeID, date, at)
	if err != nil {
		return 0, fmt.Errorf("punch out: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("punch out rows: %w", err)
	}
	return n, nil
}

// ListAttendanceByDate returns the day's records with employee names, most
// recent check-in first.
func (s *Store) ListAttendanceByDate(ctx context.Context, date string) ([]database.AttendanceEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.employee_id, e.name, a.check_in, a.check_out, a.status
		FROM attendance a
		JOIN employees e ON e.id = a.employee_id
		WHERE a.date = $1
		ORDER BY a.check_in DESC NULLS LAST, a.id DESC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var entries []database.AttendanceEntry
	for rows.Next() {
		var e database.AttendanceEntry
		var checkIn, checkOut sql.NullTime
		var status string
		if err := rows.Scan(&e.EmployeeID, &e.Name, &checkIn, &checkOut, &status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		e.CheckIn = localTime(checkIn)
		e.CheckOut = localTime(checkOut)
		e.Status = database.AttendanceStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return entries, nil
}

// GetOfficeSettings returns the settings row, nil if missing.
func (s *Store) GetOfficeSettings(ctx context.Context) (*database.OfficeSettings, error) {
	var settings database.OfficeSettings
	err := s.pool.QueryRow(ctx,
		"SELECT start_time, end_time, on_time_limit FROM office_settings WHERE id = 1",
	).Scan(&settings.StartTime, &settings.EndTime, &settings.OnTimeLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get office settings: %w", err)
	}
	return &settings, nil
}

// UpdateOfficeSettings replaces the settings row.
func (s *Store) UpdateOfficeSettings(ctx context.Context, settings database.OfficeSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO office_settings (id, start_time, end_time, on_time_limit, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			on_time_limit = EXCLUDED.on_time_limit,
			updated_at = EXCLUDED.updated_at
	`, settings.StartTime, settings.EndTime, settings.OnTimeLimit)
	if err != nil {
		return fmt.Errorf("update office settings: %w", err)
	}
	return nil
}
