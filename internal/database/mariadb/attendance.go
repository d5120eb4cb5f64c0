package mariadb

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
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// GetAttendance returns the record for an employee and date, nil if absent.
func (s *Store) GetAttendance(ctx context.Context, employeeID, date string) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var checkIn, checkOut sql.NullTime
	var status string

	err := s.pool.db.QueryRowContext(ctx, `
		SELECT id, employee_id, DATE_FORMAT(date, '%Y-%m-%d'), check_in, check_out, status
		FROM attendance
		WHERE employee_id = ? AND date = ?
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

// InsertAttendance creates the day's record. The unique (employee_id, date)
// key turns a concurrent second insert into ErrAttendanceExists.
func (s *Store) InsertAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	result, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (employee_id, date, check_in, check_out, status)
		VALUES (?, ?, ?, ?, ?)
	`, rec.EmployeeID, rec.Date, nullTime(rec.CheckIn), nullTime(rec.CheckOut), string(rec.Status))
	if err != nil {
		switch {
		case isNumber(err, errDuplicateEntry):
			return database.ErrAttendanceExists
		case isNumber(err, errNoReferencedRow, errNoReferencedRowOld):
			return database.ErrNotFound
		}
		return fmt.Errorf("insert attendance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("attendance id: %w", err)
	}
	rec.ID = id
	return nil
}

// PunchOut sets check_out only while it is still NULL.
func (s *Store) PunchOut(ctx context.Context, employeeID, date string, at time.Time) (int64, error) {
	result, err := s.pool.db.ExecContext(ctx, `
		UPDATE attendance SET check_out = ?
		WHERE employee_id = ? AND date = ? AND check_out IS NULL
	`, at.UTC(), employeeID, date)
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
// recent check-in first. NULLs sort last in descending order.
func (s *Store) ListAttendanceByDate(ctx context.Context, date string) ([]database.AttendanceEntry, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT a.employee_id, e.name, a.check_in, a.check_out, a.status
		FROM attendance a
		JOIN employees e ON e.id = a.employee_id
		WHERE a.date = ?
		ORDER BY a.check_in DESC, a.id DESC
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
	err := s.pool.db.QueryRowContext(ctx,
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
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO office_settings (id, start_time, end_time, on_time_limit, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP(6))
		ON DUPLICATE KEY UPDATE
			start_time = VALUES(start_time),
			end_time = VALUES(end_time),
			on_time_limit = VALUES(on_time_limit),
			updated_at = VALUES(updated_at)
	`, settings.StartTime, settings.EndTime, settings.OnTimeLimit)
	if err != nil {
		return fmt.Errorf("update office settings: %w", err)
	}
	return nil
}
