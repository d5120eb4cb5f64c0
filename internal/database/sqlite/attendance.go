package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// GetAttendance returns the record for an employee and date, nil if absent.
func (s *Store) GetAttendance(ctx context.Context, employeeID, date string) (*database.AttendanceRecord, error) {
	var models []attendanceModel
	err := s.db.WithContext(ctx).
		Where("employee_id = ? AND date = ?", employeeID, date).
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toRecord(), nil
}

// InsertAttendance creates the day's record. The unique (employee_id, date)
// index turns a concurrent second insert into ErrAttendanceExists.
func (s *Store) InsertAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	m := attendanceModel{
		EmployeeID: rec.EmployeeID,
		Date:       rec.Date,
		CheckIn:    rec.CheckIn,
		CheckOut:   rec.CheckOut,
		Status:     string(rec.Status),
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return database.ErrAttendanceExists
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return database.ErrNotFound
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	rec.ID = m.ID
	return nil
}

// PunchOut sets check_out only while it is still NULL.
func (s *Store) PunchOut(ctx context.Context, employeeID, date string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&attendanceModel{}).
		Where("employee_id = ? AND date = ? AND check_out IS NULL", employeeID, date).
		Update("check_out", at)
	if res.Error != nil {
		return 0, fmt.Errorf("punch out: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type attendanceEntryRow struct {
	EmployeeID string
	Name       string
	CheckIn    *time.Time
	CheckOut   *time.Time
	Status     string
}

// ListAttendanceByDate returns the day's records with employee names, most
// recent check-in first.
func (s *Store) ListAttendanceByDate(ctx context.Context, date string) ([]database.AttendanceEntry, error) {
	var rows []attendanceEntryRow
	err := s.db.WithContext(ctx).
		Table("attendance AS a").
		Select("a.employee_id, e.name, a.check_in, a.check_out, a.status").
		Joins("JOIN employees e ON e.id = a.employee_id").
		Where("a.date = ?", date).
		Order("a.check_in DESC, a.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	entries := make([]database.AttendanceEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, database.AttendanceEntry{
			EmployeeID: r.EmployeeID,
			Name:       r.Name,
			CheckIn:    localTime(r.CheckIn),
			CheckOut:   localTime(r.CheckOut),
			Status:     database.AttendanceStatus(r.Status),
		})
	}
	return entries, nil
}

// GetOfficeSettings returns the settings row, nil if missing.
func (s *Store) GetOfficeSettings(ctx context.Context) (*database.OfficeSettings, error) {
	var models []officeSettingsModel
	if err := s.db.WithContext(ctx).Where("id = ?", 1).Limit(1).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("get office settings: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return &database.OfficeSettings{
		StartTime:   models[0].StartTime,
		EndTime:     models[0].EndTime,
		OnTimeLimit: models[0].OnTimeLimit,
	}, nil
}

// UpdateOfficeSettings replaces the settings row.
func (s *Store) UpdateOfficeSettings(ctx context.Context, settings database.OfficeSettings) error {
	m := officeSettingsModel{
		ID:          1,
		StartTime:   settings.StartTime,
		EndTime:     settings.EndTime,
		OnTimeLimit: settings.OnTimeLimit,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_time", "end_time", "on_time_limit", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("update office settings: %w", err)
	}
	return nil
}
