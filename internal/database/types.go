package database

import (
	"time"
)

// Employee is a registered identity. The face embedding and raw photo are
// stored alongside the profile but are not loaded here.
type Employee struct {
	ID                 string
	Name               string
	Email              string
	MobileNo           string
	Address            string
	Gender             string
	Department         string
	Position           string
	Salary             *float64
	WorkingHoursPerDay *float64
	EmployeeType       string
	JoiningDate        string // YYYY-MM-DD, empty if unknown
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IdentityEmbedding is one entry of the embedding snapshot used for face search.
// Keyed by employee ID; the name is carried for display only.
type IdentityEmbedding struct {
	EmployeeID string
	Name       string
	Embedding  []float32
}

// AttendanceStatus classifies a check-in against the office on-time limit.
type AttendanceStatus string

const (
	StatusOnTime AttendanceStatus = "On Time"
	StatusLate   AttendanceStatus = "Late"
)

// AttendanceRecord is the single per-day attendance row of an employee.
type AttendanceRecord struct {
	ID         int64
	EmployeeID string
	Date       string // YYYY-MM-DD in application local time
	CheckIn    *time.Time
	CheckOut   *time.Time
	Status     AttendanceStatus
}

// CheckedIn reports whether the record represents a check-in.
func (r *AttendanceRecord) CheckedIn() bool {
	return r != nil && r.CheckIn != nil
}

// CheckedOut reports whether the check-out has been recorded.
func (r *AttendanceRecord) CheckedOut() bool {
	return r != nil && r.CheckOut != nil
}

// AttendanceEntry is an attendance record joined with the employee name.
type AttendanceEntry struct {
	EmployeeID string
	Name       string
	CheckIn    *time.Time
	CheckOut   *time.Time
	Status     AttendanceStatus
}

// OfficeSettings holds the process-wide office hours, formatted HH:MM:SS.
type OfficeSettings struct {
	StartTime   string
	EndTime     string
	OnTimeLimit string
}
