package database

import "errors"

var (
	// ErrNotFound is returned by writes that target a missing employee.
	ErrNotFound = errors.New("employee not found")

	// ErrDuplicateID is returned when an employee ID is already taken.
	ErrDuplicateID = errors.New("employee ID already exists")

	// ErrAttendanceExists is returned when an attendance row for the same
	// employee and date already exists (unique constraint violation).
	ErrAttendanceExists = errors.New("attendance already recorded for this date")
)
