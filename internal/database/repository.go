package database

import (
	"context"
	"time"
)

// EmbeddingSource provides the embedding snapshot for face search
type EmbeddingSource interface {
	// GetAllEmbeddings returns every stored face embedding, ordered by employee ID.
	// The result is read fresh on every call; there is no cached copy.
	GetAllEmbeddings(ctx context.Context) ([]IdentityEmbedding, error)
}

// IdentityReader provides read-only access to registered employees
type IdentityReader interface {
	EmbeddingSource

	// GetIdentity retrieves an employee by ID, returns nil if not found
	GetIdentity(ctx context.Context, id string) (*Employee, error)
	// FindIdentityByName retrieves an employee by display name, returns nil if not found.
	// Names are normalized before comparison (lowercase, no diacritics, dashes and
	// underscores to spaces) so "jan_novak" matches "Jan Novák".
	FindIdentityByName(ctx context.Context, name string) (*Employee, error)
	// HasIdentity checks if an employee with the given ID exists
	HasIdentity(ctx context.Context, id string) (bool, error)
	// GetPhoto returns the raw registration image, nil if none stored
	GetPhoto(ctx context.Context, id string) ([]byte, error)
	// CountIdentities returns the total number of employees
	CountIdentities(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to registered employees
type IdentityWriter interface {
	IdentityReader

	// CreateIdentity inserts the profile and stores the embedding and photo in a
	// single transaction. Either everything is written or nothing is.
	// Returns ErrDuplicateID if the ID is taken.
	CreateIdentity(ctx context.Context, emp *Employee, embedding []float32, photo []byte) error

	// SaveEmbedding replaces the embedding and photo of an existing employee.
	// Returns ErrNotFound if the employee does not exist.
	SaveEmbedding(ctx context.Context, id string, embedding []float32, photo []byte) error

	// DeleteIdentity removes an employee and, by cascade, its attendance rows.
	// Returns ErrNotFound if the employee does not exist.
	DeleteIdentity(ctx context.Context, id string) error
}

// AttendanceStore provides access to per-day attendance rows
type AttendanceStore interface {
	// GetAttendance returns the record for (employeeID, date), nil if absent
	GetAttendance(ctx context.Context, employeeID, date string) (*AttendanceRecord, error)

	// InsertAttendance creates the day's record. The (employee_id, date) pair is
	// unique; a conflicting insert returns ErrAttendanceExists.
	InsertAttendance(ctx context.Context, rec *AttendanceRecord) error

	// PunchOut sets check_out = at for (employeeID, date) only while check_out is
	// still NULL. Returns the number of affected rows (0 or 1).
	PunchOut(ctx context.Context, employeeID, date string, at time.Time) (int64, error)

	// ListAttendanceByDate returns the day's records joined with employee
	// names, most recent check-in first
	ListAttendanceByDate(ctx context.Context, date string) ([]AttendanceEntry, error)
}

// SettingsStore provides access to the office settings row
type SettingsStore interface {
	// GetOfficeSettings returns the current settings, nil if none are stored
	GetOfficeSettings(ctx context.Context) (*OfficeSettings, error)
	// UpdateOfficeSettings replaces the settings
	UpdateOfficeSettings(ctx context.Context, settings OfficeSettings) error
}

// Store is the full persistence collaborator implemented by each backend
type Store interface {
	IdentityWriter
	AttendanceStore
	SettingsStore

	// Close releases the underlying connection pool
	Close() error
}
