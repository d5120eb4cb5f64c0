// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

type attendanceKey struct {
	employeeID string
	date       string
}

type employeeRow struct {
	employee  database.Employee
	embedding []float32
	photo     []byte
}

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu         sync.RWMutex
	employees  map[string]*employeeRow
	attendance map[attendanceKey]*database.AttendanceRecord
	settings   *database.OfficeSettings
	nextID     int64

	// Error injection
	GetAllEmbeddingsError error
	GetIdentityError      error
	CreateIdentityError   error
	SaveEmbeddingError    error
	DeleteIdentityError   error
	GetAttendanceError    error
	InsertAttendanceError error
	PunchOutError         error
	ListAttendanceError   error
	GetSettingsError      error
	UpdateSettingsError   error

	// HideAttendance makes GetAttendance report no record, simulating a reader
	// that lost the race against a concurrent first check-in.
	HideAttendance bool

	// Call counters
	GetAllEmbeddingsCalls int
	InsertAttendanceCalls int
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		employees:  make(map[string]*employeeRow),
		attendance: make(map[attendanceKey]*database.AttendanceRecord),
	}
}

var _ database.Store = (*MockStore)(nil)

// AddEmployee adds an employee with an embedding directly, bypassing registration
func (m *MockStore) AddEmployee(emp database.Employee, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = &employeeRow{employee: emp, embedding: embedding}
}

// SetOfficeSettings sets the stored office settings
func (m *MockStore) SetOfficeSettings(s *database.OfficeSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

// AttendanceRecords returns a copy of all attendance rows
func (m *MockStore) AttendanceRecords() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]database.AttendanceRecord, 0, len(m.attendance))
	for _, r := range m.attendance {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Embedding returns the stored embedding of an employee
func (m *MockStore) Embedding(id string) []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if row, ok := m.employees[id]; ok {
		return row.embedding
	}
	return nil
}

// GetAllEmbeddings returns all embeddings ordered by employee ID
func (m *MockStore) GetAllEmbeddings(ctx context.Context) ([]database.IdentityEmbedding, error) {
	m.mu.Lock()
	m.GetAllEmbeddingsCalls++
	m.mu.Unlock()

	if m.GetAllEmbeddingsError != nil {
		return nil, m.GetAllEmbeddingsError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]database.IdentityEmbedding, 0, len(m.employees))
	for _, row := range m.employees {
		if len(row.embedding) == 0 {
			continue
		}
		result = append(result, database.IdentityEmbedding{
			EmployeeID: row.employee.ID,
			Name:       row.employee.Name,
			Embedding:  row.embedding,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}

// GetIdentity retrieves an employee by ID
func (m *MockStore) GetIdentity(ctx context.Context, id string) (*database.Employee, error) {
	if m.GetIdentityError != nil {
		return nil, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	emp := row.employee
	return &emp, nil
}

// FindIdentityByName retrieves an employee by normalized name
func (m *MockStore) FindIdentityByName(ctx context.Context, name string) (*database.Employee, error) {
	if m.GetIdentityError != nil {
		return nil, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.employees))
	for id := range m.employees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		row := m.employees[id]
		if facematch.SameName(row.employee.Name, name) {
			emp := row.employee
			return &emp, nil
		}
	}
	return nil, nil
}

// HasIdentity checks if an employee exists
func (m *MockStore) HasIdentity(ctx context.Context, id string) (bool, error) {
	if m.GetIdentityError != nil {
		return false, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.employees[id]
	return ok, nil
}

// GetPhoto returns the stored photo
func (m *MockStore) GetPhoto(ctx context.Context, id string) ([]byte, error) {
	if m.GetIdentityError != nil {
		return nil, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if row, ok := m.employees[id]; ok {
		return row.photo, nil
	}
	return nil, nil
}

// CountIdentities returns the number of employees
func (m *MockStore) CountIdentities(ctx context.Context) (int, error) {
	if m.GetIdentityError != nil {
		return 0, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.employees), nil
}

// CreateIdentity stores a new employee atomically
func (m *MockStore) CreateIdentity(ctx context.Context, emp *database.Employee, embedding []float32, photo []byte) error {
	if m.CreateIdentityError != nil {
		return m.CreateIdentityError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[emp.ID]; ok {
		return database.ErrDuplicateID
	}
	now := time.Now()
	row := &employeeRow{employee: *emp, embedding: embedding, photo: photo}
	row.employee.CreatedAt = now
	row.employee.UpdatedAt = now
	m.employees[emp.ID] = row
	return nil
}

// SaveEmbedding replaces an employee's embedding and photo
func (m *MockStore) SaveEmbedding(ctx context.Context, id string, embedding []float32, photo []byte) error {
	if m.SaveEmbeddingError != nil {
		return m.SaveEmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.employees[id]
	if !ok {
		return database.ErrNotFound
	}
	row.embedding = embedding
	row.photo = photo
	row.employee.UpdatedAt = time.Now()
	return nil
}

// DeleteIdentity removes an employee and its attendance rows
func (m *MockStore) DeleteIdentity(ctx context.Context, id string) error {
	if m.DeleteIdentityError != nil {
		return m.DeleteIdentityError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.employees, id)
	for key := range m.attendance {
		if key.employeeID == id {
			delete(m.attendance, key)
		}
	}
	return nil
}

// GetAttendance returns the record for an employee and date
func (m *MockStore) GetAttendance(ctx context.Context, employeeID, date string) (*database.AttendanceRecord, error) {
	if m.GetAttendanceError != nil {
		return nil, m.GetAttendanceError
	}
	if m.HideAttendance {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.attendance[attendanceKey{employeeID, date}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// InsertAttendance creates a record, enforcing (employee_id, date) uniqueness
func (m *MockStore) InsertAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertAttendanceCalls++

	if m.InsertAttendanceError != nil {
		return m.InsertAttendanceError
	}
	if _, ok := m.employees[rec.EmployeeID]; !ok {
		return database.ErrNotFound
	}
	key := attendanceKey{rec.EmployeeID, rec.Date}
	if _, ok := m.attendance[key]; ok {
		return database.ErrAttendanceExists
	}
	m.nextID++
	cp := *rec
	cp.ID = m.nextID
	rec.ID = cp.ID
	m.attendance[key] = &cp
	return nil
}

// PunchOut sets check_out if it is still empty
func (m *MockStore) PunchOut(ctx context.Context, employeeID, date string, at time.Time) (int64, error) {
	if m.PunchOutError != nil {
		return 0, m.PunchOutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.attendance[attendanceKey{employeeID, date}]
	if !ok || rec.CheckOut != nil {
		return 0, nil
	}
	t := at
	rec.CheckOut = &t
	return 1, nil
}

// ListAttendanceByDate returns the day's records, most recent check-in first
func (m *MockStore) ListAttendanceByDate(ctx context.Context, date string) ([]database.AttendanceEntry, error) {
	if m.ListAttendanceError != nil {
		return nil, m.ListAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []database.AttendanceEntry
	for key, rec := range m.attendance {
		if key.date != date {
			continue
		}
		name := ""
		if row, ok := m.employees[key.employeeID]; ok {
			name = row.employee.Name
		}
		entries = append(entries, database.AttendanceEntry{
			EmployeeID: rec.EmployeeID,
			Name:       name,
			CheckIn:    rec.CheckIn,
			CheckOut:   rec.CheckOut,
			Status:     rec.Status,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].CheckIn, entries[j].CheckIn
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return entries, nil
}

// GetOfficeSettings returns the stored settings
func (m *MockStore) GetOfficeSettings(ctx context.Context) (*database.OfficeSettings, error) {
	if m.GetSettingsError != nil {
		return nil, m.GetSettingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	cp := *m.settings
	return &cp, nil
}

// UpdateOfficeSettings replaces the stored settings
func (m *MockStore) UpdateOfficeSettings(ctx context.Context, settings database.OfficeSettings) error {
	if m.UpdateSettingsError != nil {
		return m.UpdateSettingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &settings
	return nil
}

// Close is a no-op
func (m *MockStore) Close() error {
	return nil
}
