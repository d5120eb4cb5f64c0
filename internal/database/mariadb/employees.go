package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Store provides MariaDB-backed employee, attendance and settings storage.
type Store struct {
	pool *Pool
}

var _ database.Store = (*Store)(nil)

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// encodeEmbedding stores the vector as a JSON list [e1, e2, ...] in a blob column.
func encodeEmbedding(embedding []float32) ([]byte, error) {
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	return data, nil
}

func decodeEmbedding(data []byte) ([]float32, error) {
	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return embedding, nil
}

const employeeColumns = `id, name, email, mobile_no, address, gender, department, position,
	salary, working_hours_per_day, employee_type, joining_date, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*database.Employee, error) {
	var emp database.Employee
	var salary, hours sql.NullFloat64
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.MobileNo, &emp.Address, &emp.Gender,
		&emp.Department, &emp.Position, &salary, &hours, &emp.EmployeeType, &emp.JoiningDate,
		&emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if salary.Valid {
		emp.Salary = &salary.Float64
	}
	if hours.Valid {
		emp.WorkingHoursPerDay = &hours.Float64
	}
	return &emp, nil
}

// GetAllEmbeddings returns every stored face embedding ordered by employee ID.
func (s *Store) GetAllEmbeddings(ctx context.Context) ([]database.IdentityEmbedding, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, name, face_embedding
		FROM employees
		WHERE face_embedding IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var result []database.IdentityEmbedding
	for rows.Next() {
		var e database.IdentityEmbedding
		var data []byte
		if err := rows.Scan(&e.EmployeeID, &e.Name, &data); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if e.Embedding, err = decodeEmbedding(data); err != nil {
			return nil, fmt.Errorf("employee %s: %w", e.EmployeeID, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return result, nil
}

// GetIdentity retrieves an employee by ID, returns nil if not found.
func (s *Store) GetIdentity(ctx context.Context, id string) (*database.Employee, error) {
	emp, err := scanEmployee(s.pool.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}

// FindIdentityByName retrieves an employee by normalized name, returns nil if not found.
func (s *Store) FindIdentityByName(ctx context.Context, name string) (*database.Employee, error) {
	emp, err := scanEmployee(s.pool.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE name_key = ? ORDER BY id LIMIT 1",
		facematch.NormalizePersonName(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find employee by name: %w", err)
	}
	return emp, nil
}

// HasIdentity checks if an employee exists.
func (s *Store) HasIdentity(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM employees WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check employee exists: %w", err)
	}
	return exists, nil
}

// GetPhoto returns the stored registration photo.
func (s *Store) GetPhoto(ctx context.Context, id string) ([]byte, error) {
	var photo []byte
	err := s.pool.db.QueryRowContext(ctx, "SELECT photo FROM employees WHERE id = ?", id).Scan(&photo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return photo, nil
}

// CountIdentities returns the total number of employees.
func (s *Store) CountIdentities(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

// CreateIdentity inserts the profile and then stores the embedding and photo
// in the same transaction.
func (s *Store) CreateIdentity(ctx context.Context, emp *database.Employee, embedding []float32, photo []byte) error {
	data, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (id, name, name_key, email, mobile_no, address, gender, department,
			position, salary, working_hours_per_day, employee_type, joining_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, emp.ID, emp.Name, facematch.NormalizePersonName(emp.Name), emp.Email, emp.MobileNo, emp.Address,
		emp.Gender, emp.Department, emp.Position, emp.Salary, emp.WorkingHoursPerDay, emp.EmployeeType,
		emp.JoiningDate)
	if err != nil {
		if isNumber(err, errDuplicateEntry) {
			return database.ErrDuplicateID
		}
		return fmt.Errorf("insert employee: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE employees SET face_embedding = ?, photo = ? WHERE id = ?",
		data, photo, emp.ID)
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit employee: %w", err)
	}
	return nil
}

// SaveEmbedding replaces the embedding and photo of an existing employee.
func (s *Store) SaveEmbedding(ctx context.Context, id string, embedding []float32, photo []byte) error {
	data, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}

	result, err := s.pool.db.ExecContext(ctx, `
		UPDATE employees SET face_embedding = ?, photo = ?, updated_at = CURRENT_TIMESTAMP(6)
		WHERE id = ?
	`, data, photo, id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteIdentity removes an employee; attendance rows go with it.
func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	result, err := s.pool.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}
