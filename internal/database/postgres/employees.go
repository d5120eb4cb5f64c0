package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Store provides PostgreSQL-backed employee, attendance and settings storage.
type Store struct {
	pool *Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new PostgreSQL store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
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
	rows, err := s.pool.Query(ctx, `
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
		var vec pgvector.Vector
		if err := rows.Scan(&e.EmployeeID, &e.Name, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Embedding = vec.Slice()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return result, nil
}

// GetIdentity retrieves an employee by ID, returns nil if not found.
func (s *Store) GetIdentity(ctx context.Context, id string) (*database.Employee, error) {
	emp, err := scanEmployee(s.pool.QueryRow(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}

// FindIdentityByName retrieves an employee by normalized name, returns nil if not found.
// When several employees share a name the lowest ID wins.
func (s *Store) FindIdentityByName(ctx context.Context, name string) (*database.Employee, error) {
	emp, err := scanEmployee(s.pool.QueryRow(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE name_key = $1 ORDER BY id LIMIT 1",
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
	err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM employees WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check employee exists: %w", err)
	}
	return exists, nil
}

// GetPhoto returns the stored registration photo.
func (s *Store) GetPhoto(ctx context.Context, id string) ([]byte, error) {
	var photo []byte
	err := s.pool.QueryRow(ctx, "SELECT photo FROM employees WHERE id = $1", id).Scan(&photo)
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
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

// CreateIdentity inserts the profile and then stores the embedding and photo
// in the same transaction.
func (s *Store) CreateIdentity(ctx context.Context, emp *database.Employee, embedding []float32, photo []byte) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (id, name, name_key, email, mobile_no, address, gender, department,
			position, salary, working_hours_per_day, employee_type, joining_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, emp.ID, emp.Name, facematch.NormalizePersonName(emp.Name), emp.Email, emp.MobileNo, emp.Address,
		emp.Gender, emp.Department, emp.Position, emp.Salary, emp.WorkingHoursPerDay, emp.EmployeeType,
		emp.JoiningDate)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return database.ErrDuplicateID
		}
		return fmt.Errorf("insert employee: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE employees SET face_embedding = $2, photo = $3 WHERE id = $1",
		emp.ID, pgvector.NewVector(embedding), photo)
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
	result, err := s.pool.Exec(ctx, `
		UPDATE employees SET face_embedding = $2, photo = $3, updated_at = NOW()
		WHERE id = $1
	`, id, pgvector.NewVector(embedding), photo)
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
	result, err := s.pool.Exec(ctx, "DELETE FROM employees WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}
