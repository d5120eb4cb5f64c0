// Package sqlite is a single-file storage backend built on gorm. It keeps the
// same guarantees as the PostgreSQL backend: one attendance row per employee
// and day, cascading deletes and atomic registration.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func init() {
	database.RegisterBackend("sqlite", Open)
}

// Store provides SQLite-backed employee, attendance and settings storage.
type Store struct {
	db *gorm.DB

	// afterProfileInsert runs inside the registration transaction between the
	// profile insert and the embedding update. Tests use it to force a rollback.
	afterProfileInsert func(tx *gorm.DB) error
}

var _ database.Store = (*Store)(nil)

// dsn turns a sqlite:// URL into a go-sqlite3 DSN with foreign keys enabled.
func dsn(url string) string {
	path := url
	if scheme, rest, ok := strings.Cut(url, "://"); ok && strings.EqualFold(scheme, "sqlite") {
		path = rest
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Open opens (creating if needed) the database file, migrates the schema and
// seeds the office settings.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.URL)), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	// SQLite allows a single writer; one connection avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&employeeModel{}, &attendanceModel{}, &officeSettingsModel{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	office := config.LoadDefaults().Office
	seed := officeSettingsModel{
		ID:          1,
		StartTime:   office.StartTime,
		EndTime:     office.EndTime,
		OnTimeLimit: office.OnTimeLimit,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("failed to seed office settings: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetAllEmbeddings returns every stored face embedding ordered by employee ID.
func (s *Store) GetAllEmbeddings(ctx context.Context) ([]database.IdentityEmbedding, error) {
	var models []employeeModel
	err := s.db.WithContext(ctx).
		Select("id", "name", "embedding").
		Where("embedding IS NOT NULL").
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}

	result := make([]database.IdentityEmbedding, 0, len(models))
	for i := range models {
		result = append(result, database.IdentityEmbedding{
			EmployeeID: models[i].ID,
			Name:       models[i].Name,
			Embedding:  decodeEmbedding(models[i].Embedding),
		})
	}
	return result, nil
}

func (s *Store) findEmployee(ctx context.Context, query string, args ...any) (*database.Employee, error) {
	var models []employeeModel
	err := s.db.WithContext(ctx).
		Omit("embedding", "photo").
		Where(query, args...).
		Order("id").
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toEmployee(), nil
}

// GetIdentity retrieves an employee by ID, returns nil if not found.
func (s *Store) GetIdentity(ctx context.Context, id string) (*database.Employee, error) {
	emp, err := s.findEmployee(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}

// FindIdentityByName retrieves an employee by normalized name, returns nil if not found.
func (s *Store) FindIdentityByName(ctx context.Context, name string) (*database.Employee, error) {
	emp, err := s.findEmployee(ctx, "name_key = ?", facematch.NormalizePersonName(name))
	if err != nil {
		return nil, fmt.Errorf("find employee by name: %w", err)
	}
	return emp, nil
}

// HasIdentity checks if an employee exists.
func (s *Store) HasIdentity(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&employeeModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check employee exists: %w", err)
	}
	return count > 0, nil
}

// GetPhoto returns the stored registration photo.
func (s *Store) GetPhoto(ctx context.Context, id string) ([]byte, error) {
	var models []employeeModel
	if err := s.db.WithContext(ctx).Select("photo").Where("id = ?", id).Limit(1).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].Photo, nil
}

// CountIdentities returns the total number of employees.
func (s *Store) CountIdentities(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&employeeModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return int(count), nil
}

// CreateIdentity inserts the profile and then stores the embedding and photo
// in the same transaction.
func (s *Store) CreateIdentity(ctx context.Context, emp *database.Employee, embedding []float32, photo []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := employeeModel{
			ID:                 emp.ID,
			Name:               emp.Name,
			NameKey:            facematch.NormalizePersonName(emp.Name),
			Email:              emp.Email,
			MobileNo:           emp.MobileNo,
			Address:            emp.Address,
			Gender:             emp.Gender,
			Department:         emp.Department,
			Position:           emp.Position,
			Salary:             emp.Salary,
			WorkingHoursPerDay: emp.WorkingHoursPerDay,
			EmployeeType:       emp.EmployeeType,
			JoiningDate:        emp.JoiningDate,
		}
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return database.ErrDuplicateID
			}
			return fmt.Errorf("insert employee: %w", err)
		}

		if s.afterProfileInsert != nil {
			if err := s.afterProfileInsert(tx); err != nil {
				return err
			}
		}

		err := tx.Model(&employeeModel{}).Where("id = ?", emp.ID).Updates(map[string]any{
			"embedding": encodeEmbedding(embedding),
			"photo":     photo,
		}).Error
		if err != nil {
			return fmt.Errorf("store embedding: %w", err)
		}
		return nil
	})
}

// SaveEmbedding replaces the embedding and photo of an existing employee.
func (s *Store) SaveEmbedding(ctx context.Context, id string, embedding []float32, photo []byte) error {
	res := s.db.WithContext(ctx).Model(&employeeModel{}).Where("id = ?", id).Updates(map[string]any{
		"embedding":  encodeEmbedding(embedding),
		"photo":      photo,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("update embedding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteIdentity removes an employee; attendance rows go with it.
func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&employeeModel{})
	if res.Error != nil {
		return fmt.Errorf("delete employee: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}
