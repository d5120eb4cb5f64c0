// Package registration enrolls employees. A registration passes a fixed
// sequence of gates (face present, embedding extracted, face not already
// enrolled, id free) and is then written in one transaction.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	// ErrInvalidProfile is returned when the employee id or name is empty.
	ErrInvalidProfile = errors.New("employee ID and name are required")

	// ErrDuplicateID is returned when the employee id is already registered.
	ErrDuplicateID = database.ErrDuplicateID
)

// DuplicateFaceError is returned when the face already belongs to an employee
type DuplicateFaceError struct {
	EmployeeID string
	Name       string
	Score      float64
}

func (e *DuplicateFaceError) Error() string {
	return fmt.Sprintf("face already registered as %s (similarity %.4f)", e.Name, e.Score)
}

// PersistenceError wraps a storage failure during the final write
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving employee: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// FaceExtractor is the part of the embedding extractor the guard needs
type FaceExtractor interface {
	HasFace(ctx context.Context, imageData []byte) (bool, error)
	RobustExtract(ctx context.Context, imageData []byte) ([]float32, error)
}

// Guard validates and persists registrations
type Guard struct {
	store     database.IdentityWriter
	extractor FaceExtractor
	index     *facematch.Index
	logger    logrus.FieldLogger
}

// NewGuard creates a registration guard
func NewGuard(store database.IdentityWriter, extractor FaceExtractor, index *facematch.Index, logger logrus.FieldLogger) *Guard {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Guard{
		store:     store,
		extractor: extractor,
		index:     index,
		logger:    logger,
	}
}

// normalizeProfile trims text fields and checks the required ones.
func normalizeProfile(emp *database.Employee) error {
	if emp == nil {
		return ErrInvalidProfile
	}
	emp.ID = strings.TrimSpace(emp.ID)
	emp.Name = strings.TrimSpace(emp.Name)
	emp.Email = strings.TrimSpace(emp.Email)
	emp.MobileNo = strings.TrimSpace(emp.MobileNo)
	emp.Department = strings.TrimSpace(emp.Department)
	emp.Position = strings.TrimSpace(emp.Position)
	if emp.ID == "" || emp.Name == "" {
		return ErrInvalidProfile
	}
	return nil
}

// checkFace runs the presence check, robust extraction and duplicate check.
// excludeID leaves one employee out of the duplicate search.
func (g *Guard) checkFace(ctx context.Context, imageData []byte, excludeID string) ([]float32, error) {
	ok, err := g.extractor.HasFace(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faceembed.ErrNoFaceDetected
	}

	embedding, err := g.extractor.RobustExtract(ctx, imageData)
	if err != nil {
		return nil, err
	}

	match, duplicate, err := g.index.SearchExcluding(ctx, embedding, facematch.DuplicateReject, excludeID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		g.logger.WithFields(logrus.Fields{
			"employee_id": match.EmployeeID,
			"name":        match.Name,
			"score":       match.Score,
		}).Info("Rejected duplicate face")
		return nil, &DuplicateFaceError{EmployeeID: match.EmployeeID, Name: match.Name, Score: match.Score}
	}

	return embedding, nil
}

// Register enrolls a new employee and returns its id. Nothing is written
// unless every gate passes.
func (g *Guard) Register(ctx context.Context, emp *database.Employee, imageData []byte) (string, error) {
	if err := normalizeProfile(emp); err != nil {
		return "", err
	}

	embedding, err := g.checkFace(ctx, imageData, "")
	if err != nil {
		return "", err
	}

	exists, err := g.store.HasIdentity(ctx, emp.ID)
	if err != nil {
		return "", &PersistenceError{Err: err}
	}
	if exists {
		return "", ErrDuplicateID
	}

	if err := g.store.CreateIdentity(ctx, emp, embedding, imageData); err != nil {
		if errors.Is(err, database.ErrDuplicateID) {
			return "", ErrDuplicateID
		}
		return "", &PersistenceError{Err: err}
	}

	g.logger.WithFields(logrus.Fields{
		"employee_id": emp.ID,
		"name":        emp.Name,
	}).Info("Registered employee")

	return emp.ID, nil
}

// Validate runs the face gates of a registration without writing anything.
func (g *Guard) Validate(ctx context.Context, imageData []byte) error {
	_, err := g.checkFace(ctx, imageData, "")
	return err
}

// UpdatePhoto replaces an employee's photo and embedding. The new face must
// not match any other employee.
func (g *Guard) UpdatePhoto(ctx context.Context, id string, imageData []byte) error {
	exists, err := g.store.HasIdentity(ctx, id)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	if !exists {
		return database.ErrNotFound
	}

	embedding, err := g.checkFace(ctx, imageData, id)
	if err != nil {
		return err
	}

	if err := g.store.SaveEmbedding(ctx, id, embedding, imageData); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return err
		}
		return &PersistenceError{Err: err}
	}

	g.logger.WithField("employee_id", id).Info("Updated employee photo")
	return nil
}

// Reembed recomputes an employee's embedding from the stored photo, applying
// the same duplicate check as UpdatePhoto. Returns false if no photo is stored.
func (g *Guard) Reembed(ctx context.Context, id string) (bool, error) {
	photo, err := g.store.GetPhoto(ctx, id)
	if err != nil {
		return false, &PersistenceError{Err: err}
	}
	if len(photo) == 0 {
		return false, nil
	}
	if err := g.UpdatePhoto(ctx, id, photo); err != nil {
		return false, err
	}
	return true, nil
}
