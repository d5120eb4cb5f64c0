package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

// EmployeesHandler handles registration and employee photo endpoints
type EmployeesHandler struct {
	guard  *registration.Guard
	store  database.IdentityWriter
	logger logrus.FieldLogger
}

// NewEmployeesHandler creates a new employees handler
func NewEmployeesHandler(guard *registration.Guard, store database.IdentityWriter, logger logrus.FieldLogger) *EmployeesHandler {
	return &EmployeesHandler{
		guard:  guard,
		store:  store,
		logger: logger,
	}
}

// RegisterRequest is an employee profile with a base64 encoded face image
type RegisterRequest struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	MobileNo           string   `json:"mobile_no"`
	Address            string   `json:"address"`
	Gender             string   `json:"gender"`
	Department         string   `json:"department"`
	Position           string   `json:"position"`
	Salary             *float64 `json:"salary"`
	WorkingHoursPerDay *float64 `json:"working_hours_per_day"`
	EmployeeType       string   `json:"employee_type"`
	JoiningDate        string   `json:"joining_date"`
	ImageBase64        string   `json:"image_base64"`
}

func (req *RegisterRequest) employee() *database.Employee {
	return &database.Employee{
		ID:                 req.ID,
		Name:               req.Name,
		Email:              req.Email,
		MobileNo:           req.MobileNo,
		Address:            req.Address,
		Gender:             req.Gender,
		Department:         req.Department,
		Position:           req.Position,
		Salary:             req.Salary,
		WorkingHoursPerDay: req.WorkingHoursPerDay,
		EmployeeType:       req.EmployeeType,
		JoiningDate:        req.JoiningDate,
	}
}

// Register enrolls a new employee.
func (h *EmployeesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	img, err := decodeBase64Image(req.ImageBase64)
	if err != nil {
		respondFaceError(w, err)
		return
	}

	id, err := h.guard.Register(r.Context(), req.employee(), img)
	if err != nil {
		var persist *registration.PersistenceError
		if errors.As(err, &persist) {
			h.logger.WithError(err).WithField("employee_id", sanitizeForLog(req.ID)).Error("Registration failed")
		}
		respondFaceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"status":      "success",
		"message":     "Employee registered successfully",
		"employee_id": id,
	})
}

// ValidateFaceRequest carries a base64 encoded face image
type ValidateFaceRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// ValidateFace checks that an image is usable for a new registration.
func (h *EmployeesHandler) ValidateFace(w http.ResponseWriter, r *http.Request) {
	var req ValidateFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	img, err := decodeBase64Image(req.ImageBase64)
	if err != nil {
		respondFaceError(w, err)
		return
	}

	if err := h.guard.Validate(r.Context(), img); err != nil {
		respondFaceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Face is unique and valid for registration.",
	})
}

// UpdatePhoto replaces an employee's photo and face embedding.
func (h *EmployeesHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	img, err := readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.guard.UpdatePhoto(r.Context(), id, img); err != nil {
		var persist *registration.PersistenceError
		if errors.As(err, &persist) {
			h.logger.WithError(err).WithField("employee_id", sanitizeForLog(id)).Error("Photo update failed")
		}
		respondFaceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Photo updated successfully",
	})
}

// GetPhoto returns the stored registration photo.
func (h *EmployeesHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("employee_id", sanitizeForLog(id)).Error("Failed to load photo")
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if len(photo) == 0 {
		respondError(w, http.StatusNotFound, "Photo not found")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(photo))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(photo)
}

// Delete removes an employee together with their attendance history.
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteIdentity(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Employee not found")
			return
		}
		h.logger.WithError(err).WithField("employee_id", sanitizeForLog(id)).Error("Failed to delete employee")
		respondError(w, http.StatusInternalServerError, "failed to delete employee")
		return
	}

	h.logger.WithField("employee_id", sanitizeForLog(id)).Info("Deleted employee")
	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"employee_id": id,
	})
}
