package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Rejection kinds reported by registration endpoints
const (
	kindInvalidProfile   = "invalid_profile"
	kindInvalidImage     = "invalid_image"
	kindNoFace           = "no_face"
	kindExtractionFailed = "extraction_failed"
	kindDuplicateFace    = "duplicate_face"
	kindDuplicateID      = "duplicate_id"
	kindNotFound         = "not_found"
	kindPersistence      = "persistence"
)

// RejectionResponse describes why a face or registration was refused
type RejectionResponse struct {
	Error      string  `json:"error"`
	Kind       string  `json:"kind"`
	Name       string  `json:"name,omitempty"`
	EmployeeID string  `json:"employee_id,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// classifyFaceError maps registration and extraction errors to an HTTP status
// and rejection body.
func classifyFaceError(err error) (int, RejectionResponse) {
	var dup *registration.DuplicateFaceError
	var persist *registration.PersistenceError

	switch {
	case errors.As(err, &dup):
		return http.StatusBadRequest, RejectionResponse{
			Error:      fmt.Sprintf("Face already registered as %s", dup.Name),
			Kind:       kindDuplicateFace,
			Name:       dup.Name,
			EmployeeID: dup.EmployeeID,
			Score:      dup.Score,
		}
	case errors.Is(err, registration.ErrInvalidProfile):
		return http.StatusBadRequest, RejectionResponse{Error: err.Error(), Kind: kindInvalidProfile}
	case errors.Is(err, faceembed.ErrInvalidImage):
		return http.StatusBadRequest, RejectionResponse{Error: "Invalid image", Kind: kindInvalidImage}
	case errors.Is(err, faceembed.ErrNoFaceDetected):
		return http.StatusBadRequest, RejectionResponse{Error: "No face detected", Kind: kindNoFace}
	case errors.Is(err, faceembed.ErrEmbeddingExtractionFailed):
		return http.StatusBadRequest, RejectionResponse{Error: "Could not extract embedding", Kind: kindExtractionFailed}
	case errors.Is(err, registration.ErrDuplicateID):
		return http.StatusConflict, RejectionResponse{Error: err.Error(), Kind: kindDuplicateID}
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, RejectionResponse{Error: "Employee not found", Kind: kindNotFound}
	case errors.As(err, &persist):
		return http.StatusInternalServerError, RejectionResponse{Error: "Failed to save face data", Kind: kindPersistence}
	default:
		return http.StatusInternalServerError, RejectionResponse{Error: "Error processing image", Kind: kindPersistence}
	}
}

// respondFaceError sends the rejection for a registration or extraction error.
func respondFaceError(w http.ResponseWriter, err error) {
	status, body := classifyFaceError(err)
	respondJSON(w, status, body)
}

// decodeBase64Image decodes a base64 image, accepting an optional data URL prefix.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if _, payload, found := strings.Cut(s, ";base64,"); found && strings.HasPrefix(s, "data:") {
		s = payload
	}
	if s == "" {
		return nil, faceembed.ErrInvalidImage
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faceembed.ErrInvalidImage, err)
	}
	return data, nil
}

// readUploadedImage reads the "file" part of a multipart request.
func readUploadedImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, errors.New("failed to parse multipart form")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
