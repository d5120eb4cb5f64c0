package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// AttendanceHandler handles check-in, check-out and the daily summary
type AttendanceHandler struct {
	pipeline *recognition.Pipeline
	service  *attendance.Service
	logger   logrus.FieldLogger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(pipeline *recognition.Pipeline, service *attendance.Service, logger logrus.FieldLogger) *AttendanceHandler {
	return &AttendanceHandler{
		pipeline: pipeline,
		service:  service,
		logger:   logger,
	}
}

// MarkResponse is the recognition result returned to the kiosk
type MarkResponse struct {
	RequestID  string  `json:"request_id"`
	Name       *string `json:"name"`
	EmployeeID string  `json:"employee_id,omitempty"`
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Score      float64 `json:"score,omitempty"`
}

// Mark recognizes the uploaded frame and records attendance.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	frame, err := readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Recognize(r.Context(), frame)
	if err != nil {
		if errors.Is(err, faceembed.ErrInvalidImage) {
			respondJSON(w, http.StatusBadRequest, MarkResponse{
				RequestID: result.RequestID,
				Status:    string(attendance.StatusError),
				Message:   "Invalid image",
			})
			return
		}
		h.logger.WithError(err).WithField("request_id", result.RequestID).Error("Recognition failed")
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}

	respondJSON(w, http.StatusOK, MarkResponse{
		RequestID:  result.RequestID,
		Name:       result.Name,
		EmployeeID: result.EmployeeID,
		Status:     string(result.Status),
		Message:    result.Message,
		Score:      result.Score,
	})
}

// PunchOutRequest names the employee to check out, by id or by name
type PunchOutRequest struct {
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id"`
}

// PunchOut records today's check-out.
func (h *AttendanceHandler) PunchOut(w http.ResponseWriter, r *http.Request) {
	var req PunchOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ref := attendance.EmployeeRef{ID: req.EmployeeID, Name: req.Name}
	if ref.String() == "" {
		respondError(w, http.StatusBadRequest, "name or employee_id is required")
		return
	}

	emp, err := h.service.PunchOut(r.Context(), ref, h.service.Now())
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Employee not found")
		return
	case errors.Is(err, attendance.ErrPunchOutRejected):
		respondError(w, http.StatusBadRequest,
			"Failed to punch out. Employee may not have punched in or has already punched out.")
		return
	case err != nil:
		h.logger.WithError(err).WithField("employee", sanitizeForLog(ref.String())).Error("Punch-out failed")
		respondError(w, http.StatusInternalServerError, "failed to punch out")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"message":     emp.Name + " punched out successfully.",
		"employee_id": emp.ID,
	})
}

// RecentEntry is one check-in listed on the daily summary
type RecentEntry struct {
	EmployeeID string     `json:"employee_id"`
	Name       string     `json:"name"`
	Time       *time.Time `json:"time"`
	CheckOut   *time.Time `json:"check_out,omitempty"`
	Status     string     `json:"status"`
}

// TodayResponse is the landing page summary
type TodayResponse struct {
	Date           string        `json:"date"`
	TotalEmployees int           `json:"totalEmployees"`
	PresentToday   int           `json:"presentToday"`
	LateToday      int           `json:"lateToday"`
	RecentEntries  []RecentEntry `json:"recentEntries"`
}

// Today returns today's attendance summary.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Today(r.Context(), h.service.Now())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load today's attendance")
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	resp := TodayResponse{
		Date:           stats.Date,
		TotalEmployees: stats.TotalEmployees,
		PresentToday:   stats.OnTime,
		LateToday:      stats.Late,
		RecentEntries:  make([]RecentEntry, 0, len(stats.Recent)),
	}
	for _, e := range stats.Recent {
		resp.RecentEntries = append(resp.RecentEntries, RecentEntry{
			EmployeeID: e.EmployeeID,
			Name:       e.Name,
			Time:       e.CheckIn,
			CheckOut:   e.CheckOut,
			Status:     string(e.Status),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
