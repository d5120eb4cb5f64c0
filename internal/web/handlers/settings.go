package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// SettingsHandler handles the office settings endpoints
type SettingsHandler struct {
	service *attendance.Service
	logger  logrus.FieldLogger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service *attendance.Service, logger logrus.FieldLogger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger,
	}
}

// SettingsPayload is the JSON form of the office settings
type SettingsPayload struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	OnTimeLimit string `json:"on_time_limit"`
}

// Get returns the current office settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Settings(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read office settings")
		respondError(w, http.StatusInternalServerError, "failed to read office settings")
		return
	}
	respondJSON(w, http.StatusOK, SettingsPayload{
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		OnTimeLimit: s.OnTimeLimit,
	})
}

// Update replaces the office settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req SettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.StartTime == "" || req.EndTime == "" || req.OnTimeLimit == "" {
		respondError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	err := h.service.UpdateSettings(r.Context(), database.OfficeSettings{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		OnTimeLimit: req.OnTimeLimit,
	})
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidSettings) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to update office settings")
		respondError(w, http.StatusInternalServerError, "Failed to update office settings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Office settings updated successfully"})
}
