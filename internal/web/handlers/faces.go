package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// FacesHandler exposes face-matching diagnostics
type FacesHandler struct {
	index  *facematch.Index
	logger logrus.FieldLogger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(index *facematch.Index, logger logrus.FieldLogger) *FacesHandler {
	return &FacesHandler{
		index:  index,
		logger: logger,
	}
}

// SimilarityPair is the similarity of two registered faces
type SimilarityPair struct {
	EmployeeA string  `json:"employee_a"`
	NameA     string  `json:"name_a"`
	EmployeeB string  `json:"employee_b"`
	NameB     string  `json:"name_b"`
	Score     float64 `json:"score"`
	Duplicate bool    `json:"duplicate"`
}

// SimilaritiesResponse lists every pair of registered faces
type SimilaritiesResponse struct {
	IdentifyThreshold  float64          `json:"identify_threshold"`
	DuplicateThreshold float64          `json:"duplicate_threshold"`
	Pairs              []SimilarityPair `json:"pairs"`
}

// Similarities returns the cosine similarity of every pair of registered faces.
func (h *FacesHandler) Similarities(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.index.Pairwise(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute face similarities")
		respondError(w, http.StatusInternalServerError, "failed to compute similarities")
		return
	}

	t := h.index.Thresholds()
	resp := SimilaritiesResponse{
		IdentifyThreshold:  t.Identify,
		DuplicateThreshold: t.Duplicate,
		Pairs:              make([]SimilarityPair, 0, len(pairs)),
	}
	for _, p := range pairs {
		resp.Pairs = append(resp.Pairs, SimilarityPair{
			EmployeeA: p.A.EmployeeID,
			NameA:     p.A.Name,
			EmployeeB: p.B.EmployeeID,
			NameB:     p.B.Name,
			Score:     p.Score,
			Duplicate: p.Duplicate,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
