// Package recognition turns a camera frame into an attendance action.
//
// The raw frame is tried first. Only when it shows no face are the rotated
// and zoomed variants tried, in order, and the first one with a face decides
// the result. A face that is found but not identified is final.
package recognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Statuses in addition to the attendance outcomes
const (
	StatusUnknown attendance.Status = "Unknown"
	StatusNoFace  attendance.Status = "No Face"
)

const (
	messageUnknown = "Unknown Face - Please register first"
	messageNoFace  = "No face detected. Please try again."
)

// Result is the outcome of one recognition
type Result struct {
	RequestID  string
	Name       *string // nil unless the face was identified
	EmployeeID string
	Status     attendance.Status
	Message    string
	Score      float64
}

// Extractor embeds a single frame
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) ([]float32, error)
}

// Pipeline runs recognition against the registered employees
type Pipeline struct {
	extractor  Extractor
	index      *facematch.Index
	identities database.IdentityReader
	attendance *attendance.Service
	logger     logrus.FieldLogger
}

// NewPipeline creates a recognition pipeline
func NewPipeline(extractor Extractor, index *facematch.Index, identities database.IdentityReader, att *attendance.Service, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		extractor:  extractor,
		index:      index,
		identities: identities,
		attendance: att,
		logger:     logger,
	}
}

// Recognize identifies the face in frame and records attendance for it.
// Errors are returned only for unusable input or infrastructure failures;
// every business outcome, including storage failures while marking, is a Result.
func (p *Pipeline) Recognize(ctx context.Context, frame []byte) (Result, error) {
	requestID := uuid.NewString()
	log := p.logger.WithField("request_id", requestID)

	embedding, err := p.extractor.Extract(ctx, frame)
	if err == nil {
		return p.identify(ctx, log, requestID, embedding)
	}
	if !errors.Is(err, faceembed.ErrNoFaceDetected) {
		return Result{RequestID: requestID}, err
	}

	log.Debug("No face in original frame, trying variants")
	variants, err := faceembed.Variants(frame)
	if err != nil {
		return Result{RequestID: requestID}, err
	}

	for i, variant := range variants {
		embedding, err := p.extractor.Extract(ctx, variant)
		if err != nil {
			if !errors.Is(err, faceembed.ErrNoFaceDetected) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Result{RequestID: requestID}, ctxErr
				}
				log.WithField("variant", i).WithError(err).Warn("Variant extraction failed")
			}
			continue
		}
		log.WithField("variant", i).Debug("Face found in variant")
		return p.identify(ctx, log, requestID, embedding)
	}

	log.Info("No face detected in any variant")
	return Result{RequestID: requestID, Status: StatusNoFace, Message: messageNoFace}, nil
}

func (p *Pipeline) identify(ctx context.Context, log logrus.FieldLogger, requestID string, embedding []float32) (Result, error) {
	unknown := Result{RequestID: requestID, Status: StatusUnknown, Message: messageUnknown}

	match, ok, err := p.index.Search(ctx, embedding, facematch.Identify)
	if err != nil {
		return Result{RequestID: requestID}, err
	}
	if !ok {
		log.WithField("best_score", match.Score).Info("Face not recognized")
		return unknown, nil
	}

	emp, err := p.identities.GetIdentity(ctx, match.EmployeeID)
	if err != nil {
		return Result{RequestID: requestID}, fmt.Errorf("loading employee: %w", err)
	}
	if emp == nil {
		// deleted between the snapshot read and now
		log.WithField("employee_id", match.EmployeeID).Warn("Matched employee no longer exists")
		return unknown, nil
	}

	log = log.WithFields(logrus.Fields{
		"employee_id": emp.ID,
		"score":       match.Score,
	})

	outcome, err := p.attendance.Mark(ctx, emp, p.attendance.Now())
	if err != nil {
		log.WithError(err).Error("Failed to record attendance")
	} else {
		log.WithField("status", outcome.Status).Info("Face recognized")
	}

	name := emp.Name
	return Result{
		RequestID:  requestID,
		Name:       &name,
		EmployeeID: emp.ID,
		Status:     outcome.Status,
		Message:    outcome.Message,
		Score:      match.Score,
	}, nil
}
