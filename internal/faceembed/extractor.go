// Package faceembed turns face images into unit-length embeddings using the
// face embedding server. The model is reached through the FaceModel interface
// so tests can swap it for a fake.
package faceembed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var (
	// ErrNoFaceDetected is returned when the presence check or the embedding
	// model finds no face in the image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrEmbeddingExtractionFailed is returned when none of the robust
	// extraction variants yielded an embedding.
	ErrEmbeddingExtractionFailed = errors.New("could not extract any embeddings from the image")

	// ErrInvalidImage is returned for data that cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
)

// FaceModel is the detection and embedding model
type FaceModel interface {
	// DetectFaces runs the face detector only
	DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error)
	// EmbedFaces detects faces and computes an embedding for each
	EmbedFaces(ctx context.Context, imageData []byte) (*FaceResponse, error)
}

// Extractor produces face embeddings from encoded images
type Extractor struct {
	model    FaceModel
	minScore float64
	logger   logrus.FieldLogger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithMinDetectionScore sets the detector confidence required by the presence check
func WithMinDetectionScore(score float64) Option {
	return func(e *Extractor) {
		if score > 0 {
			e.minScore = score
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an extractor backed by model
func NewExtractor(model FaceModel, opts ...Option) *Extractor {
	e := &Extractor{
		model:    model,
		minScore: constants.MinDetectionScore,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasFace runs the presence check: at least one detection at or above the
// minimum detector confidence.
func (e *Extractor) HasFace(ctx context.Context, imageData []byte) (bool, error) {
	if err := checkImage(imageData); err != nil {
		return false, err
	}

	resp, err := e.model.DetectFaces(ctx, imageData)
	if err != nil {
		return false, fmt.Errorf("face detection: %w", err)
	}

	for _, f := range resp.Faces {
		if f.DetScore >= e.minScore {
			return true, nil
		}
	}
	return false, nil
}

// embed returns the normalized embedding of the first face, nil if none.
func (e *Extractor) embed(ctx context.Context, imageData []byte) ([]float32, error) {
	resp, err := e.model.EmbedFaces(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("face embedding: %w", err)
	}
	if len(resp.Faces) == 0 {
		return nil, nil
	}
	return database.Normalize(resp.Faces[0].Embedding), nil
}

// Extract returns the unit-length embedding of the first face in the image.
// Returns ErrNoFaceDetected if the presence check or the model finds no face.
func (e *Extractor) Extract(ctx context.Context, imageData []byte) ([]float32, error) {
	ok, err := e.HasFace(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoFaceDetected
	}

	embedding, err := e.embed(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		return nil, ErrNoFaceDetected
	}
	return embedding, nil
}

// RobustExtract embeds the original image and its four geometric variants,
// averages every embedding found and renormalizes the mean to unit length.
// Variants where the model fails or finds no face are skipped.
func (e *Extractor) RobustExtract(ctx context.Context, imageData []byte) ([]float32, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	inputs := [][]byte{imageData}
	for i, v := range variantImages(img) {
		encoded, err := encodeJPEG(v)
		if err != nil {
			e.logger.WithField("variant", i+1).WithError(err).Warn("Skipping variant")
			continue
		}
		inputs = append(inputs, encoded)
	}

	var sum []float64
	found := 0
	var lastErr error

	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		embedding, err := e.embed(ctx, input)
		if err != nil {
			lastErr = err
			e.logger.WithField("variant", i).WithError(err).Warn("Embedding variant failed")
			continue
		}
		if embedding == nil {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(embedding))
		}
		if len(embedding) != len(sum) {
			e.logger.WithFields(logrus.Fields{
				"variant":  i,
				"dim":      len(embedding),
				"expected": len(sum),
			}).Warn("Skipping variant with mismatched dimension")
			continue
		}
		for j, x := range embedding {
			sum[j] += float64(x)
		}
		found++
	}

	if found == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingExtractionFailed, lastErr)
		}
		return nil, ErrEmbeddingExtractionFailed
	}

	mean := make([]float32, len(sum))
	for j := range sum {
		mean[j] = float32(sum[j] / float64(found))
	}
	result := database.Normalize(mean)
	if result == nil {
		return nil, ErrEmbeddingExtractionFailed
	}

	e.logger.WithField("variants", found).Debug("Created robust embedding")
	return result, nil
}
