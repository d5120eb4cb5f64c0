// Package mock provides a fake face model for testing.
//
// Faces are recognized by color: a registered color maps to an embedding, and
// an image "contains" that face when the pixel at its center is close to the
// color. Solid-color images keep their center color under rotation and
// zoom, so the geometric variants of an image see the same face.
package mock

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"

	_ "image/jpeg"

	"github.com/kozaktomas/face-attendance/internal/faceembed"
)

// maxColorDistance tolerates JPEG re-encoding drift
const maxColorDistance = 40

type face struct {
	color     color.RGBA
	embedding []float32
}

// Model is an in-memory implementation of faceembed.FaceModel
type Model struct {
	mu    sync.Mutex
	faces []face

	// DetScore is reported for every detected face (default 0.99)
	DetScore float64

	// BlindFormats lists decoder formats ("png", "jpeg") in which no face is
	// ever found. Originals are PNG and variants are JPEG, so {"png": true}
	// simulates a frame where only the perturbed variants show a face.
	BlindFormats map[string]bool

	// Error injection
	DetectError error
	EmbedError  error

	// Call counters
	DetectCalls int
	EmbedCalls  int
}

// NewModel creates a fake model with no known faces
func NewModel() *Model {
	return &Model{DetScore: 0.99}
}

var _ faceembed.FaceModel = (*Model)(nil)

// AddFace registers a face color and the embedding it produces
func (m *Model) AddFace(c color.RGBA, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = append(m.faces, face{color: c, embedding: embedding})
}

// DetectFaces reports the face found at the image center, if any
func (m *Model) DetectFaces(ctx context.Context, imageData []byte) (*faceembed.FaceResponse, error) {
	m.mu.Lock()
	m.DetectCalls++
	m.mu.Unlock()

	if m.DetectError != nil {
		return nil, m.DetectError
	}
	f := m.lookup(imageData)
	if f == nil {
		return &faceembed.FaceResponse{Model: "mock"}, nil
	}
	return &faceembed.FaceResponse{
		FacesCount: 1,
		Faces:      []faceembed.FaceDetection{{FaceIndex: 0, DetScore: m.DetScore, BBox: []float64{0, 0, 1, 1}}},
		Model:      "mock",
	}, nil
}

// EmbedFaces reports the face found at the image center with its embedding
func (m *Model) EmbedFaces(ctx context.Context, imageData []byte) (*faceembed.FaceResponse, error) {
	m.mu.Lock()
	m.EmbedCalls++
	m.mu.Unlock()

	if m.EmbedError != nil {
		return nil, m.EmbedError
	}
	f := m.lookup(imageData)
	if f == nil {
		return &faceembed.FaceResponse{Model: "mock"}, nil
	}
	embedding := make([]float32, len(f.embedding))
	copy(embedding, f.embedding)
	return &faceembed.FaceResponse{
		FacesCount: 1,
		Faces: []faceembed.FaceDetection{{
			FaceIndex: 0,
			Dim:       len(embedding),
			Embedding: embedding,
			BBox:      []float64{0, 0, 1, 1},
			DetScore:  m.DetScore,
		}},
		Model: "mock",
	}, nil
}

func (m *Model) lookup(imageData []byte) *face {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil
	}
	if m.BlindFormats[format] {
		return nil
	}

	b := img.Bounds()
	r, g, bl, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.faces {
		if distance(m.faces[i].color, c) <= maxColorDistance {
			return &m.faces[i]
		}
	}
	return nil
}

func distance(a, b color.RGBA) int {
	return abs(int(a.R)-int(b.R)) + abs(int(a.G)-int(b.G)) + abs(int(a.B)-int(b.B))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// SolidImage returns a PNG of the given color and size
func SolidImage(c color.RGBA, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
