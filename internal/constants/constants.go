// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// IdentifyThreshold is the minimum cosine similarity (exclusive) to accept
	// a face as a specific employee during recognition
	IdentifyThreshold = 0.6

	// DuplicateThreshold is the cosine similarity (exclusive) above which a new
	// registration is rejected as an already enrolled face
	DuplicateThreshold = 0.7

	// MinDetectionScore is the minimum detector confidence for the presence check
	MinDetectionScore = 0.6

	// FaceEmbeddingDim is the embedding size produced by buffalo_l (ResNet100)
	FaceEmbeddingDim = 512
)

// Neighbor graph constants for the similarity audit
const (
	// NeighborGraphM is the maximum number of neighbors per graph node
	NeighborGraphM = 16

	// NeighborGraphEfSearch is the search candidate pool size
	NeighborGraphEfSearch = 100

	// NeighborSearchMultiplier requests extra candidates to make up for the
	// entry itself and for entries that cannot be compared
	NeighborSearchMultiplier = 3
)

// Geometric variants used for robust embeddings and recognition retries
var (
	// VariantAngles are rotations in degrees about the image center
	VariantAngles = []float64{-10, 10}

	// VariantScales are zoom factors re-centered to the original dimensions
	VariantScales = []float64{0.95, 1.05}
)

// Attendance constants
const (
	// DefaultOnTimeLimit is used when office settings are missing or unparseable
	DefaultOnTimeLimit = "09:30:00"

	// TimeOfDayLayout is the storage format of office setting times
	TimeOfDayLayout = "15:04:05"

	// DateLayout is the storage format of attendance dates
	DateLayout = "2006-01-02"

	// RecentEntriesLimit is the number of check-ins listed on the landing stats
	RecentEntriesLimit = 5
)

// File upload constants
const (
	// MaxUploadSize is the maximum image upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// VariantJPEGQuality is the encoder quality for generated variants
	VariantJPEGQuality = 95
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel workers for batch CLI jobs
	DefaultConcurrency = 4

	// NotificationTimeoutSeconds bounds a single notification send
	NotificationTimeoutSeconds = 30
)
