package database

import "math"

// Normalize returns a unit-length copy of v.
// Returns nil for empty or zero vectors.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Norm computes the L2 norm of v in float64 precision.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity computes the cosine similarity between two embedding vectors.
// Both vectors are renormalized independently before the dot product, so stored
// embeddings that drifted from unit length still compare correctly.
// Returns a value between -1 and 1, or 0 for invalid input.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	normA, normB := Norm(a), Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += (float64(a[i]) / normA) * (float64(b[i]) / normB)
	}

	// Clamp to [-1, 1] to handle floating point errors
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	return dot
}
