// Package facematch identifies faces against the registered embedding set.
// The search is an exact linear scan over a snapshot that is re-read on every
// call, so newly registered employees are visible immediately.
package facematch

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Mode selects the acceptance threshold of a search
type Mode int

const (
	// Identify accepts a match for recognition (score > 0.6 by default)
	Identify Mode = iota
	// DuplicateReject flags an already enrolled face (score > 0.7 by default)
	DuplicateReject
)

func (m Mode) String() string {
	switch m {
	case Identify:
		return "identify"
	case DuplicateReject:
		return "duplicate-reject"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Thresholds holds the exclusive similarity bounds of both modes
type Thresholds struct {
	Identify  float64
	Duplicate float64
}

// DefaultThresholds returns the standard bounds (0.6 identify, 0.7 duplicate).
func DefaultThresholds() Thresholds {
	return Thresholds{
		Identify:  constants.IdentifyThreshold,
		Duplicate: constants.DuplicateThreshold,
	}
}

// For returns the threshold of a mode.
func (t Thresholds) For(mode Mode) float64 {
	if mode == DuplicateReject {
		return t.Duplicate
	}
	return t.Identify
}

// Accepts reports whether score strictly exceeds the mode's threshold.
func (t Thresholds) Accepts(mode Mode, score float64) bool {
	return score > t.For(mode)
}

// Match is the best scoring identity of a search
type Match struct {
	EmployeeID string
	Name       string
	Score      float64
}

// Best returns the highest scoring snapshot entry regardless of thresholds.
// Ties resolve to the first entry in snapshot order. Entries whose dimension
// differs from the query are skipped. ok is false if nothing was comparable.
func Best(query []float32, snapshot []database.IdentityEmbedding) (Match, bool) {
	var best Match
	found := false

	for i := range snapshot {
		entry := &snapshot[i]
		if len(entry.Embedding) != len(query) || len(query) == 0 {
			continue
		}
		score := database.CosineSimilarity(query, entry.Embedding)
		if !found || score > best.Score {
			best = Match{EmployeeID: entry.EmployeeID, Name: entry.Name, Score: score}
			found = true
		}
	}

	return best, found
}

// SearchWith runs a search with explicit thresholds. The best candidate is
// returned even when it is rejected so callers can log the score.
func SearchWith(query []float32, snapshot []database.IdentityEmbedding, mode Mode, t Thresholds) (Match, bool) {
	best, found := Best(query, snapshot)
	if !found {
		return Match{}, false
	}
	return best, t.Accepts(mode, best.Score)
}

// Search runs a search with the default thresholds.
func Search(query []float32, snapshot []database.IdentityEmbedding, mode Mode) (Match, bool) {
	return SearchWith(query, snapshot, mode, DefaultThresholds())
}

// Index searches the live embedding set of a store.
// It holds no copy of the embeddings: every call re-reads the full snapshot.
type Index struct {
	source     database.EmbeddingSource
	thresholds Thresholds
}

// NewIndex creates an index over source. Zero thresholds fall back to defaults.
func NewIndex(source database.EmbeddingSource, thresholds Thresholds) *Index {
	defaults := DefaultThresholds()
	if thresholds.Identify <= 0 {
		thresholds.Identify = defaults.Identify
	}
	if thresholds.Duplicate <= 0 {
		thresholds.Duplicate = defaults.Duplicate
	}
	return &Index{source: source, thresholds: thresholds}
}

// Thresholds returns the bounds used by the index.
func (ix *Index) Thresholds() Thresholds {
	return ix.thresholds
}

// Search reads the current snapshot and searches it.
func (ix *Index) Search(ctx context.Context, query []float32, mode Mode) (Match, bool, error) {
	return ix.SearchExcluding(ctx, query, mode, "")
}

// SearchExcluding is Search with one employee left out of the snapshot.
// Used when an employee replaces their own photo.
func (ix *Index) SearchExcluding(ctx context.Context, query []float32, mode Mode, excludeID string) (Match, bool, error) {
	snapshot, err := ix.source.GetAllEmbeddings(ctx)
	if err != nil {
		return Match{}, false, fmt.Errorf("loading embeddings: %w", err)
	}

	if excludeID != "" {
		filtered := snapshot[:0:0]
		for _, e := range snapshot {
			if e.EmployeeID != excludeID {
				filtered = append(filtered, e)
			}
		}
		snapshot = filtered
	}

	match, ok := SearchWith(query, snapshot, mode, ix.thresholds)
	return match, ok, nil
}

// PairSimilarity is the similarity between two registered employees
type PairSimilarity struct {
	A     Match // Score unused
	B     Match // Score unused
	Score float64
	// Duplicate is true if the pair would be rejected as the same face
	Duplicate bool
}

// Pairwise compares every pair of registered employees. Used to audit the
// enrolled set for faces that are too close to tell apart.
func (ix *Index) Pairwise(ctx context.Context) ([]PairSimilarity, error) {
	snapshot, err := ix.source.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}

	var pairs []PairSimilarity
	for i := range snapshot {
		for j := i + 1; j < len(snapshot); j++ {
			score := database.CosineSimilarity(snapshot[i].Embedding, snapshot[j].Embedding)
			pairs = append(pairs, PairSimilarity{
				A:         Match{EmployeeID: snapshot[i].EmployeeID, Name: snapshot[i].Name},
				B:         Match{EmployeeID: snapshot[j].EmployeeID, Name: snapshot[j].Name},
				Score:     score,
				Duplicate: ix.thresholds.Accepts(DuplicateReject, score),
			})
		}
	}
	return pairs, nil
}
