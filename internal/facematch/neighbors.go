package facematch

import (
	"context"
	"fmt"
	"sort"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// NeighborList holds the closest registered faces of one employee
type NeighborList struct {
	Employee  Match // Score unused
	Neighbors []Match
}

// NearestNeighbors returns, for every employee in snapshot, the k most similar
// other employees. Candidates come from an HNSW graph built over the snapshot;
// scores are exact cosine similarities. Entries with a dimension different from
// the first entry, or a zero vector, are left out.
func NearestNeighbors(snapshot []database.IdentityEmbedding, k int) []NeighborList {
	if k <= 0 || len(snapshot) == 0 {
		return nil
	}

	dim := len(snapshot[0].Embedding)
	byID := make(map[string]*database.IdentityEmbedding, len(snapshot))
	g := hnsw.NewGraph[string]()
	g.M = constants.NeighborGraphM
	g.Ml = 1.0 / float64(constants.NeighborGraphM)
	g.EfSearch = constants.NeighborGraphEfSearch
	g.Distance = hnsw.CosineDistance

	var entries []*database.IdentityEmbedding
	for i := range snapshot {
		e := &snapshot[i]
		if dim == 0 || len(e.Embedding) != dim || database.Norm(e.Embedding) == 0 {
			continue
		}
		if _, dup := byID[e.EmployeeID]; dup {
			continue
		}
		g.Add(hnsw.MakeNode(e.EmployeeID, e.Embedding))
		byID[e.EmployeeID] = e
		entries = append(entries, e)
	}

	searchK := (k + 1) * constants.NeighborSearchMultiplier
	result := make([]NeighborList, 0, len(entries))
	for _, e := range entries {
		list := NeighborList{Employee: Match{EmployeeID: e.EmployeeID, Name: e.Name}}
		for _, n := range g.Search(e.Embedding, searchK) {
			if n.Key == e.EmployeeID {
				continue
			}
			other := byID[n.Key]
			list.Neighbors = append(list.Neighbors, Match{
				EmployeeID: other.EmployeeID,
				Name:       other.Name,
				Score:      database.CosineSimilarity(e.Embedding, other.Embedding),
			})
		}

		sort.SliceStable(list.Neighbors, func(i, j int) bool {
			return list.Neighbors[i].Score > list.Neighbors[j].Score
		})
		if len(list.Neighbors) > k {
			list.Neighbors = list.Neighbors[:k]
		}
		result = append(result, list)
	}
	return result
}

// Neighbors reads the current snapshot and returns the k nearest registered
// faces of every employee.
func (ix *Index) Neighbors(ctx context.Context, k int) ([]NeighborList, error) {
	snapshot, err := ix.source.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	return NearestNeighbors(snapshot, k), nil
}
