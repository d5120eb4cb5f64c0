package facematch

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type fakeSource struct {
	snapshot []database.IdentityEmbedding
	err      error
	calls    int
}

func (f *fakeSource) GetAllEmbeddings(ctx context.Context) ([]database.IdentityEmbedding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func TestThresholds_Accepts(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		mode     Mode
		score    float64
		expected bool
	}{
		{"identify at threshold", Identify, 0.6, false},
		{"identify just above", Identify, 0.6000001, true},
		{"identify below", Identify, 0.59, false},
		{"duplicate at threshold", DuplicateReject, 0.7, false},
		{"duplicate just above", DuplicateReject, 0.7000001, true},
		{"duplicate between thresholds", DuplicateReject, 0.65, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.Accepts(tt.mode, tt.score); got != tt.expected {
				t.Errorf("Accepts(%v, %v) = %v, want %v", tt.mode, tt.score, got, tt.expected)
			}
		})
	}
}

func TestSearch_EmptySnapshot(t *testing.T) {
	_, ok := Search([]float32{1, 0}, nil, Identify)
	if ok {
		t.Error("expected no match on empty snapshot")
	}
}

func TestSearch_ScoreAtThresholdNotIdentified(t *testing.T) {
	// cos((1,0),(3,4)) = 0.6
	snapshot := []database.IdentityEmbedding{
		{EmployeeID: "E1", Name: "Alice", Embedding: []float32{3, 4}},
	}
	match, ok := Search([]float32{1, 0}, snapshot, Identify)
	if ok {
		t.Errorf("expected rejection at score %v", match.Score)
	}
	if match.EmployeeID != "E1" {
		t.Errorf("expected best candidate E1 to be reported, got %q", match.EmployeeID)
	}
}

func TestSearch_TieResolvesToFirst(t *testing.T) {
	snapshot := []database.IdentityEmbedding{
		{EmployeeID: "E1", Name: "Alice", Embedding: []float32{1, 0}},
		{EmployeeID: "E2", Name: "Bob", Embedding: []float32{2, 0}},
	}
	match, ok := Search([]float32{1, 0}, snapshot, Identify)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.EmployeeID != "E1" {
		t.Errorf("expected first entry E1 on tie, got %q", match.EmployeeID)
	}
}

func TestSearch_PicksHighest(t *testing.T) {
	snapshot := []database.IdentityEmbedding{
		{EmployeeID: "E1", Name: "Alice", Embedding: []float32{0, 1}},
		{EmployeeID: "E2", Name: "Bob", Embedding: []float32{1, 0.1}},
		{EmployeeID: "E3", Name: "Carol", Embedding: []float32{1, 0.5}},
	}
	match, ok := Search([]float32{1, 0}, snapshot, Identify)
	if !ok || match.EmployeeID != "E2" {
		t.Errorf("expected E2, got %q (ok=%v)", match.EmployeeID, ok)
	}
}

func TestBest_SkipsDimensionMismatch(t *testing.T) {
	snapshot := []database.IdentityEmbedding{
		{EmployeeID: "E1", Embedding: []float32{1, 0, 0}},
		{EmployeeID: "E2", Embedding: []float32{0.9, 0.1}},
	}
	match, ok := Best([]float32{1, 0}, snapshot)
	if !ok || match.EmployeeID != "E2" {
		t.Errorf("expected E2, got %q (ok=%v)", match.EmployeeID, ok)
	}

	_, ok = Best([]float32{1, 0}, snapshot[:1])
	if ok {
		t.Error("expected no comparable entry")
	}
}

func TestIndex_ReReadsSnapshot(t *testing.T) {
	src := &fakeSource{}
	ix := NewIndex(src, Thresholds{})

	if _, ok, err := ix.Search(context.Background(), []float32{1, 0}, Identify); err != nil || ok {
		t.Fatalf("expected no match on empty store, ok=%v err=%v", ok, err)
	}

	src.snapshot = []database.IdentityEmbedding{
		{EmployeeID: "E1", Name: "Alice", Embedding: []float32{1, 0}},
	}

	match, ok, err := ix.Search(context.Background(), []float32{1, 0}, Identify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || match.Name != "Alice" {
		t.Errorf("expected newly added Alice, got %+v (ok=%v)", match, ok)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 snapshot reads, got %d", src.calls)
	}
}

func TestIndex_DefaultThresholds(t *testing.T) {
	ix := NewIndex(&fakeSource{}, Thresholds{})
	if ix.Thresholds() != DefaultThresholds() {
		t.Errorf("expected default thresholds, got %+v", ix.Thresholds())
	}

	custom := NewIndex(&fakeSource{}, Thresholds{Identify: 0.5, Duplicate: 0.8})
	if custom.Thresholds().Identify != 0.5 || custom.Thresholds().Duplicate != 0.8 {
		t.Errorf("expected custom thresholds, got %+v", custom.Thresholds())
	}
}

func TestIndex_SearchError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	ix := NewIndex(src, Thresholds{})

	if _, _, err := ix.Search(context.Background(), []float32{1, 0}, Identify); err == nil {
		t.Error("expected error from source")
	}
}

func TestIndex_SearchExcluding(t *testing.T) {
	src := &fakeSource{snapshot: []database.IdentityEmbedding{
		{EmployeeID: "E1", Name: "Alice", Embedding: []float32{1, 0}},
		{EmployeeID: "E2", Name: "Bob", Embedding: []float32{0, 1}},
	}}
	ix := NewIndex(src, Thresholds{})

	_, ok, err := ix.SearchExcluding(context.Background(), []float32{1, 0}, DuplicateReject, "E1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no duplicate once self is excluded")
	}
	if len(src.snapshot) != 2 {
		t.Error("expected source snapshot to be left untouched")
	}
}

func TestIndex_Pairwise(t *testing.T) {
	src := &fakeSource{snapshot: []database.IdentityEmbedding{
		{EmployeeID: "E1", Name: "Alice", Embedding: []float32{1, 0}},
		{EmployeeID: "E2", Name: "Bob", Embedding: []float32{1, 0.01}},
		{EmployeeID: "E3", Name: "Carol", Embedding: []float32{0, 1}},
	}}
	ix := NewIndex(src, Thresholds{})

	pairs, err := ix.Pairwise(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if pairs[0].A.EmployeeID != "E1" || pairs[0].B.EmployeeID != "E2" || !pairs[0].Duplicate {
		t.Errorf("expected E1/E2 to be flagged duplicate, got %+v", pairs[0])
	}
	if pairs[1].Duplicate || pairs[2].Duplicate {
		t.Error("expected orthogonal pairs not to be duplicates")
	}
}

func TestMode_String(t *testing.T) {
	if Identify.String() != "identify" || DuplicateReject.String() != "duplicate-reject" {
		t.Error("unexpected mode names")
	}
}
