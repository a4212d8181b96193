package qa

import (
	"math"
	"testing"

	"clauselens/web/types"

	"github.com/google/uuid"
)

func TestTopKOrdering(t *testing.T) {
	query := []float32{1, 0}
	clauses := []types.Clause{
		{Order: 1, Embedding: []float32{0, 1}},       // similarity 0
		{Order: 2, Embedding: []float32{1, 0}},       // similarity 1
		{Order: 3, Embedding: []float32{0.7, 0.7}},   // similarity ~0.707
		{Order: 4, Embedding: []float32{0.95, 0.05}}, // similarity ~0.999
	}

	got := TopK(query, clauses, 5, 0.2, 0)
	if len(got) != 3 {
		t.Fatalf("TopK() = %d results, want 3 (one below min similarity)", len(got))
	}
	wantOrder := []int{2, 4, 3}
	for i, sc := range got {
		if sc.Clause.Order != wantOrder[i] {
			t.Errorf("result %d clause order = %d, want %d", i, sc.Clause.Order, wantOrder[i])
		}
	}
}

func TestTopKLimitsK(t *testing.T) {
	query := []float32{1, 0}
	clauses := make([]types.Clause, 10)
	for i := range clauses {
		clauses[i] = types.Clause{Order: i + 1, Embedding: []float32{1, 0}}
	}

	got := TopK(query, clauses, 3, 0.2, 0)
	if len(got) != 3 {
		t.Fatalf("TopK() = %d results, want 3", len(got))
	}
	// Equal similarities break ties toward the earlier clause.
	for i, sc := range got {
		if sc.Clause.Order != i+1 {
			t.Errorf("result %d clause order = %d, want %d", i, sc.Clause.Order, i+1)
		}
	}
}

func TestTopKPerDocumentCeiling(t *testing.T) {
	docA := uuid.New()
	docB := uuid.New()
	query := []float32{1, 0}
	clauses := []types.Clause{
		{DocID: docA, Order: 1, Embedding: []float32{1, 0}},
		{DocID: docA, Order: 2, Embedding: []float32{1, 0}},
		{DocID: docA, Order: 3, Embedding: []float32{1, 0}},
		{DocID: docB, Order: 1, Embedding: []float32{0.9, 0.1}},
	}

	got := TopK(query, clauses, 5, 0.2, 2)
	if len(got) != 3 {
		t.Fatalf("TopK() = %d results, want 3", len(got))
	}
	fromA := 0
	for _, sc := range got {
		if sc.Clause.DocID == docA {
			fromA++
		}
	}
	if fromA != 2 {
		t.Errorf("clauses from first document = %d, want 2 (ceiling)", fromA)
	}
}

func TestTopKSkipsUnembeddedClauses(t *testing.T) {
	query := []float32{1, 0}
	clauses := []types.Clause{
		{Order: 1},
		{Order: 2, Embedding: []float32{1, 0}},
	}

	got := TopK(query, clauses, 5, 0.0, 0)
	if len(got) != 1 || got[0].Clause.Order != 2 {
		t.Errorf("TopK() = %+v, want only the embedded clause", got)
	}
}

func TestTopKEmptyInputs(t *testing.T) {
	if got := TopK(nil, []types.Clause{{Embedding: []float32{1}}}, 5, 0, 0); got != nil {
		t.Errorf("TopK(nil query) = %v, want nil", got)
	}
	if got := TopK([]float32{1}, nil, 5, 0, 0); got != nil {
		t.Errorf("TopK(no clauses) = %v, want nil", got)
	}
	if got := TopK([]float32{1}, []types.Clause{{Embedding: []float32{1}}}, 0, 0, 0); got != nil {
		t.Errorf("TopK(k=0) = %v, want nil", got)
	}
}

func TestRetrievalCosineSimilarity(t *testing.T) {
	got := cosineSimilarity([]float32{3, 4}, []float32{3, 4})
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("cosineSimilarity(identical) = %v, want 1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("cosineSimilarity(orthogonal) = %v, want 0", got)
	}
}
