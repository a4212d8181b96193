package qa

import (
	"math"
	"sort"

	"clauselens/web/types"
)

// ScoredClause pairs a clause with its similarity to the question.
type ScoredClause struct {
	Clause     types.Clause
	Similarity float64
}

// TopK ranks clauses by cosine similarity to the query vector and keeps the
// best k at or above minSimilarity. perDocCeiling, when positive, caps how
// many clauses any single document may contribute. Ties break toward the
// earlier clause.
func TopK(query []float32, clauses []types.Clause, k int, minSimilarity float64, perDocCeiling int) []ScoredClause {
	if len(query) == 0 || len(clauses) == 0 || k <= 0 {
		return nil
	}

	scored := make([]ScoredClause, 0, len(clauses))
	for _, clause := range clauses {
		if len(clause.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(query, clause.Embedding)
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, ScoredClause{Clause: clause, Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Clause.Order < scored[j].Clause.Order
	})

	perDoc := make(map[string]int)
	result := make([]ScoredClause, 0, k)
	for _, sc := range scored {
		if perDocCeiling > 0 {
			docKey := sc.Clause.DocID.String()
			if perDoc[docKey] >= perDocCeiling {
				continue
			}
			perDoc[docKey]++
		}
		result = append(result, sc)
		if len(result) == k {
			break
		}
	}
	return result
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// clamped to [0, 1]. Zero-norm inputs score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
