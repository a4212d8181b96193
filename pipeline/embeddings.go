package pipeline

import (
	"context"
	"sync"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"go.uber.org/zap"
)

// EmbedOneFunc produces the embedding vector for a single text.
type EmbedOneFunc func(ctx context.Context, text string) ([]float32, error)

const embedConcurrency = 5

// Embedder generates clause embeddings with bounded concurrency. Individual
// failures are tolerated; the document can still complete without every
// vector.
type Embedder struct {
	embed     EmbedOneFunc
	dimension int
	logger    *zap.Logger
}

func NewEmbedder(embed EmbedOneFunc, dimension int, logger *zap.Logger) *Embedder {
	return &Embedder{embed: embed, dimension: dimension, logger: logger}
}

// EmbedClauses fills the Embedding of each clause in place and returns how
// many vectors were produced. An error is returned only when no clause could
// be embedded at all.
func (e *Embedder) EmbedClauses(ctx context.Context, clauses []types.Clause) (int, error) {
	if len(clauses) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, embedConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	generated := 0

	for i := range clauses {
		wg.Add(1)
		sem <- struct{}{}
		go func(clause *types.Clause) {
			defer wg.Done()
			defer func() { <-sem }()

			text := clause.Summary
			if text == "" {
				text = clause.OriginalText
			}
			vec, err := e.embed(ctx, text)
			if err != nil {
				e.logger.Warn("Failed to embed clause",
					zap.String("clause_id", clause.ID.String()),
					zap.Error(err))
				return
			}
			if e.dimension > 0 && len(vec) != e.dimension {
				e.logger.Warn("Embedding dimension mismatch",
					zap.String("clause_id", clause.ID.String()),
					zap.Int("got", len(vec)),
					zap.Int("want", e.dimension))
				return
			}

			clause.Embedding = vec
			mu.Lock()
			generated++
			mu.Unlock()
		}(&clauses[i])
	}
	wg.Wait()

	if generated == 0 {
		return 0, apperrors.WrapErrorf(apperrors.ErrDependencyFailure,
			"embedding failed for all %d clauses", len(clauses))
	}
	return generated, nil
}
