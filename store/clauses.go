package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// CreateClauses persists a document's clause set in chunks of at most
// MaxBatchWrites per transaction. Writes are keyed by clause id, so re-running
// the stage over identical input replaces rows with identical content.
func (s *PostgresStore) CreateClauses(ctx context.Context, docID uuid.UUID, clauses []types.Clause) error {
	for start := 0; start < len(clauses); start += MaxBatchWrites {
		end := start + MaxBatchWrites
		if end > len(clauses) {
			end = len(clauses)
		}
		if err := s.writeClauseChunk(ctx, docID, clauses[start:end]); err != nil {
			return apperrors.WrapErrorf(err, "write clause chunk %d-%d", start, end)
		}
	}

	_, err := s.DB.ExecContext(ctx,
		`UPDATE documents SET clause_count = $1, updated_at = NOW() WHERE id = $2`,
		len(clauses), docID)
	return apperrors.WrapError(err, "update clause count")
}

func (s *PostgresStore) writeClauseChunk(ctx context.Context, docID uuid.UUID, clauses []types.Clause) error {
	if len(clauses) > MaxBatchWrites {
		return apperrors.WrapErrorf(apperrors.ErrBatchTooLarge, "%d writes exceed limit %d", len(clauses), MaxBatchWrites)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO clauses (id, doc_id, ord, original_text, summary, category,
            risk_level, risk_score, needs_review, readability, negotiation_tip,
            confidence, embedding, detected_keywords, risk_factors,
            processing_method, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        ON CONFLICT (id) DO UPDATE SET
            original_text = EXCLUDED.original_text,
            summary = EXCLUDED.summary,
            category = EXCLUDED.category,
            risk_level = EXCLUDED.risk_level,
            risk_score = EXCLUDED.risk_score,
            needs_review = EXCLUDED.needs_review,
            readability = EXCLUDED.readability,
            negotiation_tip = EXCLUDED.negotiation_tip,
            confidence = EXCLUDED.confidence,
            detected_keywords = EXCLUDED.detected_keywords,
            risk_factors = EXCLUDED.risk_factors,
            processing_method = EXCLUDED.processing_method
    `
	for _, clause := range clauses {
		readabilityJSON, err := json.Marshal(clause.Readability)
		if err != nil {
			return apperrors.WrapError(err, "marshal readability metrics")
		}
		var tip sql.NullString
		if clause.NegotiationTip != nil {
			tip = sql.NullString{String: *clause.NegotiationTip, Valid: true}
		}
		var embedding interface{}
		if clause.Embedding != nil {
			embedding = pgvector.NewVector(clause.Embedding)
		}
		createdAt := clause.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query,
			clause.ID, docID, clause.Order, clause.OriginalText, clause.Summary,
			clause.Category, clause.RiskLevel, clause.RiskScore, clause.NeedsReview,
			readabilityJSON, tip, clause.Confidence, embedding,
			pq.Array(clause.DetectedKeywords), pq.Array(clause.RiskFactors),
			clause.ProcessingMethod, createdAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateClauseEmbeddings writes generated vectors back onto clauses in chunks
// of at most MaxBatchWrites per transaction. A failing chunk does not stop the
// remaining chunks; the failing clause ids are reported together afterwards.
func (s *PostgresStore) UpdateClauseEmbeddings(ctx context.Context, docID uuid.UUID, embeddings map[uuid.UUID][]float32) error {
	ids := make([]uuid.UUID, 0, len(embeddings))
	for id := range embeddings {
		ids = append(ids, id)
	}

	var failed []string
	for start := 0; start < len(ids); start += MaxBatchWrites {
		end := start + MaxBatchWrites
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		if err := s.writeEmbeddingChunk(ctx, docID, chunk, embeddings); err != nil {
			s.logger.Error("Embedding chunk write failed",
				zap.Error(err), zap.String("doc_id", docID.String()))
			for _, id := range chunk {
				failed = append(failed, id.String())
			}
		}
	}

	if len(failed) > 0 {
		return apperrors.WrapErrorf(apperrors.ErrEmbeddingPersist,
			"clauses [%s]", strings.Join(failed, ", "))
	}
	return nil
}

func (s *PostgresStore) writeEmbeddingChunk(ctx context.Context, docID uuid.UUID, ids []uuid.UUID, embeddings map[uuid.UUID][]float32) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE clauses SET embedding = $1 WHERE id = $2 AND doc_id = $3`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, query, pgvector.NewVector(embeddings[id]), id, docID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetClausesByDocument returns all clauses of a document in order.
func (s *PostgresStore) GetClausesByDocument(ctx context.Context, docID uuid.UUID) ([]types.Clause, error) {
	query := `
        SELECT id, doc_id, ord, original_text, summary, category, risk_level,
            risk_score, needs_review, readability, negotiation_tip, confidence,
            embedding, detected_keywords, risk_factors, processing_method, created_at
        FROM clauses WHERE doc_id = $1 ORDER BY ord ASC
    `
	rows, err := s.DB.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, apperrors.WrapError(err, "query clauses")
	}
	defer rows.Close()

	var clauses []types.Clause
	for rows.Next() {
		clause, err := scanClause(rows)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, rows.Err()
}

// GetClause fetches one clause, verifying document ownership.
func (s *PostgresStore) GetClause(ctx context.Context, docID, clauseID uuid.UUID) (*types.Clause, error) {
	query := `
        SELECT id, doc_id, ord, original_text, summary, category, risk_level,
            risk_score, needs_review, readability, negotiation_tip, confidence,
            embedding, detected_keywords, risk_factors, processing_method, created_at
        FROM clauses WHERE id = $1 AND doc_id = $2
    `
	row := s.DB.QueryRowContext(ctx, query, clauseID, docID)
	clause, err := scanClause(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "clause %s", clauseID)
		}
		return nil, apperrors.WrapError(err, "get clause")
	}
	return &clause, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClause(row rowScanner) (types.Clause, error) {
	var clause types.Clause
	var readabilityJSON []byte
	var tip, rawEmbedding sql.NullString
	var keywords, factors []string

	err := row.Scan(&clause.ID, &clause.DocID, &clause.Order, &clause.OriginalText,
		&clause.Summary, &clause.Category, &clause.RiskLevel, &clause.RiskScore,
		&clause.NeedsReview, &readabilityJSON, &tip, &clause.Confidence,
		&rawEmbedding, pq.Array(&keywords), pq.Array(&factors),
		&clause.ProcessingMethod, &clause.CreatedAt)
	if err != nil {
		return clause, err
	}

	if len(readabilityJSON) > 0 {
		json.Unmarshal(readabilityJSON, &clause.Readability)
	}
	if tip.Valid {
		clause.NegotiationTip = &tip.String
	}
	if rawEmbedding.Valid {
		var embedding pgvector.Vector
		if err := embedding.Scan([]byte(rawEmbedding.String)); err == nil {
			clause.Embedding = embedding.Slice()
		}
	}
	clause.DetectedKeywords = keywords
	clause.RiskFactors = factors
	return clause, nil
}
