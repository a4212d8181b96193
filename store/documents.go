package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateDocument inserts the initial processing record. The orchestrator
// creates the record before enqueuing ingestion so status queries never race
// against a missing row.
func (s *PostgresStore) CreateDocument(ctx context.Context, doc types.Document) error {
	query := `
        INSERT INTO documents (id, filename, byte_size, page_count, language, masked,
            status, stages_completed, session_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
    `
	var sessionID sql.NullString
	if doc.SessionID != nil {
		sessionID = sql.NullString{String: *doc.SessionID, Valid: true}
	}
	now := time.Now()
	_, err := s.DB.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.ByteSize, doc.PageCount, doc.Language, doc.Masked,
		types.StatusProcessing, pq.Array([]string{}), sessionID, now)
	if err != nil {
		return apperrors.WrapError(err, "create document")
	}
	return nil
}

// GetDocument fetches one document record by id.
func (s *PostgresStore) GetDocument(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	query := `
        SELECT id, filename, byte_size, page_count, language, masked, status,
            failed_at_stage, stages_completed, clause_count, pii_summary,
            baseline_readability, risk_profile, processing_statistics, session_id,
            created_at, updated_at, processed_at
        FROM documents WHERE id = $1
    `
	var doc types.Document
	var stages []string
	var piiSummary, baseline, stats []byte
	var riskProfile []byte
	var sessionID sql.NullString
	var processedAt sql.NullTime

	err := s.DB.QueryRowContext(ctx, query, docID).Scan(
		&doc.ID, &doc.Filename, &doc.ByteSize, &doc.PageCount, &doc.Language,
		&doc.Masked, &doc.Status, &doc.FailedAtStage, pq.Array(&stages),
		&doc.ClauseCount, &piiSummary, &baseline, &riskProfile, &stats,
		&sessionID, &doc.CreatedAt, &doc.UpdatedAt, &processedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "document %s", docID)
		}
		return nil, apperrors.WrapError(err, "get document")
	}

	doc.StagesCompleted = stages
	if len(piiSummary) > 0 {
		json.Unmarshal(piiSummary, &doc.PIISummary)
	}
	if len(baseline) > 0 {
		json.Unmarshal(baseline, &doc.BaselineReadability)
	}
	if len(riskProfile) > 0 {
		var rp types.RiskProfile
		if json.Unmarshal(riskProfile, &rp) == nil && rp.OverallLevel != "" {
			doc.RiskProfile = &rp
		}
	}
	if len(stats) > 0 {
		json.Unmarshal(stats, &doc.Stats)
	}
	if sessionID.Valid {
		doc.SessionID = &sessionID.String
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}
	return &doc, nil
}

// UpdateDocumentStatus transitions a document between lifecycle states using a
// compare-then-update so concurrent transitions cannot clobber each other.
// Updating a missing document returns ErrNotFound; a row that exists but is
// not in fromStatus returns ErrConflict.
func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, docID uuid.UUID, fromStatus, toStatus, failedAtStage string) error {
	query := `
        UPDATE documents
        SET status = $1, failed_at_stage = $2, updated_at = NOW(),
            processed_at = CASE WHEN $1 IN ('completed', 'failed') THEN NOW() ELSE processed_at END
        WHERE id = $3 AND status = $4
    `
	res, err := s.DB.ExecContext(ctx, query, toStatus, failedAtStage, docID, fromStatus)
	if err != nil {
		return apperrors.WrapError(err, "update document status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.WrapError(err, "update document status")
	}
	if affected == 0 {
		var exists bool
		if err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, docID).Scan(&exists); err != nil {
			return apperrors.WrapError(err, "check document existence")
		}
		if !exists {
			return apperrors.WrapErrorf(apperrors.ErrNotFound, "document %s", docID)
		}
		return apperrors.WrapErrorf(apperrors.ErrConflict, "document %s not in status %q", docID, fromStatus)
	}
	return nil
}

// AppendStageCompleted records a finished pipeline stage on the document.
func (s *PostgresStore) AppendStageCompleted(ctx context.Context, docID uuid.UUID, stage string) error {
	query := `
        UPDATE documents
        SET stages_completed = array_append(stages_completed, $1), updated_at = NOW()
        WHERE id = $2
    `
	res, err := s.DB.ExecContext(ctx, query, stage, docID)
	if err != nil {
		return apperrors.WrapError(err, "append completed stage")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "document %s", docID)
	}
	return nil
}

// UpdateDocumentMetadata persists extraction- and analysis-derived attributes.
func (s *PostgresStore) UpdateDocumentMetadata(ctx context.Context, docID uuid.UUID, pageCount int, language string, masked bool, piiSummary map[string]int, baseline types.ReadabilityMetrics) error {
	piiJSON, err := json.Marshal(piiSummary)
	if err != nil {
		return apperrors.WrapError(err, "marshal pii summary")
	}
	baselineJSON, err := json.Marshal(baseline)
	if err != nil {
		return apperrors.WrapError(err, "marshal baseline readability")
	}
	query := `
        UPDATE documents
        SET page_count = $1, language = $2, masked = $3, pii_summary = $4,
            baseline_readability = $5, updated_at = NOW()
        WHERE id = $6
    `
	_, err = s.DB.ExecContext(ctx, query, pageCount, language, masked, piiJSON, baselineJSON, docID)
	return apperrors.WrapError(err, "update document metadata")
}

// FinalizeDocument writes the aggregated statistics and risk profile produced
// at the end of ingestion.
func (s *PostgresStore) FinalizeDocument(ctx context.Context, docID uuid.UUID, clauseCount int, stats types.ProcessingStats, profile *types.RiskProfile) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return apperrors.WrapError(err, "marshal processing statistics")
	}
	var profileJSON []byte
	if profile != nil {
		profileJSON, err = json.Marshal(profile)
		if err != nil {
			return apperrors.WrapError(err, "marshal risk profile")
		}
	}
	query := `
        UPDATE documents
        SET clause_count = $1, processing_statistics = $2, risk_profile = $3, updated_at = NOW()
        WHERE id = $4
    `
	_, err = s.DB.ExecContext(ctx, query, clauseCount, statsJSON, profileJSON, docID)
	return apperrors.WrapError(err, "finalize document")
}

// GetDocumentsMetadata returns lightweight records for a set of documents,
// preserving input order and skipping unknown ids.
func (s *PostgresStore) GetDocumentsMetadata(ctx context.Context, docIDs []uuid.UUID) ([]types.Document, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	query := `
        SELECT id, filename, page_count, language, status, clause_count, created_at
        FROM documents WHERE id = ANY($1)
    `
	rows, err := s.DB.QueryContext(ctx, query, pq.Array(docIDs))
	if err != nil {
		return nil, apperrors.WrapError(err, "get documents metadata")
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]types.Document, len(docIDs))
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.PageCount, &doc.Language,
			&doc.Status, &doc.ClauseCount, &doc.CreatedAt); err != nil {
			return nil, apperrors.WrapError(err, "scan document metadata")
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapError(err, "iterate document metadata")
	}

	docs := make([]types.Document, 0, len(byID))
	for _, id := range docIDs {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// DeleteDocument removes a document and, via cascade, its clauses and history.
func (s *PostgresStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return apperrors.WrapError(err, "delete document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "document %s", docID)
	}
	return nil
}
