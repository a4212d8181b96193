package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"github.com/google/uuid"
)

// CreateQARecord persists one question/answer pair.
func (s *PostgresStore) CreateQARecord(ctx context.Context, record types.QARecord) error {
	sourcesJSON, err := json.Marshal(record.Sources)
	if err != nil {
		return apperrors.WrapError(err, "marshal qa sources")
	}
	var sessionID sql.NullString
	if record.SessionID != nil {
		sessionID = sql.NullString{String: *record.SessionID, Valid: true}
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
        INSERT INTO qa_history (id, doc_id, question, answer, sources, confidence, session_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err = s.DB.ExecContext(ctx, query, record.ID, record.DocID, record.Question,
		record.Answer, sourcesJSON, record.Confidence, sessionID, createdAt)
	return apperrors.WrapError(err, "create qa record")
}

// GetQAHistory returns a document's question history, newest first.
func (s *PostgresStore) GetQAHistory(ctx context.Context, docID uuid.UUID, limit int) ([]types.QARecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, doc_id, question, answer, sources, confidence, session_id, created_at
        FROM qa_history WHERE doc_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := s.DB.QueryContext(ctx, query, docID, limit)
	if err != nil {
		return nil, apperrors.WrapError(err, "query qa history")
	}
	defer rows.Close()

	var records []types.QARecord
	for rows.Next() {
		var record types.QARecord
		var sourcesJSON []byte
		var sessionID sql.NullString
		if err := rows.Scan(&record.ID, &record.DocID, &record.Question,
			&record.Answer, &sourcesJSON, &record.Confidence, &sessionID,
			&record.CreatedAt); err != nil {
			return nil, apperrors.WrapError(err, "scan qa record")
		}
		if len(sourcesJSON) > 0 {
			json.Unmarshal(sourcesJSON, &record.Sources)
		}
		if sessionID.Valid {
			record.SessionID = &sessionID.String
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
