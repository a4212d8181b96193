package store

import (
	"context"
	"sort"
	"time"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"github.com/google/uuid"
)

// CreateNegotiation stores a negotiation tip for one clause.
func (s *PostgresStore) CreateNegotiation(ctx context.Context, negotiation types.Negotiation) error {
	createdAt := negotiation.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
        INSERT INTO negotiations (id, doc_id, clause_id, tip, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := s.DB.ExecContext(ctx, query, negotiation.ID, negotiation.DocID,
		negotiation.ClauseID, negotiation.Tip, negotiation.Status, createdAt)
	return apperrors.WrapError(err, "create negotiation")
}

// GetNegotiationsByDocument lists a document's negotiation records. Sorted
// client-side by created_at to avoid composite indices on the store.
func (s *PostgresStore) GetNegotiationsByDocument(ctx context.Context, docID uuid.UUID) ([]types.Negotiation, error) {
	query := `
        SELECT id, doc_id, clause_id, tip, status, created_at
        FROM negotiations WHERE doc_id = $1
    `
	rows, err := s.DB.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, apperrors.WrapError(err, "query negotiations")
	}
	defer rows.Close()

	var negotiations []types.Negotiation
	for rows.Next() {
		var negotiation types.Negotiation
		if err := rows.Scan(&negotiation.ID, &negotiation.DocID, &negotiation.ClauseID,
			&negotiation.Tip, &negotiation.Status, &negotiation.CreatedAt); err != nil {
			return nil, apperrors.WrapError(err, "scan negotiation")
		}
		negotiations = append(negotiations, negotiation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(negotiations, func(i, j int) bool {
		return negotiations[i].CreatedAt.Before(negotiations[j].CreatedAt)
	})
	return negotiations, nil
}
