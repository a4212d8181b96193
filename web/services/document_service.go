package services

import (
	"context"

	apperrors "clauselens/errors"
	"clauselens/pipeline"
	"clauselens/qa"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentStore is the read/delete surface for document queries.
type DocumentStore interface {
	GetDocument(ctx context.Context, docID uuid.UUID) (*types.Document, error)
	GetClausesByDocument(ctx context.Context, docID uuid.UUID) ([]types.Clause, error)
	GetClause(ctx context.Context, docID, clauseID uuid.UUID) (*types.Clause, error)
	DeleteDocument(ctx context.Context, docID uuid.UUID) error
	GetQAHistory(ctx context.Context, docID uuid.UUID, limit int) ([]types.QARecord, error)
	CreateNegotiation(ctx context.Context, negotiation types.Negotiation) error
	GetNegotiationsByDocument(ctx context.Context, docID uuid.UUID) ([]types.Negotiation, error)
}

// StatusResponse is the document record plus in-flight progress for
// processing documents.
type StatusResponse struct {
	Document *types.Document    `json:"document"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
}

// DocumentService serves document status, clause, and history queries.
type DocumentService struct {
	store        DocumentStore
	orchestrator *pipeline.Orchestrator
	cache        *qa.ClauseCache
	logger       *zap.Logger
}

func NewDocumentService(store DocumentStore, orchestrator *pipeline.Orchestrator, cache *qa.ClauseCache, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		store:        store,
		orchestrator: orchestrator,
		cache:        cache,
		logger:       logger,
	}
}

// Status returns the document record, attaching live stage progress while
// ingestion is running.
func (s *DocumentService) Status(ctx context.Context, docID uuid.UUID) (*StatusResponse, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{Document: doc}
	if doc.Status == types.StatusProcessing {
		if progress, ok := s.orchestrator.GetProgress(docID); ok {
			resp.Progress = &progress
		}
	}
	return resp, nil
}

// Clauses returns a completed document's clauses in order. A document that is
// known but not yet completed yields an empty list rather than an error.
func (s *DocumentService) Clauses(ctx context.Context, docID uuid.UUID) ([]types.Clause, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != types.StatusCompleted {
		return []types.Clause{}, nil
	}

	if cached, ok := s.cache.Get(docID); ok {
		return cached, nil
	}
	clauses, err := s.store.GetClausesByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.cache.Put(docID, clauses)
	return clauses, nil
}

// Clause fetches one clause, verifying document ownership.
func (s *DocumentService) Clause(ctx context.Context, docID, clauseID uuid.UUID) (*types.Clause, error) {
	return s.store.GetClause(ctx, docID, clauseID)
}

// Delete removes the document and drops its cached clauses.
func (s *DocumentService) Delete(ctx context.Context, docID uuid.UUID) error {
	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.cache.Invalidate(docID)
	s.logger.Info("Document deleted", zap.String("doc_id", docID.String()))
	return nil
}

// QAHistory returns the document's question history, newest first.
func (s *DocumentService) QAHistory(ctx context.Context, docID uuid.UUID, limit int) ([]types.QARecord, error) {
	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	return s.store.GetQAHistory(ctx, docID, limit)
}

// SaveNegotiation persists a negotiation tip for one clause after verifying
// the clause belongs to the document.
func (s *DocumentService) SaveNegotiation(ctx context.Context, docID, clauseID uuid.UUID, tip, status string) (*types.Negotiation, error) {
	if tip == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "negotiation tip is empty")
	}
	if _, err := s.store.GetClause(ctx, docID, clauseID); err != nil {
		return nil, err
	}

	negotiation := types.Negotiation{
		ID:       uuid.New(),
		DocID:    docID,
		ClauseID: clauseID,
		Tip:      tip,
		Status:   status,
	}
	if err := s.store.CreateNegotiation(ctx, negotiation); err != nil {
		return nil, err
	}
	return &negotiation, nil
}

// Negotiations lists a document's saved negotiation tips.
func (s *DocumentService) Negotiations(ctx context.Context, docID uuid.UUID) ([]types.Negotiation, error) {
	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	return s.store.GetNegotiationsByDocument(ctx, docID)
}
