package services

import (
	"context"
	"strings"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore is the persistence surface for session management.
type SessionStore interface {
	CreateChatSession(ctx context.Context, session types.ChatSession) error
	GetChatSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error)
	ListChatSessions(ctx context.Context, limit int) ([]types.ChatSession, error)
	UpdateSessionDocuments(ctx context.Context, sessionID uuid.UUID, docIDs []uuid.UUID) error
	GetSessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.Message, error)
	ArchiveChatSession(ctx context.Context, sessionID uuid.UUID) error
	DeleteChatSession(ctx context.Context, sessionID uuid.UUID) error
	GetDocumentsMetadata(ctx context.Context, docIDs []uuid.UUID) ([]types.Document, error)
}

// SessionDetail is a session with its message history and document metadata.
type SessionDetail struct {
	Session   *types.ChatSession `json:"session"`
	Messages  []types.Message    `json:"messages"`
	Documents []types.Document   `json:"documents"`
}

// SessionService manages chat session lifecycle.
type SessionService struct {
	store  SessionStore
	logger *zap.Logger
}

func NewSessionService(store SessionStore, logger *zap.Logger) *SessionService {
	return &SessionService{store: store, logger: logger}
}

// Create starts a new session over an optional document selection. Selected
// documents must exist.
func (s *SessionService) Create(ctx context.Context, title string, docIDs []uuid.UUID) (*types.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}

	if len(docIDs) > 0 {
		known, err := s.store.GetDocumentsMetadata(ctx, docIDs)
		if err != nil {
			return nil, err
		}
		if len(known) != len(docIDs) {
			return nil, apperrors.WrapError(apperrors.ErrNotFound, "one or more selected documents do not exist")
		}
	}

	session := types.ChatSession{
		ID:                uuid.New(),
		Title:             title,
		SelectedDocuments: docIDs,
	}
	if err := s.store.CreateChatSession(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("Chat session created",
		zap.String("session_id", session.ID.String()),
		zap.Int("documents", len(docIDs)))
	return &session, nil
}

// Get returns the session with its message log and document metadata.
func (s *SessionService) Get(ctx context.Context, sessionID uuid.UUID) (*SessionDetail, error) {
	session, err := s.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.GetSessionMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	var documents []types.Document
	if len(session.SelectedDocuments) > 0 {
		documents, err = s.store.GetDocumentsMetadata(ctx, session.SelectedDocuments)
		if err != nil {
			return nil, err
		}
	}
	return &SessionDetail{Session: session, Messages: messages, Documents: documents}, nil
}

// List returns active sessions, most recently used first.
func (s *SessionService) List(ctx context.Context, limit int) ([]types.ChatSession, error) {
	return s.store.ListChatSessions(ctx, limit)
}

// UpdateDocuments replaces the session's document selection.
func (s *SessionService) UpdateDocuments(ctx context.Context, sessionID uuid.UUID, docIDs []uuid.UUID) error {
	if len(docIDs) > 0 {
		known, err := s.store.GetDocumentsMetadata(ctx, docIDs)
		if err != nil {
			return err
		}
		if len(known) != len(docIDs) {
			return apperrors.WrapError(apperrors.ErrNotFound, "one or more selected documents do not exist")
		}
	}
	return s.store.UpdateSessionDocuments(ctx, sessionID, docIDs)
}

// Archive soft-deletes a session; its history is retained.
func (s *SessionService) Archive(ctx context.Context, sessionID uuid.UUID) error {
	return s.store.ArchiveChatSession(ctx, sessionID)
}

// Delete hard-deletes a session and its messages.
func (s *SessionService) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return s.store.DeleteChatSession(ctx, sessionID)
}
