package services

import (
	"context"

	apperrors "clauselens/errors"
	"clauselens/qa"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatSessionStore resolves sessions for session-scoped questions.
type ChatSessionStore interface {
	GetChatSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error)
}

// ChatService answers questions against documents, either directly or through
// a chat session's selected document set.
type ChatService struct {
	store     ChatSessionStore
	responder *qa.Responder
	logger    *zap.Logger
}

func NewChatService(store ChatSessionStore, responder *qa.Responder, logger *zap.Logger) *ChatService {
	return &ChatService{store: store, responder: responder, logger: logger}
}

// AskOptions carries the per-question toggles from the request body. Both
// toggles default to on.
type AskOptions struct {
	Language   string
	SessionID  *uuid.UUID
	UseMemory  bool
	AutoDetect bool
}

// AskDocument answers one question against a single document.
func (s *ChatService) AskDocument(ctx context.Context, docID uuid.UUID, question string, opts AskOptions) (*types.Answer, error) {
	return s.responder.Ask(ctx, documentRequest(docID, question, opts))
}

// AskDocumentStream is AskDocument with progress frames.
func (s *ChatService) AskDocumentStream(ctx context.Context, docID uuid.UUID, question string, opts AskOptions, emit qa.EmitFunc) error {
	return s.responder.AskStream(ctx, documentRequest(docID, question, opts), emit)
}

// AskSession answers against every document selected in the session.
func (s *ChatService) AskSession(ctx context.Context, sessionID uuid.UUID, question string, opts AskOptions) (*types.Answer, error) {
	req, err := s.sessionRequest(ctx, sessionID, question, opts)
	if err != nil {
		return nil, err
	}
	return s.responder.Ask(ctx, *req)
}

// AskSessionStream is AskSession with progress frames.
func (s *ChatService) AskSessionStream(ctx context.Context, sessionID uuid.UUID, question string, opts AskOptions, emit qa.EmitFunc) error {
	req, err := s.sessionRequest(ctx, sessionID, question, opts)
	if err != nil {
		emit(qa.StreamFrame{Type: qa.FrameError, Error: err.Error()})
		return err
	}
	return s.responder.AskStream(ctx, *req, emit)
}

func documentRequest(docID uuid.UUID, question string, opts AskOptions) qa.AskRequest {
	return qa.AskRequest{
		DocIDs:             []uuid.UUID{docID},
		Question:           question,
		SessionID:          opts.SessionID,
		Language:           opts.Language,
		UseMemory:          opts.UseMemory,
		AutoDetectLanguage: opts.AutoDetect,
	}
}

func (s *ChatService) sessionRequest(ctx context.Context, sessionID uuid.UUID, question string, opts AskOptions) (*qa.AskRequest, error) {
	session, err := s.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(session.SelectedDocuments) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "session has no selected documents")
	}
	return &qa.AskRequest{
		DocIDs:             session.SelectedDocuments,
		Question:           question,
		SessionID:          &sessionID,
		Language:           opts.Language,
		UseMemory:          opts.UseMemory,
		AutoDetectLanguage: opts.AutoDetect,
	}, nil
}
