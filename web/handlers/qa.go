package handlers

import (
	"encoding/json"
	"net/http"

	"clauselens/qa"
	"clauselens/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QAHandler serves question answering, unary and streaming.
type QAHandler struct {
	chat   *services.ChatService
	logger *zap.Logger
}

func NewQAHandler(chat *services.ChatService, logger *zap.Logger) *QAHandler {
	return &QAHandler{chat: chat, logger: logger}
}

type askRequest struct {
	Question  string `json:"question" binding:"required"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
	// Both toggles default to true when omitted.
	UseConversationMemory *bool `json:"use_conversation_memory"`
	AutoDetectLanguage    *bool `json:"auto_detect_language"`
}

// options translates body toggles into service options, applying defaults.
func (b askRequest) options(sessionID *uuid.UUID) services.AskOptions {
	return services.AskOptions{
		Language:   b.Language,
		SessionID:  sessionID,
		UseMemory:  b.UseConversationMemory == nil || *b.UseConversationMemory,
		AutoDetect: b.AutoDetectLanguage == nil || *b.AutoDetectLanguage,
	}
}

// Ask answers a question against one document.
// POST /api/documents/:doc_id/ask
func (h *QAHandler) Ask(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("doc_id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid doc_id")
		return
	}

	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "question is required")
		return
	}
	sessionID, ok := h.parseSessionID(c, body.SessionID)
	if !ok {
		return
	}

	answer, err := h.chat.AskDocument(c.Request.Context(), docID, body.Question, body.options(sessionID))
	if err != nil {
		respondForError(c, err, h.logger, zap.String("doc_id", docID.String()))
		return
	}
	c.JSON(http.StatusOK, answer)
}

// AskStream answers a question against one document over SSE.
// POST /api/documents/:doc_id/ask/stream
func (h *QAHandler) AskStream(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("doc_id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid doc_id")
		return
	}

	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "question is required")
		return
	}
	sessionID, ok := h.parseSessionID(c, body.SessionID)
	if !ok {
		return
	}

	emit := h.sseEmitter(c)
	if err := h.chat.AskDocumentStream(c.Request.Context(), docID, body.Question, body.options(sessionID), emit); err != nil {
		// The error frame has already been written; log only.
		h.logger.Warn("Streamed question failed",
			zap.String("doc_id", docID.String()), zap.Error(err))
	}
}

// AskSession answers a question against a session's selected documents.
// POST /api/sessions/:session_id/ask
func (h *QAHandler) AskSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid session_id")
		return
	}

	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.chat.AskSession(c.Request.Context(), sessionID, body.Question, body.options(nil))
	if err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", sessionID.String()))
		return
	}
	c.JSON(http.StatusOK, answer)
}

// AskSessionStream is the SSE variant of AskSession.
// POST /api/sessions/:session_id/ask/stream
func (h *QAHandler) AskSessionStream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid session_id")
		return
	}

	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "question is required")
		return
	}

	emit := h.sseEmitter(c)
	if err := h.chat.AskSessionStream(c.Request.Context(), sessionID, body.Question, body.options(nil), emit); err != nil {
		h.logger.Warn("Streamed session question failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
}

// sseEmitter sets the stream headers and returns a frame writer.
func (h *QAHandler) sseEmitter(c *gin.Context) qa.EmitFunc {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	return func(frame qa.StreamFrame) error {
		payload, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}
}

func (h *QAHandler) parseSessionID(c *gin.Context, raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid session_id")
		return nil, false
	}
	return &id, true
}
