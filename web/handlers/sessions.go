package handlers

import (
	"net/http"
	"strconv"

	"clauselens/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionHandler serves chat session CRUD.
type SessionHandler struct {
	sessions *services.SessionService
	logger   *zap.Logger
}

func NewSessionHandler(sessions *services.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type createSessionRequest struct {
	Title       string   `json:"title"`
	DocumentIDs []string `json:"document_ids"`
}

// Create starts a new session.
// POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var body createSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	docIDs, ok := h.parseDocIDs(c, body.DocumentIDs)
	if !ok {
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), body.Title, docIDs)
	if err != nil {
		respondForError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Get returns a session with its messages and documents.
// GET /api/sessions/:session_id
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, ok := h.parseSessionID(c)
	if !ok {
		return
	}

	detail, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", sessionID.String()))
		return
	}
	c.JSON(http.StatusOK, detail)
}

// List returns active sessions.
// GET /api/sessions
func (h *SessionHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	sessions, err := h.sessions.List(c.Request.Context(), limit)
	if err != nil {
		respondForError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// UpdateDocuments replaces the session's document selection.
// PUT /api/sessions/:session_id/documents
func (h *SessionHandler) UpdateDocuments(c *gin.Context) {
	sessionID, ok := h.parseSessionID(c)
	if !ok {
		return
	}

	var body struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	docIDs, ok := h.parseDocIDs(c, body.DocumentIDs)
	if !ok {
		return
	}

	if err := h.sessions.UpdateDocuments(c.Request.Context(), sessionID, docIDs); err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", sessionID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "document_ids": docIDs})
}

// Archive soft-deletes a session.
// POST /api/sessions/:session_id/archive
func (h *SessionHandler) Archive(c *gin.Context) {
	sessionID, ok := h.parseSessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.Archive(c.Request.Context(), sessionID); err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", sessionID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": sessionID})
}

// Delete hard-deletes a session.
// DELETE /api/sessions/:session_id
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID, ok := h.parseSessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		respondForError(c, err, h.logger, zap.String("session_id", sessionID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": sessionID})
}

func (h *SessionHandler) parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid session_id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) parseDocIDs(c *gin.Context, raw []string) ([]uuid.UUID, bool) {
	docIDs := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			respondWithClientError(c, http.StatusBadRequest, "invalid document id "+s)
			return nil, false
		}
		docIDs = append(docIDs, id)
	}
	return docIDs, true
}
