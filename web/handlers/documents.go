package handlers

import (
	"io"
	"net/http"
	"strconv"

	"clauselens/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentHandler serves upload, status, clause, and history endpoints.
type DocumentHandler struct {
	uploads   *services.UploadService
	documents *services.DocumentService
	logger    *zap.Logger
}

func NewDocumentHandler(uploads *services.UploadService, documents *services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{uploads: uploads, documents: documents, logger: logger}
}

// Upload accepts a multipart contract file and starts ingestion.
// POST /api/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "missing file field")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err, "could not read uploaded file", h.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err, "could not read uploaded file", h.logger)
		return
	}

	var sessionID *string
	if s := c.PostForm("session_id"); s != "" {
		sessionID = &s
	}

	doc, err := h.uploads.Upload(c.Request.Context(), fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), data, sessionID)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("filename", fileHeader.Filename))
		return
	}

	c.JSON(http.StatusAccepted, doc)
}

// Status returns the document record with live ingestion progress.
// GET /api/documents/:doc_id
func (h *DocumentHandler) Status(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}

	status, err := h.documents.Status(c.Request.Context(), docID)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("doc_id", docID.String()))
		return
	}
	c.JSON(http.StatusOK, status)
}

// Clauses lists a completed document's clauses in order.
// GET /api/documents/:doc_id/clauses
func (h *DocumentHandler) Clauses(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}

	clauses, err := h.documents.Clauses(c.Request.Context(), docID)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("doc_id", docID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "clauses": clauses, "count": len(clauses)})
}

// Clause returns one clause in full.
// GET /api/documents/:doc_id/clauses/:clause_id
func (h *DocumentHandler) Clause(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}
	clauseID, ok := h.parseUUID(c, "clause_id")
	if !ok {
		return
	}

	clause, err := h.documents.Clause(c.Request.Context(), docID, clauseID)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("clause_id", clauseID.String()))
		return
	}
	c.JSON(http.StatusOK, clause)
}

// Delete removes a document and everything attached to it.
// DELETE /api/documents/:doc_id
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), docID); err != nil {
		respondForError(c, err, h.logger, zap.String("doc_id", docID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": docID})
}

// QAHistory returns the document's question log.
// GET /api/documents/:doc_id/qa-history
func (h *DocumentHandler) QAHistory(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	records, err := h.documents.QAHistory(c.Request.Context(), docID, limit)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("doc_id", docID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "history": records})
}

// SaveNegotiation stores a negotiation tip against a clause.
// POST /api/documents/:doc_id/clauses/:clause_id/negotiations
func (h *DocumentHandler) SaveNegotiation(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}
	clauseID, ok := h.parseUUID(c, "clause_id")
	if !ok {
		return
	}

	var body struct {
		Tip    string `json:"tip"`
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Status == "" {
		body.Status = "suggested"
	}

	negotiation, err := h.documents.SaveNegotiation(c.Request.Context(), docID, clauseID, body.Tip, body.Status)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("clause_id", clauseID.String()))
		return
	}
	c.JSON(http.StatusCreated, negotiation)
}

// Negotiations lists the document's saved negotiation tips.
// GET /api/documents/:doc_id/negotiations
func (h *DocumentHandler) Negotiations(c *gin.Context) {
	docID, ok := h.parseUUID(c, "doc_id")
	if !ok {
		return
	}

	negotiations, err := h.documents.Negotiations(c.Request.Context(), docID)
	if err != nil {
		respondForError(c, err, h.logger, zap.String("doc_id", docID.String()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "negotiations": negotiations})
}

func (h *DocumentHandler) parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
