package handlers

import (
	"net/http"

	apperrors "clauselens/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondWithError logs the technical error and returns a user-friendly message
func respondWithError(c *gin.Context, statusCode int, technicalError error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	// Log technical error with context
	if logger != nil {
		fields = append(fields, zap.Error(technicalError))
		logger.Error("Request failed", fields...)
	}

	// Return user-friendly message
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithClientError returns a client error (no logging needed for validation errors)
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case apperrors.IsInvalidInput(err), apperrors.IsUnsupportedFormat(err):
		return http.StatusBadRequest
	case apperrors.IsInputTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsDocumentNotReady(err), apperrors.IsNoClauses(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondForError picks the status from the error taxonomy. Client errors are
// echoed without logging; everything else logs the technical error and hides
// it behind a generic message.
func respondForError(c *gin.Context, err error, logger *zap.Logger, fields ...zap.Field) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		respondWithError(c, status, err, "An internal error occurred", logger, fields...)
		return
	}
	respondWithClientError(c, status, err.Error())
}
