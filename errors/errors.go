package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for categorization at component and HTTP boundaries.

var (
	// ErrInvalidInput indicates invalid user input (empty question, missing file)
	ErrInvalidInput = errors.New("invalid input")

	// ErrInputTooLarge indicates the upload exceeds the size or page cap
	ErrInputTooLarge = errors.New("input too large")

	// ErrUnsupportedFormat indicates a file type outside the accepted set
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotFound indicates a requested document, clause or session was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDocumentNotReady indicates clauses exist but embeddings are unavailable
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrNoClauses indicates a processed document yielded no clauses to answer over
	ErrNoClauses = errors.New("document has no clauses")

	// ErrDependencyFailure indicates an external collaborator (extractor, LLM,
	// embeddings, scanner, bus) failed
	ErrDependencyFailure = errors.New("dependency failure")

	// ErrConflict indicates a status transition against a missing or already
	// terminal document
	ErrConflict = errors.New("conflicting state transition")

	// ErrDatabaseOperation indicates a document store operation failed
	ErrDatabaseOperation = errors.New("database operation failed")

	// ErrBatchTooLarge indicates a store write batch exceeded the per-request limit
	ErrBatchTooLarge = errors.New("write batch too large")

	// ErrEmbeddingPersist indicates one or more embedding chunks failed to persist
	ErrEmbeddingPersist = errors.New("embedding persist failed")

	// ErrLLMCommunication indicates LLM communication failed
	ErrLLMCommunication = errors.New("llm communication failed")
)

// WrapError wraps an error with context message and stack
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInputTooLarge checks if error is an input size error
func IsInputTooLarge(err error) bool {
	return errors.Is(err, ErrInputTooLarge)
}

// IsUnsupportedFormat checks if error is an unsupported format error
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// IsDocumentNotReady checks if error is a document readiness error
func IsDocumentNotReady(err error) bool {
	return errors.Is(err, ErrDocumentNotReady)
}

// IsNoClauses checks if error indicates an empty clause set
func IsNoClauses(err error) bool {
	return errors.Is(err, ErrNoClauses)
}

// IsConflict checks if error is a state transition conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
