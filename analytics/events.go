package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Event types emitted to the analytics topic.
const (
	EventDocumentUploaded = "document_uploaded"
	EventClauseAnalyzed   = "clause_analyzed"
	EventQuestionAsked    = "question_asked"
	EventRiskDetected     = "risk_detected"
)

// Event is the published envelope. EventData is serialized separately and
// carried as a JSON string so downstream consumers with schemaless sinks can
// store it verbatim.
type Event struct {
	EventID             string `json:"event_id"`
	EventType           string `json:"event_type"`
	Timestamp           string `json:"timestamp"`
	ProcessingTimestamp string `json:"processing_timestamp"`
	EventData           string `json:"event_data"`
}

// DocumentUploadedData describes one accepted upload.
type DocumentUploadedData struct {
	DocID     string `json:"doc_id"`
	Filename  string `json:"filename"`
	ByteSize  int64  `json:"byte_size"`
	PageCount int    `json:"page_count"`
	SessionID string `json:"session_id,omitempty"`
}

// ClauseAnalyzedData describes one fully analyzed clause.
type ClauseAnalyzedData struct {
	DocID       string  `json:"doc_id"`
	ClauseID    string  `json:"clause_id"`
	Order       int     `json:"clause_number"`
	Category    string  `json:"category"`
	RiskLevel   string  `json:"risk_level"`
	RiskScore   float64 `json:"risk_score"`
	NeedsReview bool    `json:"needs_review"`
}

// QuestionAskedData describes one Q&A interaction. Only a hash of the
// question ever leaves the service.
type QuestionAskedData struct {
	DocID        string  `json:"doc_id"`
	SessionID    string  `json:"session_id,omitempty"`
	QuestionHash string  `json:"question_hash"`
	Language     string  `json:"language"`
	Confidence   float64 `json:"confidence"`
	SourceCount  int     `json:"source_count"`
}

// RiskDetectedData flags a clause whose fused score crossed the alerting
// threshold.
type RiskDetectedData struct {
	DocID       string   `json:"doc_id"`
	ClauseID    string   `json:"clause_id"`
	Category    string   `json:"category"`
	RiskLevel   string   `json:"risk_level"`
	RiskScore   float64  `json:"risk_score"`
	RiskFactors []string `json:"risk_factors,omitempty"`
}

// HashQuestion returns the hex SHA-256 of a question. Raw question text is
// never published.
func HashQuestion(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])
}

func newEnvelope(eventType string) Event {
	now := time.Now().UTC().Format(time.RFC3339)
	return Event{
		EventID:             uuid.New().String(),
		EventType:           eventType,
		Timestamp:           now,
		ProcessingTimestamp: now,
	}
}
