package types

import (
	"time"

	"github.com/google/uuid"
)

// LLMMessage represents a message in the format expected by the LLM chat API.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document lifecycle states. Completed and failed are terminal for one
// ingestion attempt; re-ingestion creates a fresh document id.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Clause risk levels.
const (
	RiskLow       = "low"
	RiskModerate  = "moderate"
	RiskAttention = "attention"
)

// Closed clause category enum.
const (
	CategoryTermination       = "Termination"
	CategoryLiability         = "Liability"
	CategoryIndemnity         = "Indemnity"
	CategoryConfidentiality   = "Confidentiality"
	CategoryPayment           = "Payment"
	CategoryIPOwnership       = "IP-Ownership"
	CategoryDisputeResolution = "Dispute-Resolution"
	CategoryGoverningLaw      = "Governing-Law"
	CategoryAssignment        = "Assignment"
	CategoryModification      = "Modification"
	CategoryWarranties        = "Warranties"
	CategoryForceMajeure      = "Force-Majeure"
	CategoryDefinitions       = "Definitions"
	CategoryOther             = "Other"
)

// AllCategories lists every valid clause category.
var AllCategories = []string{
	CategoryTermination, CategoryLiability, CategoryIndemnity,
	CategoryConfidentiality, CategoryPayment, CategoryIPOwnership,
	CategoryDisputeResolution, CategoryGoverningLaw, CategoryAssignment,
	CategoryModification, CategoryWarranties, CategoryForceMajeure,
	CategoryDefinitions, CategoryOther,
}

// ValidCategory reports whether c is a member of the closed category enum.
func ValidCategory(c string) bool {
	for _, v := range AllCategories {
		if v == c {
			return true
		}
	}
	return false
}

// ReadabilityMetrics holds Flesch-based scores for a clause or document.
// Delta = original grade - summary grade; positive means the summary is simpler.
type ReadabilityMetrics struct {
	OriginalGrade float64 `json:"original_grade"`
	SummaryGrade  float64 `json:"summary_grade"`
	Delta         float64 `json:"delta"`
	FleschScore   float64 `json:"flesch_score"`
}

// ProcessingStats summarizes a completed ingestion run. FallbackCount records
// clauses whose summaries degraded to the manual-review fallback.
type ProcessingStats struct {
	ClauseCount          int     `json:"clause_count"`
	HighRiskCount        int     `json:"high_risk_count"`
	FallbackCount        int     `json:"fallback_count"`
	MeanReadabilityDelta float64 `json:"mean_readability_delta"`
	EmbeddingsGenerated  bool    `json:"embeddings_generated"`
}

// RiskProfile is the document-level aggregation of clause risk.
type RiskProfile struct {
	OverallLevel   string         `json:"overall_level"`
	Distribution   map[string]int `json:"distribution"`
	TopRiskFactors []string       `json:"top_risk_factors"`
}

// Document is the persisted record for one ingested contract.
type Document struct {
	ID                  uuid.UUID          `json:"doc_id"`
	Filename            string             `json:"filename"`
	ByteSize            int64              `json:"byte_size"`
	PageCount           int                `json:"page_count"`
	Language            string             `json:"language"`
	Masked              bool               `json:"masked"`
	Status              string             `json:"status"`
	FailedAtStage       string             `json:"failed_at_stage,omitempty"`
	StagesCompleted     []string           `json:"stages_completed"`
	ClauseCount         int                `json:"clause_count"`
	PIISummary          map[string]int     `json:"pii_summary,omitempty"`
	BaselineReadability ReadabilityMetrics `json:"baseline_readability"`
	RiskProfile         *RiskProfile       `json:"risk_profile,omitempty"`
	Stats               ProcessingStats    `json:"processing_statistics"`
	SessionID           *string            `json:"session_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	ProcessedAt         *time.Time         `json:"processed_at,omitempty"`
}

// Clause is one analyzed span of contract text, owned by exactly one document.
type Clause struct {
	ID               uuid.UUID          `json:"clause_id"`
	DocID            uuid.UUID          `json:"doc_id"`
	Order            int                `json:"order"`
	OriginalText     string             `json:"original_text"`
	Summary          string             `json:"summary"`
	Category         string             `json:"category"`
	RiskLevel        string             `json:"risk_level"`
	RiskScore        float64            `json:"risk_score"`
	NeedsReview      bool               `json:"needs_review"`
	Readability      ReadabilityMetrics `json:"readability_metrics"`
	NegotiationTip   *string            `json:"negotiation_tip,omitempty"`
	Confidence       float64            `json:"confidence"`
	Embedding        []float32          `json:"-"`
	DetectedKeywords []string           `json:"detected_keywords,omitempty"`
	RiskFactors      []string           `json:"risk_factors,omitempty"`
	ProcessingMethod string             `json:"processing_method"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Citation links an answer back to a specific clause.
type Citation struct {
	ClauseID       string  `json:"clause_id"`
	Order          int     `json:"clause_number"`
	Category       string  `json:"category"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Answer is the grounded response to one question.
type Answer struct {
	Text                    string     `json:"answer"`
	UsedClauseIDs           []string   `json:"used_clause_ids"`
	Confidence              float64    `json:"confidence"`
	Sources                 []Citation `json:"sources"`
	Language                string     `json:"language"`
	LanguageConfidence      float64    `json:"language_confidence"`
	LanguageMethod          string     `json:"language_method,omitempty"`
	ConversationContextUsed bool       `json:"conversation_context_used"`
}

// ChatSession groups a conversation and its selected documents.
type ChatSession struct {
	ID                uuid.UUID   `json:"session_id"`
	Title             string      `json:"title"`
	SelectedDocuments []uuid.UUID `json:"selected_document_ids"`
	ContextSummary    string      `json:"context_summary,omitempty"`
	TotalMessages     int         `json:"total_messages"`
	Archived          bool        `json:"archived"`
	CreatedAt         time.Time   `json:"created_at"`
	LastActivity      time.Time   `json:"last_activity"`
}

// Message is a single entry in a session's append-only log.
type Message struct {
	ID        uuid.UUID      `json:"message_id"`
	SessionID uuid.UUID      `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Sources   []Citation     `json:"sources,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"timestamp"`
}

// QARecord is one persisted question/answer pair.
type QARecord struct {
	ID         uuid.UUID  `json:"qa_id"`
	DocID      uuid.UUID  `json:"doc_id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Sources    []Citation `json:"sources"`
	Confidence float64    `json:"confidence"`
	SessionID  *string    `json:"session_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Negotiation is a saved negotiation tip for one clause.
type Negotiation struct {
	ID        uuid.UUID `json:"negotiation_id"`
	DocID     uuid.UUID `json:"doc_id"`
	ClauseID  uuid.UUID `json:"clause_id"`
	Tip       string    `json:"tip"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
