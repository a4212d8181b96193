package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"clauselens/config"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeDocumentStore struct {
	mu              sync.Mutex
	stages          []string
	status          string
	failedAtStage   string
	clauses         []types.Clause
	embeddings      map[uuid.UUID][]float32
	finalized       bool
	finalStats      types.ProcessingStats
	finalProfile    *types.RiskProfile
	metadataUpdated bool
	language        string
}

func (s *fakeDocumentStore) UpdateDocumentStatus(_ context.Context, _ uuid.UUID, _, toStatus, failedAtStage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = toStatus
	s.failedAtStage = failedAtStage
	return nil
}

func (s *fakeDocumentStore) AppendStageCompleted(_ context.Context, _ uuid.UUID, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stage)
	return nil
}

func (s *fakeDocumentStore) UpdateDocumentMetadata(_ context.Context, _ uuid.UUID, _ int, lang string, _ bool, _ map[string]int, _ types.ReadabilityMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataUpdated = true
	s.language = lang
	return nil
}

func (s *fakeDocumentStore) FinalizeDocument(_ context.Context, _ uuid.UUID, _ int, stats types.ProcessingStats, profile *types.RiskProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
	s.finalStats = stats
	s.finalProfile = profile
	return nil
}

func (s *fakeDocumentStore) CreateClauses(_ context.Context, _ uuid.UUID, clauses []types.Clause) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clauses = clauses
	return nil
}

func (s *fakeDocumentStore) UpdateClauseEmbeddings(_ context.Context, _ uuid.UUID, embeddings map[uuid.UUID][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings = embeddings
	return nil
}

type fakeEventSink struct {
	mu            sync.Mutex
	analyzed      int
	riskDetected  int
	riskClauseIDs []uuid.UUID
}

func (s *fakeEventSink) ClauseAnalyzed(_ uuid.UUID, _ types.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzed++
}

func (s *fakeEventSink) RiskDetected(_ uuid.UUID, clause types.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskDetected++
	s.riskClauseIDs = append(s.riskClauseIDs, clause.ID)
}

func orchestratorTestConfig() *config.Config {
	return &config.Config{
		IngestWorkers:      1,
		MaxFileSizeMB:      10,
		MaxPages:           100,
		MaxClausesPerBatch: 10,
		MaxPromptTokens:    10000,
		LLMTemperature:     0.2,
		DefaultLanguage:    "en",
	}
}

// echoChat answers every batch with one low-risk analysis per clause.
func echoChat(_ context.Context, messages []types.LLMMessage, _ *float64) (string, error) {
	n := strings.Count(messages[1].Content, "Clause ")
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"summary":"Plain summary of clause %d.","risk_level":"low","negotiation_tip":"Ask for mutuality.","confidence":0.8}`, i+1)
	}
	sb.WriteString("]")
	return sb.String(), nil
}

func newTestOrchestrator(cfg *config.Config, store *fakeDocumentStore, sink *fakeEventSink, chat ChatFunc) *Orchestrator {
	logger, _ := zap.NewDevelopment()
	embed := func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	var events EventSink
	if sink != nil {
		events = sink
	}
	return NewOrchestrator(
		cfg,
		store,
		NewExtractor(cfg, nil, logger),
		nil,
		NewSegmenter(logger),
		NewClassifier(nil, logger),
		NewReadabilityAnalyzer(logger),
		NewSummarizer(cfg, chat, logger),
		NewRiskAnalyzer(logger),
		NewEmbedder(embed, 3, logger),
		events,
		logger,
	)
}

var contractText = strings.Join([]string{
	"1. Termination",
	"Either party may terminate this agreement upon thirty days written notice to the other party for any material breach that remains uncured after the cure period.",
	"",
	"2. Indemnification",
	"Supplier shall indemnify, defend, and hold harmless the Customer from all third party claims arising out of the services, without limit as to amount.",
	"",
	"3. Governing Law",
	"This agreement shall be governed by the laws of the State of Delaware without regard to its conflict of law principles.",
}, "\n")

func TestOrchestratorProcessesDocument(t *testing.T) {
	cfg := orchestratorTestConfig()
	store := &fakeDocumentStore{}
	sink := &fakeEventSink{}
	o := newTestOrchestrator(cfg, store, sink, echoChat)

	ctx := context.Background()
	o.Start(ctx)
	docID := uuid.New()
	if err := o.Submit(ctx, IngestJob{
		DocID:    docID,
		Filename: "contract.pdf",
		MIME:     "application/pdf",
		Data:     []byte(contractText),
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	o.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.status != types.StatusCompleted {
		t.Fatalf("status = %q (failed at %q), want %q", store.status, store.failedAtStage, types.StatusCompleted)
	}
	if len(store.clauses) != 3 {
		t.Fatalf("persisted %d clauses, want 3", len(store.clauses))
	}
	if !store.metadataUpdated || store.language != "en" {
		t.Errorf("metadata updated = %v, language = %q", store.metadataUpdated, store.language)
	}
	if !store.finalized || store.finalProfile == nil {
		t.Fatal("document not finalized with a risk profile")
	}
	if store.finalStats.ClauseCount != 3 {
		t.Errorf("stats clause count = %d, want 3", store.finalStats.ClauseCount)
	}
	if !store.finalStats.EmbeddingsGenerated {
		t.Error("stats report embeddings missing")
	}
	if len(store.embeddings) != 3 {
		t.Errorf("persisted %d embeddings, want 3", len(store.embeddings))
	}

	wantStages := []string{
		StageExtraction, StageMasking, StageSegmentation, StageBaseline,
		StageSummarization, StageRisk, StageReadability, StageStorage, StageEmbeddings,
	}
	if len(store.stages) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", store.stages, wantStages)
	}
	for i, stage := range wantStages {
		if store.stages[i] != stage {
			t.Errorf("stage %d = %q, want %q", i, store.stages[i], stage)
		}
	}

	for i, clause := range store.clauses {
		if clause.Order != i+1 {
			t.Errorf("clause %d order = %d", i, clause.Order)
		}
		if clause.Summary == "" || clause.ProcessingMethod != MethodBatchLLM {
			t.Errorf("clause %d analysis = %q / %q", i, clause.Summary, clause.ProcessingMethod)
		}
	}

	// The unlimited indemnity clause crosses the event threshold.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.analyzed != 3 {
		t.Errorf("clause_analyzed events = %d, want 3", sink.analyzed)
	}
	if sink.riskDetected == 0 {
		t.Error("expected at least one risk_detected event")
	}
}

func ingestContract(t *testing.T, chat ChatFunc, docID uuid.UUID) *fakeDocumentStore {
	t.Helper()
	cfg := orchestratorTestConfig()
	store := &fakeDocumentStore{}
	o := newTestOrchestrator(cfg, store, nil, chat)

	ctx := context.Background()
	o.Start(ctx)
	if err := o.Submit(ctx, IngestJob{
		DocID:    docID,
		Filename: "contract.pdf",
		MIME:     "application/pdf",
		Data:     []byte(contractText),
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	o.Stop()
	return store
}

// An unavailable model degrades every summary, but the document still
// completes with the degradation counted in its statistics.
func TestOrchestratorCompletesWithFallbackSummaries(t *testing.T) {
	store := ingestContract(t, func(_ context.Context, _ []types.LLMMessage, _ *float64) (string, error) {
		return "", fmt.Errorf("model offline")
	}, uuid.New())

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.status != types.StatusCompleted {
		t.Fatalf("status = %q (failed at %q), want %q", store.status, store.failedAtStage, types.StatusCompleted)
	}
	if len(store.clauses) != 3 {
		t.Fatalf("persisted %d clauses, want 3", len(store.clauses))
	}
	for i, clause := range store.clauses {
		if clause.ProcessingMethod != MethodFallback {
			t.Errorf("clause %d method = %q, want %q", i, clause.ProcessingMethod, MethodFallback)
		}
		if !clause.NeedsReview {
			t.Errorf("clause %d needs_review = false, want true", i)
		}
	}
	if store.finalStats.FallbackCount != 3 {
		t.Errorf("stats fallback count = %d, want 3", store.finalStats.FallbackCount)
	}
}

func TestOrchestratorClauseIDsStableAcrossRuns(t *testing.T) {
	docID := uuid.New()
	first := ingestContract(t, echoChat, docID)
	second := ingestContract(t, echoChat, docID)

	if len(first.clauses) == 0 || len(first.clauses) != len(second.clauses) {
		t.Fatalf("clause counts = %d and %d", len(first.clauses), len(second.clauses))
	}
	for i := range first.clauses {
		if first.clauses[i].ID != second.clauses[i].ID {
			t.Errorf("clause order %d: IDs %s and %s differ across runs",
				first.clauses[i].Order, first.clauses[i].ID, second.clauses[i].ID)
		}
	}
}

func TestClauseIDDerivation(t *testing.T) {
	docA, docB := uuid.New(), uuid.New()
	if clauseID(docA, 1) != clauseID(docA, 1) {
		t.Error("same document and order produced different IDs")
	}
	if clauseID(docA, 1) == clauseID(docA, 2) {
		t.Error("different orders produced the same ID")
	}
	if clauseID(docA, 1) == clauseID(docB, 1) {
		t.Error("different documents produced the same ID")
	}
}

// The model's category label wins over the keyword baseline.
func TestOrchestratorPrefersModelCategory(t *testing.T) {
	categoryChat := func(_ context.Context, messages []types.LLMMessage, _ *float64) (string, error) {
		n := strings.Count(messages[1].Content, "Clause ")
		var sb strings.Builder
		sb.WriteString("[")
		for i := 0; i < n; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"summary":"Summary %d.","category":"payment","risk_level":"low","negotiation_tip":"","confidence":0.8}`, i+1)
		}
		sb.WriteString("]")
		return sb.String(), nil
	}

	store := ingestContract(t, categoryChat, uuid.New())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.clauses) != 3 {
		t.Fatalf("persisted %d clauses, want 3", len(store.clauses))
	}
	for i, clause := range store.clauses {
		if clause.Category != types.CategoryPayment {
			t.Errorf("clause %d category = %q, want %q", i, clause.Category, types.CategoryPayment)
		}
	}
}

func TestOrchestratorEmptyDocumentFailsSegmentation(t *testing.T) {
	cfg := orchestratorTestConfig()
	store := &fakeDocumentStore{}
	o := newTestOrchestrator(cfg, store, nil, echoChat)

	ctx := context.Background()
	o.Start(ctx)
	if err := o.Submit(ctx, IngestJob{
		DocID:    uuid.New(),
		Filename: "contract.pdf",
		MIME:     "application/pdf",
		Data:     []byte("   \n  \n"),
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	o.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.status != types.StatusFailed {
		t.Fatalf("status = %q, want %q", store.status, types.StatusFailed)
	}
	if store.failedAtStage != StageExtraction {
		t.Errorf("failed_at_stage = %q, want %q", store.failedAtStage, StageExtraction)
	}
}

func TestSegmentationProgressCaps(t *testing.T) {
	if got := segmentationProgress(2); got != 0.16 {
		t.Errorf("segmentationProgress(2) = %v, want 0.16", got)
	}
	if got := segmentationProgress(100); got != 0.9 {
		t.Errorf("segmentationProgress(100) = %v, want 0.9", got)
	}
}

func TestFuseConfidence(t *testing.T) {
	if got := fuseConfidence(0.8, 0.6); got != 0.7 {
		t.Errorf("fuseConfidence(0.8, 0.6) = %v, want 0.7", got)
	}
	if got := fuseConfidence(1.5, 1.5); got != 1.0 {
		t.Errorf("fuseConfidence clamps to 1, got %v", got)
	}
}
