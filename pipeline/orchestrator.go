package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"clauselens/config"
	apperrors "clauselens/errors"
	"clauselens/language"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline stage names as recorded on the document.
const (
	StageExtraction       = "text_extraction"
	StageMasking          = "privacy_masking"
	StageSegmentation     = "clause_segmentation"
	StageBaseline         = "baseline_readability"
	StageSummarization    = "ai_summarization"
	StageRisk             = "risk_analysis"
	StageReadability      = "readability_analysis"
	StageStorage          = "data_storage"
	StageEmbeddings       = "embeddings_generation"
	StageEmbeddingsFailed = "embeddings_generation_failed"
)

// riskDetectedThreshold is the fused score at or above which a clause emits a
// risk_detected analytics event.
const riskDetectedThreshold = 0.7

// DocumentStore is the persistence surface the orchestrator needs.
type DocumentStore interface {
	UpdateDocumentStatus(ctx context.Context, docID uuid.UUID, fromStatus, toStatus, failedAtStage string) error
	AppendStageCompleted(ctx context.Context, docID uuid.UUID, stage string) error
	UpdateDocumentMetadata(ctx context.Context, docID uuid.UUID, pageCount int, language string, masked bool, piiSummary map[string]int, baseline types.ReadabilityMetrics) error
	FinalizeDocument(ctx context.Context, docID uuid.UUID, clauseCount int, stats types.ProcessingStats, profile *types.RiskProfile) error
	CreateClauses(ctx context.Context, docID uuid.UUID, clauses []types.Clause) error
	UpdateClauseEmbeddings(ctx context.Context, docID uuid.UUID, embeddings map[uuid.UUID][]float32) error
}

// EventSink receives analytics events from the pipeline. Implementations must
// never block ingestion or propagate failures.
type EventSink interface {
	ClauseAnalyzed(docID uuid.UUID, clause types.Clause)
	RiskDetected(docID uuid.UUID, clause types.Clause)
}

// IngestJob is one document queued for processing. The document record must
// already exist before the job is submitted.
type IngestJob struct {
	DocID    uuid.UUID
	Filename string
	MIME     string
	Data     []byte
}

// Progress is the in-flight view of one ingestion.
type Progress struct {
	Stage    string  `json:"current_stage"`
	Fraction float64 `json:"progress"`
}

// Orchestrator drives documents through the ingestion stages on a fixed
// worker pool. Extraction through summarization and clause storage are fatal
// on failure; embedding generation degrades gracefully.
type Orchestrator struct {
	cfg         *config.Config
	store       DocumentStore
	extractor   *Extractor
	scanner     *ScannerClient
	segmenter   *Segmenter
	classifier  *Classifier
	readability *ReadabilityAnalyzer
	summarizer  *Summarizer
	risk        *RiskAnalyzer
	embedder    *Embedder
	events      EventSink
	logger      *zap.Logger

	jobs chan IngestJob
	wg   sync.WaitGroup

	mu       sync.RWMutex
	progress map[uuid.UUID]Progress
}

func NewOrchestrator(
	cfg *config.Config,
	store DocumentStore,
	extractor *Extractor,
	scanner *ScannerClient,
	segmenter *Segmenter,
	classifier *Classifier,
	readability *ReadabilityAnalyzer,
	summarizer *Summarizer,
	risk *RiskAnalyzer,
	embedder *Embedder,
	events EventSink,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		extractor:   extractor,
		scanner:     scanner,
		segmenter:   segmenter,
		classifier:  classifier,
		readability: readability,
		summarizer:  summarizer,
		risk:        risk,
		embedder:    embedder,
		events:      events,
		logger:      logger,
		jobs:        make(chan IngestJob, cfg.IngestWorkers*4),
		progress:    make(map[uuid.UUID]Progress),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled and the
// queue drains.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.cfg.IngestWorkers; i++ {
		o.wg.Add(1)
		go func(worker int) {
			defer o.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-o.jobs:
					if !ok {
						return
					}
					o.process(ctx, job)
				}
			}
		}(i)
	}
	o.logger.Info("Ingestion workers started", zap.Int("workers", o.cfg.IngestWorkers))
}

// Stop closes the queue and waits for in-flight documents to finish.
func (o *Orchestrator) Stop() {
	close(o.jobs)
	o.wg.Wait()
}

// Submit enqueues a job, blocking until a worker slot or cancellation.
func (o *Orchestrator) Submit(ctx context.Context, job IngestJob) error {
	select {
	case o.jobs <- job:
		o.setProgress(job.DocID, StageExtraction, 0)
		return nil
	case <-ctx.Done():
		return apperrors.WrapError(ctx.Err(), "submit ingestion job")
	}
}

// GetProgress reports the in-flight stage for a processing document.
func (o *Orchestrator) GetProgress(docID uuid.UUID) (Progress, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.progress[docID]
	return p, ok
}

func (o *Orchestrator) setProgress(docID uuid.UUID, stage string, fraction float64) {
	o.mu.Lock()
	o.progress[docID] = Progress{Stage: stage, Fraction: fraction}
	o.mu.Unlock()
}

func (o *Orchestrator) clearProgress(docID uuid.UUID) {
	o.mu.Lock()
	delete(o.progress, docID)
	o.mu.Unlock()
}

// process runs one document through every stage.
func (o *Orchestrator) process(ctx context.Context, job IngestJob) {
	logger := o.logger.With(zap.String("doc_id", job.DocID.String()))
	defer o.clearProgress(job.DocID)

	fail := func(stage string, err error) {
		logger.Error("Ingestion failed", zap.String("stage", stage), zap.Error(err))
		if uerr := o.store.UpdateDocumentStatus(ctx, job.DocID, types.StatusProcessing, types.StatusFailed, stage); uerr != nil {
			logger.Error("Failed to mark document failed", zap.Error(uerr))
		}
	}

	completeStage := func(stage string, fraction float64) {
		if err := o.store.AppendStageCompleted(ctx, job.DocID, stage); err != nil {
			logger.Warn("Failed to record completed stage", zap.String("stage", stage), zap.Error(err))
		}
		o.setProgress(job.DocID, stage, fraction)
	}

	// Stage 1: extraction
	docData, err := o.extractor.Extract(ctx, job.Data, job.Filename, job.MIME)
	if err != nil {
		fail(StageExtraction, err)
		return
	}
	completeStage(StageExtraction, 0.1)

	detected := language.Detect(docData.Text, o.cfg.DefaultLanguage)

	// Stage 2: PII masking
	redactor := NewRedactor(o.scanner, logger)
	redaction, err := redactor.Redact(ctx, docData.Text)
	if err != nil {
		fail(StageMasking, err)
		return
	}
	completeStage(StageMasking, 0.2)

	maskedData := *docData
	maskedData.Text = redaction.MaskedText

	// Stage 3: segmentation
	candidates := o.segmenter.Segment(&maskedData)
	if len(candidates) == 0 {
		fail(StageSegmentation, apperrors.WrapError(apperrors.ErrNoClauses, "no clauses found"))
		return
	}
	completeStage(StageSegmentation, segmentationProgress(len(candidates)))

	// Stage 4: baseline readability
	baseline := o.readability.Baseline(redaction.MaskedText)
	if err := o.store.UpdateDocumentMetadata(ctx, job.DocID, docData.PageCount,
		detected.Language, len(redaction.Matches) > 0, redaction.Summary, baseline); err != nil {
		fail(StageBaseline, err)
		return
	}
	completeStage(StageBaseline, 0.4)

	// Stage 5: classification + batch summarization. Batch failures degrade to
	// fallback analyses; the document still completes.
	o.classifier.Classify(ctx, candidates)
	analyses := o.summarizer.Summarize(ctx, candidates)
	if n := countFallbacks(analyses); n > 0 {
		logger.Warn("Summarization degraded to fallback",
			zap.Int("fallback_clauses", n), zap.Int("clauses", len(candidates)))
	}
	completeStage(StageSummarization, 0.6)

	// Stages 6 and 7: risk fusion and readability comparison run in parallel
	clauses := make([]types.Clause, len(candidates))
	assessments := make([]RiskAssessment, len(candidates))
	metrics := make([]types.ReadabilityMetrics, len(candidates))

	var stageWG sync.WaitGroup
	stageWG.Add(2)
	go func() {
		defer stageWG.Done()
		for i := range candidates {
			assessments[i] = o.risk.Assess(candidates[i].Text, candidates[i].Category, analyses[i].RiskLevel)
		}
	}()
	go func() {
		defer stageWG.Done()
		for i := range candidates {
			metrics[i] = o.readability.Compare(candidates[i].Text, analyses[i].Summary)
		}
	}()
	stageWG.Wait()
	completeStage(StageRisk, 0.7)
	completeStage(StageReadability, 0.75)

	for i := range candidates {
		clause := types.Clause{
			ID:               clauseID(job.DocID, candidates[i].Order),
			DocID:            job.DocID,
			Order:            candidates[i].Order,
			OriginalText:     candidates[i].Text,
			Summary:          analyses[i].Summary,
			Category:         chooseCategory(candidates[i].Category, analyses[i].Category),
			RiskLevel:        assessments[i].Level,
			RiskScore:        assessments[i].Score,
			NeedsReview:      assessments[i].NeedsReview || analyses[i].NeedsReview,
			Readability:      metrics[i],
			Confidence:       fuseConfidence(analyses[i].Confidence, assessments[i].Confidence),
			DetectedKeywords: assessments[i].DetectedKeywords,
			RiskFactors:      assessments[i].RiskFactors,
			ProcessingMethod: analyses[i].ProcessingMethod,
		}
		if tip := analyses[i].NegotiationTip; tip != "" {
			clause.NegotiationTip = &tip
		}
		clauses[i] = clause
	}

	// Stage 8: clause persistence
	if err := o.store.CreateClauses(ctx, job.DocID, clauses); err != nil {
		fail(StageStorage, err)
		return
	}
	completeStage(StageStorage, 0.85)

	if o.events != nil {
		for _, clause := range clauses {
			o.events.ClauseAnalyzed(job.DocID, clause)
			if clause.RiskScore >= riskDetectedThreshold {
				o.events.RiskDetected(job.DocID, clause)
			}
		}
	}

	// Stage 9: embeddings (degrades, never fatal)
	embeddingsOK := o.generateEmbeddings(ctx, job.DocID, clauses, logger)
	if embeddingsOK {
		completeStage(StageEmbeddings, 0.95)
	} else {
		completeStage(StageEmbeddingsFailed, 0.95)
	}

	// Stage 10: aggregate and complete
	profile := o.risk.BuildRiskProfile(clauses)
	stats := buildStats(clauses, embeddingsOK)
	if err := o.store.FinalizeDocument(ctx, job.DocID, len(clauses), stats, profile); err != nil {
		fail(StageStorage, err)
		return
	}
	if err := o.store.UpdateDocumentStatus(ctx, job.DocID, types.StatusProcessing, types.StatusCompleted, ""); err != nil {
		logger.Error("Failed to mark document completed", zap.Error(err))
		return
	}

	logger.Info("Document ingestion complete",
		zap.Int("clauses", len(clauses)),
		zap.String("risk_level", profile.OverallLevel),
		zap.Bool("embeddings", embeddingsOK))
}

func (o *Orchestrator) generateEmbeddings(ctx context.Context, docID uuid.UUID, clauses []types.Clause, logger *zap.Logger) bool {
	generated, err := o.embedder.EmbedClauses(ctx, clauses)
	if err != nil {
		logger.Warn("Embedding generation failed", zap.Error(err))
		return false
	}

	embeddings := make(map[uuid.UUID][]float32, generated)
	for _, c := range clauses {
		if c.Embedding != nil {
			embeddings[c.ID] = c.Embedding
		}
	}
	if err := o.store.UpdateClauseEmbeddings(ctx, docID, embeddings); err != nil {
		logger.Warn("Embedding persistence failed", zap.Error(err))
		return false
	}
	return generated == len(clauses)
}

// segmentationProgress scales early progress by clause volume, capped so the
// bar never claims completion before the final stages.
func segmentationProgress(clauseCount int) float64 {
	return math.Min(0.9, float64(clauseCount)/10.0*0.8)
}

// clauseID derives a stable ID from the document and clause order, so
// re-ingesting the same input rewrites the same rows.
func clauseID(docID uuid.UUID, order int) uuid.UUID {
	return uuid.NewSHA1(docID, []byte(fmt.Sprintf("clause_%d", order)))
}

// chooseCategory prefers the model's category over the keyword baseline.
func chooseCategory(baseline, llm string) string {
	if llm != "" {
		return llm
	}
	return baseline
}

func countFallbacks(analyses []ClauseAnalysis) int {
	n := 0
	for _, a := range analyses {
		if a.ProcessingMethod == MethodFallback {
			n++
		}
	}
	return n
}

func fuseConfidence(summaryConf, riskConf float64) float64 {
	return clamp01((summaryConf + riskConf) / 2)
}

func buildStats(clauses []types.Clause, embeddingsOK bool) types.ProcessingStats {
	highRisk := 0
	fallbacks := 0
	var deltaSum float64
	for _, c := range clauses {
		if c.RiskLevel == types.RiskAttention {
			highRisk++
		}
		if c.ProcessingMethod == MethodFallback {
			fallbacks++
		}
		deltaSum += c.Readability.Delta
	}
	mean := 0.0
	if len(clauses) > 0 {
		mean = deltaSum / float64(len(clauses))
	}
	return types.ProcessingStats{
		ClauseCount:          len(clauses),
		HighRiskCount:        highRisk,
		FallbackCount:        fallbacks,
		MeanReadabilityDelta: mean,
		EmbeddingsGenerated:  embeddingsOK,
	}
}
