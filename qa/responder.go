package qa

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"clauselens/config"
	apperrors "clauselens/errors"
	"clauselens/language"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatFunc sends one chat completion request and returns the model's text.
type ChatFunc func(ctx context.Context, messages []types.LLMMessage, temperature *float64) (string, error)

// EmbedFunc produces the embedding vector for a single text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

const (
	maxQuestionLength = 2000

	noRelevantClausesAnswer = "I could not find any clauses in this document relevant to your question. Try rephrasing it, or ask about a specific clause by number."

	languageOverrideThreshold = 0.8
	snippetLength             = 300
	sessionPerDocCeiling      = 3
)

// Store is the persistence surface the responder needs.
type Store interface {
	SessionStore
	GetDocument(ctx context.Context, docID uuid.UUID) (*types.Document, error)
	GetClausesByDocument(ctx context.Context, docID uuid.UUID) ([]types.Clause, error)
	UpdateClauseEmbeddings(ctx context.Context, docID uuid.UUID, embeddings map[uuid.UUID][]float32) error
	CreateQARecord(ctx context.Context, record types.QARecord) error
}

// Analytics receives question events. May be nil.
type Analytics interface {
	QuestionAsked(docID uuid.UUID, sessionID, question, lang string, confidence float64, sourceCount int)
}

// AskRequest is one question against one or more completed documents.
type AskRequest struct {
	DocIDs    []uuid.UUID
	Question  string
	SessionID *uuid.UUID
	// Language, when set, overrides detection.
	Language string
	// UseMemory includes the session's conversation history in the prompt.
	// The exchange is still recorded to the session log either way.
	UseMemory bool
	// AutoDetectLanguage enables detection when no override is given;
	// otherwise the configured default language is used.
	AutoDetectLanguage bool
}

// Responder answers questions grounded in retrieved clauses.
type Responder struct {
	cfg       *config.Config
	store     Store
	cache     *ClauseCache
	memory    *ConversationMemory
	chat      ChatFunc
	embed     EmbedFunc
	analytics Analytics
	logger    *zap.Logger

	bg sync.WaitGroup
}

func NewResponder(cfg *config.Config, store Store, cache *ClauseCache, memory *ConversationMemory, chat ChatFunc, embed EmbedFunc, analytics Analytics, logger *zap.Logger) *Responder {
	return &Responder{
		cfg:       cfg,
		store:     store,
		cache:     cache,
		memory:    memory,
		chat:      chat,
		embed:     embed,
		analytics: analytics,
		logger:    logger,
	}
}

// Ask runs the full question flow: validation, language resolution, clause
// retrieval, grounded generation, and persistence.
func (r *Responder) Ask(ctx context.Context, req AskRequest) (*types.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "question is empty")
	}
	if len(question) > maxQuestionLength {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput,
			"question exceeds %d characters", maxQuestionLength)
	}
	if len(req.DocIDs) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "no documents selected")
	}

	lang := r.resolveLanguage(question, req.Language, req.AutoDetectLanguage)

	clauses, err := r.loadClauses(ctx, req.DocIDs)
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrNoClauses, "selected documents have no clauses")
	}

	r.backfillEmbeddings(ctx, req.DocIDs, clauses)
	if !anyEmbedded(clauses) {
		return nil, apperrors.WrapError(apperrors.ErrDocumentNotReady,
			"clause embeddings unavailable")
	}

	queryVec, err := r.embed(ctx, question)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDependencyFailure, "embed question")
	}

	perDocCeiling := 0
	if len(req.DocIDs) > 1 {
		perDocCeiling = sessionPerDocCeiling
	}
	scored := TopK(queryVec, clauses, r.cfg.TopKResults, r.cfg.MinSimilarity, perDocCeiling)

	var answer *types.Answer
	if len(scored) == 0 {
		answer = &types.Answer{
			Text:       noRelevantClausesAnswer,
			Confidence: 0,
			Language:   lang.Language,
		}
	} else {
		answer, err = r.generate(ctx, req, question, lang.Language, scored)
		if err != nil {
			return nil, err
		}
	}
	answer.Language = lang.Language
	answer.LanguageConfidence = lang.Confidence
	answer.LanguageMethod = lang.Method

	// History and analytics are detached from the request; Flush waits for
	// them at shutdown.
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		r.persist(context.WithoutCancel(ctx), req, question, answer)
	}()
	return answer, nil
}

// Flush waits for detached persistence work to finish. Call before shutdown.
func (r *Responder) Flush() {
	r.bg.Wait()
}

// resolveLanguage honors an explicit override, then confident detection when
// enabled, then the configured default.
func (r *Responder) resolveLanguage(question, override string, autoDetect bool) language.Result {
	if override != "" {
		return language.Result{Language: override, Confidence: 1.0, Method: language.MethodUserOverride}
	}
	if !autoDetect {
		return language.Result{Language: r.cfg.DefaultLanguage, Confidence: 1.0, Method: language.MethodDefault}
	}
	detected := language.Detect(question, r.cfg.DefaultLanguage)
	if detected.Confidence >= languageOverrideThreshold {
		return detected
	}
	return language.Result{
		Language:   r.cfg.DefaultLanguage,
		Confidence: detected.Confidence,
		Method:     language.MethodDefault,
	}
}

// loadClauses fetches each document's clauses through the cache, requiring
// every document to be completed.
func (r *Responder) loadClauses(ctx context.Context, docIDs []uuid.UUID) ([]types.Clause, error) {
	var all []types.Clause
	for _, docID := range docIDs {
		if cached, ok := r.cache.Get(docID); ok {
			all = append(all, cached...)
			continue
		}

		doc, err := r.store.GetDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		if doc.Status != types.StatusCompleted {
			return nil, apperrors.WrapErrorf(apperrors.ErrDocumentNotReady,
				"document %s is %s", docID, doc.Status)
		}

		clauses, err := r.store.GetClausesByDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		r.cache.Put(docID, clauses)
		all = append(all, clauses...)
	}
	return all, nil
}

// backfillEmbeddings lazily generates vectors for clauses that lost theirs
// during ingestion. Best-effort; questions proceed with whatever succeeds.
func (r *Responder) backfillEmbeddings(ctx context.Context, docIDs []uuid.UUID, clauses []types.Clause) {
	perDoc := make(map[uuid.UUID]map[uuid.UUID][]float32)
	backfilled := 0
	for i := range clauses {
		if len(clauses[i].Embedding) > 0 {
			continue
		}
		vec, err := r.embed(ctx, clauses[i].OriginalText)
		if err != nil {
			r.logger.Warn("Embedding backfill failed",
				zap.String("clause_id", clauses[i].ID.String()), zap.Error(err))
			continue
		}
		clauses[i].Embedding = vec
		if perDoc[clauses[i].DocID] == nil {
			perDoc[clauses[i].DocID] = make(map[uuid.UUID][]float32)
		}
		perDoc[clauses[i].DocID][clauses[i].ID] = vec
		backfilled++
	}
	if backfilled == 0 {
		return
	}

	for docID, embeddings := range perDoc {
		if err := r.store.UpdateClauseEmbeddings(ctx, docID, embeddings); err != nil {
			r.logger.Warn("Failed to persist backfilled embeddings",
				zap.String("doc_id", docID.String()), zap.Error(err))
		}
		r.cache.Invalidate(docID)
	}
	r.logger.Info("Backfilled clause embeddings", zap.Int("count", backfilled))
}

func anyEmbedded(clauses []types.Clause) bool {
	for i := range clauses {
		if len(clauses[i].Embedding) > 0 {
			return true
		}
	}
	return false
}

type answerPayload struct {
	Answer      string  `json:"answer"`
	UsedClauses []int   `json:"used_clauses"`
	Confidence  float64 `json:"confidence"`
}

// generate runs the grounded LLM call and converts the response into an
// Answer with citations.
func (r *Responder) generate(ctx context.Context, req AskRequest, question, lang string, scored []ScoredClause) (*types.Answer, error) {
	var contextSummary string
	var recent []types.Message
	if req.SessionID != nil && req.UseMemory {
		var err error
		contextSummary, recent, err = r.memory.Context(ctx, *req.SessionID)
		if err != nil {
			return nil, err
		}
	}

	messages := buildAnswerMessages(question, lang, scored, contextSummary, recent)
	raw, err := r.chat(ctx, messages, &r.cfg.LLMTemperature)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDependencyFailure, "answer generation")
	}

	payload, parseErr := parseAnswerPayload(raw)
	if parseErr != nil {
		// Ungrounded fallback: keep the text, cite everything retrieved, and
		// mark reduced confidence.
		r.logger.Warn("Answer was not valid JSON, using raw text", zap.Error(parseErr))
		payload = answerPayload{Answer: strings.TrimSpace(raw), Confidence: 0.5}
		for i := range scored {
			payload.UsedClauses = append(payload.UsedClauses, i+1)
		}
	}

	answer := &types.Answer{
		Text:                    payload.Answer,
		Confidence:              clamp01(payload.Confidence),
		ConversationContextUsed: contextSummary != "" || len(recent) > 0,
	}
	for _, n := range payload.UsedClauses {
		if n < 1 || n > len(scored) {
			continue
		}
		sc := scored[n-1]
		answer.UsedClauseIDs = append(answer.UsedClauseIDs, sc.Clause.ID.String())
		answer.Sources = append(answer.Sources, types.Citation{
			ClauseID:       sc.Clause.ID.String(),
			Order:          sc.Clause.Order,
			Category:       sc.Clause.Category,
			Snippet:        snippet(sc.Clause.OriginalText),
			RelevanceScore: sc.Similarity,
		})
	}
	return answer, nil
}

// persist records the exchange. Failures are logged; the answer is already
// committed to the caller.
func (r *Responder) persist(ctx context.Context, req AskRequest, question string, answer *types.Answer) {
	var sessionStr *string
	if req.SessionID != nil {
		s := req.SessionID.String()
		sessionStr = &s
	}

	record := types.QARecord{
		ID:         uuid.New(),
		DocID:      req.DocIDs[0],
		Question:   question,
		Answer:     answer.Text,
		Sources:    answer.Sources,
		Confidence: answer.Confidence,
		SessionID:  sessionStr,
	}
	if err := r.store.CreateQARecord(ctx, record); err != nil {
		r.logger.Warn("Failed to persist QA record", zap.Error(err))
	}

	if req.SessionID != nil {
		if err := r.memory.Record(ctx, *req.SessionID, question, answer); err != nil {
			r.logger.Warn("Failed to record conversation", zap.Error(err))
		}
	}

	if r.analytics != nil {
		sessionID := ""
		if sessionStr != nil {
			sessionID = *sessionStr
		}
		r.analytics.QuestionAsked(req.DocIDs[0], sessionID, question,
			answer.Language, answer.Confidence, len(answer.Sources))
	}
}

func parseAnswerPayload(raw string) (answerPayload, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return answerPayload{}, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "no JSON object in answer")
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return answerPayload{}, apperrors.WrapError(err, "decode answer")
	}
	if strings.TrimSpace(payload.Answer) == "" {
		return answerPayload{}, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "empty answer field")
	}
	return payload, nil
}

// snippet keeps a citation excerpt within snippetLength bytes, ellipsis
// included.
func snippet(text string) string {
	if len(text) <= snippetLength {
		return text
	}
	return text[:snippetLength-3] + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
