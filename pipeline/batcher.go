package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"clauselens/config"
	"clauselens/llmclient"
	"clauselens/web/types"

	"go.uber.org/zap"
)

// ChatFunc sends one chat completion request and returns the model's text.
type ChatFunc func(ctx context.Context, messages []types.LLMMessage, temperature *float64) (string, error)

// Processing methods recorded on each clause.
const (
	MethodBatchLLM = "batch_llm"
	MethodFallback = "fallback"
)

const fallbackSummary = "This clause requires manual review; automatic summarization was unavailable."

// ClauseAnalysis is the per-clause output of batch summarization. Category is
// empty when the model's label did not coerce to the closed enum; callers keep
// their keyword baseline in that case.
type ClauseAnalysis struct {
	Summary          string
	Category         string
	RiskLevel        string
	NegotiationTip   string
	Confidence       float64
	ProcessingMethod string
	NeedsReview      bool
}

type batchItem struct {
	Summary        string  `json:"summary"`
	Category       string  `json:"category"`
	RiskLevel      string  `json:"risk_level"`
	NegotiationTip string  `json:"negotiation_tip"`
	Confidence     float64 `json:"confidence"`
}

// Summarizer batches clauses into as few LLM calls as allowed by the batch
// size and token budget, runs the batches concurrently, and aligns results
// positionally. A failed batch degrades to fallback analyses rather than
// failing the document.
type Summarizer struct {
	cfg    *config.Config
	chat   ChatFunc
	logger *zap.Logger
}

func NewSummarizer(cfg *config.Config, chat ChatFunc, logger *zap.Logger) *Summarizer {
	return &Summarizer{cfg: cfg, chat: chat, logger: logger}
}

// estimateTokens approximates tokens as ceil(chars / 4).
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Summarize analyzes all candidates. The result slice is positionally aligned
// with the input: result[i] always describes candidates[i].
func (s *Summarizer) Summarize(ctx context.Context, candidates []ClauseCandidate) []ClauseAnalysis {
	results := make([]ClauseAnalysis, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	batches := s.splitBatches(candidates)
	s.logger.Info("Summarizing clauses",
		zap.Int("clauses", len(candidates)),
		zap.Int("batches", len(batches)))

	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func(offset int, batch []ClauseCandidate) {
			defer wg.Done()
			analyses := s.summarizeBatch(ctx, batch)
			copy(results[offset:], analyses)
		}(b.offset, b.candidates)
	}
	wg.Wait()

	return results
}

type batch struct {
	offset     int
	candidates []ClauseCandidate
}

// splitBatches greedily packs candidates into batches bounded by the
// configured clause count and 70% of the prompt token budget.
func (s *Summarizer) splitBatches(candidates []ClauseCandidate) []batch {
	tokenBudget := int(0.7 * float64(s.cfg.MaxPromptTokens))

	var batches []batch
	start := 0
	tokens := 0
	for i, c := range candidates {
		clauseTokens := estimateTokens(c.Text)
		count := i - start
		if count > 0 && (count >= s.cfg.MaxClausesPerBatch || tokens+clauseTokens > tokenBudget) {
			batches = append(batches, batch{offset: start, candidates: candidates[start:i]})
			start = i
			tokens = 0
		}
		tokens += clauseTokens
	}
	batches = append(batches, batch{offset: start, candidates: candidates[start:]})
	return batches
}

// summarizeBatch runs one batch through the model. On context overflow the
// batch is halved and retried; on any other failure every clause in the batch
// gets the fallback analysis.
func (s *Summarizer) summarizeBatch(ctx context.Context, candidates []ClauseCandidate) []ClauseAnalysis {
	raw, err := s.chat(ctx, s.buildMessages(candidates), &s.cfg.LLMTemperature)
	if err != nil {
		if errors.Is(err, llmclient.ErrContextWindowExceeded) && len(candidates) > 1 {
			mid := len(candidates) / 2
			s.logger.Warn("Batch exceeded context window, halving",
				zap.Int("batch_size", len(candidates)))
			left := s.summarizeBatch(ctx, candidates[:mid])
			right := s.summarizeBatch(ctx, candidates[mid:])
			return append(left, right...)
		}
		s.logger.Warn("Batch summarization failed, using fallback",
			zap.Int("batch_size", len(candidates)), zap.Error(err))
		return fallbackBatch(len(candidates))
	}

	items, err := parseBatchResponse(raw)
	if err != nil || len(items) != len(candidates) {
		s.logger.Warn("Unusable batch response, using fallback",
			zap.Int("expected", len(candidates)),
			zap.Int("got", len(items)),
			zap.Error(err))
		return fallbackBatch(len(candidates))
	}

	analyses := make([]ClauseAnalysis, len(items))
	for i, item := range items {
		analyses[i] = ClauseAnalysis{
			Summary:          strings.TrimSpace(item.Summary),
			Category:         coerceCategory(item.Category),
			RiskLevel:        coerceRiskLevel(item.RiskLevel),
			NegotiationTip:   strings.TrimSpace(item.NegotiationTip),
			Confidence:       clamp01(item.Confidence),
			ProcessingMethod: MethodBatchLLM,
		}
		if analyses[i].Summary == "" {
			analyses[i] = fallbackAnalysis()
		}
	}
	return analyses
}

func (s *Summarizer) buildMessages(candidates []ClauseCandidate) []types.LLMMessage {
	var sb strings.Builder
	sb.WriteString("Analyze each numbered contract clause below. For every clause produce:\n")
	sb.WriteString("- summary: a plain-language summary in 1-2 sentences\n")
	sb.WriteString("- category: the clause type, one of " + quotedCategories() + "\n")
	sb.WriteString("- risk_level: one of \"low\", \"moderate\", \"attention\"\n")
	sb.WriteString("- negotiation_tip: one concrete suggestion for the non-drafting party\n")
	sb.WriteString("- confidence: your confidence in the analysis, 0.0 to 1.0\n\n")
	sb.WriteString(fmt.Sprintf("Respond with ONLY a JSON array of exactly %d objects, in clause order, ", len(candidates)))
	sb.WriteString("each with keys summary, category, risk_level, negotiation_tip, confidence. No other text.\n\n")

	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("Clause %d", i+1))
		if c.Category != "" && c.Category != types.CategoryOther {
			sb.WriteString(fmt.Sprintf(" (%s)", c.Category))
		}
		sb.WriteString(":\n")
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}

	return []types.LLMMessage{
		{Role: "system", Content: "You are a legal document analyst. You explain contract clauses in plain language for non-lawyers and always answer with valid JSON."},
		{Role: "user", Content: sb.String()},
	}
}

// parseBatchResponse extracts the JSON array from the model output, tolerating
// code fences and surrounding prose.
func parseBatchResponse(raw string) ([]batchItem, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var items []batchItem
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return items, nil
}

func quotedCategories() string {
	quoted := make([]string, len(types.AllCategories))
	for i, c := range types.AllCategories {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ", ")
}

// coerceCategory maps a free-form model label onto the closed category enum.
// Separator and case variants are accepted; anything else coerces to empty so
// the caller keeps its keyword baseline.
func coerceCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)
	for _, c := range types.AllCategories {
		if normalized == strings.ToLower(c) {
			return c
		}
	}
	return ""
}

// coerceRiskLevel maps free-form model labels onto the closed enum.
func coerceRiskLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case types.RiskLow, "minimal", "none":
		return types.RiskLow
	case types.RiskAttention, "high", "critical", "severe":
		return types.RiskAttention
	default:
		return types.RiskModerate
	}
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

func fallbackAnalysis() ClauseAnalysis {
	return ClauseAnalysis{
		Summary:          fallbackSummary,
		RiskLevel:        types.RiskModerate,
		Confidence:       0.3,
		ProcessingMethod: MethodFallback,
		NeedsReview:      true,
	}
}

func fallbackBatch(n int) []ClauseAnalysis {
	out := make([]ClauseAnalysis, n)
	for i := range out {
		out[i] = fallbackAnalysis()
	}
	return out
}
