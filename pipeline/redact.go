package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// PII type identifiers, mirroring the external scanner's info-type names.
const (
	PIIEmail      = "EMAIL_ADDRESS"
	PIIPhone      = "PHONE_NUMBER"
	PIISSN        = "US_SOCIAL_SECURITY_NUMBER"
	PIICreditCard = "CREDIT_CARD_NUMBER"
	PIIPersonName = "PERSON_NAME"
)

// PIIMatch is a detected PII span with its replacement token.
type PIIMatch struct {
	PIIType          string  `json:"pii_type"`
	OriginalText     string  `json:"-"`
	StartPosition    int     `json:"start_position"`
	EndPosition      int     `json:"end_position"`
	Confidence       float64 `json:"confidence"`
	ReplacementToken string  `json:"replacement_token"`
}

// RedactionResult carries the masked text, the match table needed for
// unmasking, and the per-type histogram.
type RedactionResult struct {
	MaskedText string
	Matches    []PIIMatch
	Summary    map[string]int
}

type piiPattern struct {
	piiType    string
	re         *regexp.Regexp
	confidence float64
}

var fallbackPatterns = []piiPattern{
	{PIIEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), 0.9},
	{PIIPhone, regexp.MustCompile(`\(\d{3}\)\s?\d{3}-?\d{4}`), 0.7},
	{PIIPhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?[0-9]{3}[-.\s][0-9]{3}[-.\s]?[0-9]{4}\b`), 0.7},
	{PIISSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.8},
	{PIICreditCard, regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`), 0.9},
	// Capitalized first-last pairs; unreliable, so low confidence and
	// case-sensitive on purpose.
	{PIIPersonName, regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`), 0.4},
}

// Redactor detects PII spans and substitutes stable placeholder tokens. An
// external scanner is preferred when enabled; the regex catalog is the
// fallback. Token numbering is unique per Redactor instance (one per
// document ingestion).
type Redactor struct {
	scanner      *ScannerClient
	logger       *zap.Logger
	mu           sync.Mutex
	tokenCounter int
}

func NewRedactor(scanner *ScannerClient, logger *zap.Logger) *Redactor {
	return &Redactor{scanner: scanner, logger: logger}
}

// Redact finds and masks PII in text. Matches are applied in reverse position
// order so earlier offsets stay valid; overlapping detections keep the most
// confident span.
func (r *Redactor) Redact(ctx context.Context, text string) (*RedactionResult, error) {
	if strings.TrimSpace(text) == "" {
		return &RedactionResult{MaskedText: text, Summary: map[string]int{}}, nil
	}

	var matches []PIIMatch
	if r.scanner != nil && r.scanner.IsEnabled() {
		scanned, err := r.scanner.Scan(ctx, text)
		if err != nil {
			r.logger.Warn("PII scanner failed, falling back to regex catalog", zap.Error(err))
			matches = r.detectWithPatterns(text)
		} else {
			matches = scanned
			r.assignTokens(matches)
		}
	} else {
		matches = r.detectWithPatterns(text)
	}

	matches = removeOverlaps(matches)
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartPosition < matches[j].StartPosition
	})

	masked := applyMasking(text, matches)

	summary := make(map[string]int)
	for _, m := range matches {
		summary[m.PIIType]++
	}

	return &RedactionResult{MaskedText: masked, Matches: matches, Summary: summary}, nil
}

// Unmask restores the original text given the full match table. Authorized
// paths only; tokens without a table entry are left in place.
func Unmask(maskedText string, matches []PIIMatch) string {
	restored := maskedText
	for _, m := range matches {
		restored = strings.Replace(restored, m.ReplacementToken, m.OriginalText, 1)
	}
	return restored
}

func (r *Redactor) detectWithPatterns(text string) []PIIMatch {
	var matches []PIIMatch
	for _, p := range fallbackPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matched := text[loc[0]:loc[1]]
			confidence := p.confidence
			// Longer capitalized pairs are likelier to be real names
			if p.piiType == PIIPersonName && len(matched) > 10 {
				confidence += 0.2
			}
			matches = append(matches, PIIMatch{
				PIIType:       p.piiType,
				OriginalText:  matched,
				StartPosition: loc[0],
				EndPosition:   loc[1],
				Confidence:    confidence,
			})
		}
	}
	r.assignTokens(matches)
	return matches
}

func (r *Redactor) assignTokens(matches []PIIMatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range matches {
		if matches[i].ReplacementToken == "" {
			r.tokenCounter++
			matches[i].ReplacementToken = fmt.Sprintf("[%s_%d]", matches[i].PIIType, r.tokenCounter)
		}
	}
}

// removeOverlaps resolves overlapping spans by keeping the higher-confidence
// match.
func removeOverlaps(matches []PIIMatch) []PIIMatch {
	if len(matches) == 0 {
		return matches
	}
	sorted := make([]PIIMatch, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartPosition < sorted[j].StartPosition
	})

	var filtered []PIIMatch
	for _, m := range sorted {
		overlapped := false
		for i, existing := range filtered {
			if m.StartPosition < existing.EndPosition && m.EndPosition > existing.StartPosition {
				if m.Confidence > existing.Confidence {
					filtered[i] = m
				}
				overlapped = true
				break
			}
		}
		if !overlapped {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// applyMasking substitutes tokens for spans in strictly decreasing position
// order so the remaining offsets stay valid.
func applyMasking(text string, matches []PIIMatch) string {
	if len(matches) == 0 {
		return text
	}
	reversed := make([]PIIMatch, len(matches))
	copy(reversed, matches)
	sort.Slice(reversed, func(i, j int) bool {
		return reversed[i].StartPosition > reversed[j].StartPosition
	})

	masked := text
	for _, m := range reversed {
		masked = masked[:m.StartPosition] + m.ReplacementToken + masked[m.EndPosition:]
	}
	return masked
}
