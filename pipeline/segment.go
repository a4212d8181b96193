package pipeline

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ClauseCandidate is one segmented span of contract text before analysis.
type ClauseCandidate struct {
	Text          string
	StartPosition int
	EndPosition   int
	Heading       string
	Confidence    float64
	Page          int
	BBox          []float64
	Order         int
	Category      string
}

// Heading patterns common to legal documents. A line matching any of these
// opens a new clause candidate.
var headingPatterns = []*regexp.Regexp{
	// Numbered sections (1., 2., 3. or 1.1, 1.2, etc.)
	regexp.MustCompile(`(?i)^(\d+\.(?:\d+\.?)*)\s+(.+)$`),
	// Roman numerals (I., II., III., IV.)
	regexp.MustCompile(`^([IVX]+\.)\s+(.+)$`),
	// Letters (a), (b), (c) or A., B., C.
	regexp.MustCompile(`^(\([a-z]\)|[A-Z]\.)\s+(.+)$`),
	// Article/Section keywords
	regexp.MustCompile(`(?i)^((?:ARTICLE|SECTION|CLAUSE)\s+\d+(?:\.\d+)*)\s*[:\-]?\s*(.*)$`),
}

// All-caps lines of 3+ letters also count as headings.
var allCapsHeading = regexp.MustCompile(`^[A-Z][A-Z\s]{2,}$`)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	pageArtifact  = regexp.MustCompile(`Page \d+[^\n]*\n?`)
	legalKeywords = []string{
		"termination", "liability", "indemnity", "confidentiality", "payment",
		"intellectual property", "dispute resolution", "governing law",
		"assignment", "modification", "severability", "entire agreement",
		"force majeure", "warranties", "representations", "damages",
		"breach", "notice", "jurisdiction", "venue", "arbitration",
	}
)

const minBlockLength = 50

// Segmenter partitions redacted text into ordered clause candidates using
// layout blocks when available, otherwise a line scan.
type Segmenter struct {
	logger *zap.Logger
}

func NewSegmenter(logger *zap.Logger) *Segmenter {
	return &Segmenter{logger: logger}
}

// Segment produces validated, 1..N ordered clause candidates for a document.
func (s *Segmenter) Segment(doc *DocumentData) []ClauseCandidate {
	var candidates []ClauseCandidate
	if doc.Method == MethodLayoutAware && hasBlocks(doc.Pages) {
		candidates = s.segmentByBlocks(doc.Pages)
	} else {
		candidates = s.segmentByLines(doc.Text)
	}

	validated := s.validateAndMerge(candidates)
	s.logger.Debug("Segmented document",
		zap.String("method", doc.Method),
		zap.Int("raw_candidates", len(candidates)),
		zap.Int("clauses", len(validated)))
	return validated
}

func hasBlocks(pages []Page) bool {
	for _, p := range pages {
		if len(p.Blocks) > 0 {
			return true
		}
	}
	return false
}

// segmentByBlocks emits one candidate per layout block of at least
// minBlockLength characters, merging continuation blocks into the previous
// candidate.
func (s *Segmenter) segmentByBlocks(pages []Page) []ClauseCandidate {
	var candidates []ClauseCandidate
	position := 0

	for _, page := range pages {
		for _, block := range page.Blocks {
			blockText := strings.TrimSpace(block.Text)
			start := position
			position += len(block.Text) + 1
			if len(blockText) < minBlockLength {
				continue
			}

			heading := extractHeading(blockText)
			if heading != "" {
				candidates = append(candidates, ClauseCandidate{
					Text:          blockText,
					StartPosition: start,
					EndPosition:   start + len(blockText),
					Heading:       heading,
					Confidence:    blockConfidence(block),
					Page:          page.PageNumber,
					BBox:          block.BBox,
				})
				continue
			}

			if len(candidates) > 0 && shouldMerge(blockText, &candidates[len(candidates)-1]) {
				last := &candidates[len(candidates)-1]
				last.Text = last.Text + "\n" + blockText
				last.EndPosition = start + len(blockText)
				continue
			}

			candidates = append(candidates, ClauseCandidate{
				Text:          blockText,
				StartPosition: start,
				EndPosition:   start + len(blockText),
				Confidence:    clauseConfidence(blockText),
				Page:          page.PageNumber,
				BBox:          block.BBox,
			})
		}
	}
	return candidates
}

// segmentByLines runs the same heading scan line-by-line over raw text.
func (s *Segmenter) segmentByLines(text string) []ClauseCandidate {
	var candidates []ClauseCandidate
	var current []string
	var currentHeading string
	currentStart := 0
	position := 0

	flush := func(end int) {
		body := strings.TrimSpace(strings.Join(current, "\n"))
		if body != "" {
			candidates = append(candidates, ClauseCandidate{
				Text:          body,
				StartPosition: currentStart,
				EndPosition:   end,
				Heading:       currentHeading,
				Confidence:    clauseConfidence(body),
			})
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		lineStart := position
		position += len(line) + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if heading := extractHeading(trimmed); heading != "" {
			flush(lineStart)
			currentHeading = heading
			currentStart = lineStart
			current = append(current, trimmed)
			continue
		}

		if len(current) == 0 {
			// Continuation with no open candidate: merge into the previous
			// clause when it reads as one, else open a new headingless one.
			if len(candidates) > 0 && shouldMerge(trimmed, &candidates[len(candidates)-1]) {
				last := &candidates[len(candidates)-1]
				last.Text = last.Text + "\n" + trimmed
				last.EndPosition = position - 1
				continue
			}
			currentHeading = ""
			currentStart = lineStart
		}
		current = append(current, trimmed)
	}
	flush(position)

	return candidates
}

// extractHeading returns the heading string when the first line of text
// matches a heading pattern, else "".
func extractHeading(text string) string {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if firstLine == "" {
		return ""
	}

	for _, pattern := range headingPatterns {
		if m := pattern.FindStringSubmatch(firstLine); m != nil {
			if len(m) > 2 && strings.TrimSpace(m[2]) != "" {
				return strings.TrimSpace(m[1] + " " + m[2])
			}
			return strings.TrimSpace(m[1])
		}
	}

	if allCapsHeading.MatchString(firstLine) && len(strings.Fields(firstLine)) <= 8 {
		return firstLine
	}
	return ""
}

// shouldMerge decides whether a headingless block continues the previous
// candidate.
func shouldMerge(text string, previous *ClauseCandidate) bool {
	if extractHeading(text) != "" {
		return false
	}
	if len(strings.Fields(previous.Text)) < 20 {
		return true
	}
	fields := strings.Fields(text)
	if len(fields) > 0 {
		first := []rune(fields[0])
		if len(first) > 0 && first[0] >= 'a' && first[0] <= 'z' {
			return true
		}
	}
	return false
}

func blockConfidence(block Block) float64 {
	if block.Confidence > 0 {
		return block.Confidence
	}
	return 0.8
}

// clauseConfidence scores a candidate on length, legal vocabulary, and
// sentence structure.
func clauseConfidence(text string) float64 {
	confidence := 0.5

	wordCount := len(strings.Fields(text))
	if wordCount >= 20 && wordCount <= 500 {
		confidence += 0.2
	} else if wordCount < 10 {
		confidence -= 0.3
	}

	lower := strings.ToLower(text)
	keywordMatches := 0
	for _, keyword := range legalKeywords {
		if strings.Contains(lower, keyword) {
			keywordMatches++
		}
	}
	if keywordMatches > 0 {
		bonus := float64(keywordMatches) * 0.1
		if bonus > 0.3 {
			bonus = 0.3
		}
		confidence += bonus
	}

	sentences := 0
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences >= 2 {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.1 {
		confidence = 0.1
	}
	return confidence
}

// validateAndMerge folds sub-threshold candidates into their successor,
// normalizes text, and assigns contiguous 1-based order.
func (s *Segmenter) validateAndMerge(candidates []ClauseCandidate) []ClauseCandidate {
	if len(candidates) == 0 {
		return nil
	}

	var validated []ClauseCandidate
	for i := 0; i < len(candidates); i++ {
		clause := candidates[i]
		if len(strings.Fields(clause.Text)) < 5 && clause.Confidence < 0.8 {
			if i < len(candidates)-1 {
				candidates[i+1].Text = clause.Text + "\n" + candidates[i+1].Text
				candidates[i+1].StartPosition = clause.StartPosition
			}
			continue
		}

		clause.Text = cleanClauseText(clause.Text)
		clause.Order = len(validated) + 1
		validated = append(validated, clause)
	}
	return validated
}

// cleanClauseText normalizes whitespace and strips page-break artifacts.
func cleanClauseText(text string) string {
	text = pageArtifact.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\f", "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "“", `"`)
	text = strings.ReplaceAll(text, "”", `"`)
	text = strings.ReplaceAll(text, "‘", "'")
	text = strings.ReplaceAll(text, "’", "'")
	return strings.TrimSpace(text)
}
