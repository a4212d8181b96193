package pipeline

import (
	"strings"
	"unicode"

	"clauselens/web/types"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// ReadabilityAnalyzer computes Flesch-Kincaid grade level and Flesch reading
// ease for document baselines and per-clause comparisons.
type ReadabilityAnalyzer struct {
	logger *zap.Logger
}

func NewReadabilityAnalyzer(logger *zap.Logger) *ReadabilityAnalyzer {
	return &ReadabilityAnalyzer{logger: logger}
}

// Baseline scores the full document text.
func (a *ReadabilityAnalyzer) Baseline(text string) types.ReadabilityMetrics {
	grade, flesch := a.score(text)
	return types.ReadabilityMetrics{
		OriginalGrade: grade,
		FleschScore:   flesch,
	}
}

// Compare scores a clause against its summary. Delta is original minus
// summary grade; positive means the summary is easier to read.
func (a *ReadabilityAnalyzer) Compare(original, summary string) types.ReadabilityMetrics {
	originalGrade, flesch := a.score(original)
	summaryGrade, _ := a.score(summary)
	return types.ReadabilityMetrics{
		OriginalGrade: originalGrade,
		SummaryGrade:  summaryGrade,
		Delta:         originalGrade - summaryGrade,
		FleschScore:   flesch,
	}
}

// score returns (Flesch-Kincaid grade, Flesch reading ease) for text.
func (a *ReadabilityAnalyzer) score(text string) (float64, float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0
	}

	sentences := a.countSentences(text)
	if sentences == 0 {
		sentences = 1
	}

	words := strings.Fields(text)
	wordCount := 0
	syllables := 0
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w == "" {
			continue
		}
		wordCount++
		syllables += countSyllables(w)
	}
	if wordCount == 0 {
		return 0, 0
	}

	wordsPerSentence := float64(wordCount) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(wordCount)

	grade := 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59
	if grade < 0 {
		grade = 0
	}
	flesch := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord

	return grade, flesch
}

// countSentences uses the NLP tokenizer, falling back to terminal punctuation
// when the parse fails.
func (a *ReadabilityAnalyzer) countSentences(text string) int {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err == nil {
		if n := len(doc.Sentences()); n > 0 {
			return n
		}
	} else {
		a.logger.Debug("Sentence tokenization failed", zap.Error(err))
	}

	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	if count == 0 {
		count = 1
	}
	return count
}

// countSyllables estimates syllables by counting vowel groups, discounting a
// trailing silent e.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
