package language

import (
	"regexp"
	"strings"
)

// Detection methods, recorded so callers can tell a confident script match
// from a stopword guess or the configured default.
const (
	MethodPatternBased = "pattern_based"
	MethodStopwords    = "stopword_scoring"
	MethodDefault      = "default"
	MethodUserOverride = "user_override"
)

// Result is one language detection outcome.
type Result struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Script ranges identify non-Latin languages with near certainty.
var scriptPatterns = []struct {
	language string
	re       *regexp.Regexp
}{
	{"hi", regexp.MustCompile(`[\x{0900}-\x{097F}]`)},
	{"bn", regexp.MustCompile(`[\x{0980}-\x{09FF}]`)},
	{"pa", regexp.MustCompile(`[\x{0A00}-\x{0A7F}]`)},
	{"gu", regexp.MustCompile(`[\x{0A80}-\x{0AFF}]`)},
	{"ta", regexp.MustCompile(`[\x{0B80}-\x{0BFF}]`)},
	{"te", regexp.MustCompile(`[\x{0C00}-\x{0C7F}]`)},
	{"kn", regexp.MustCompile(`[\x{0C80}-\x{0CFF}]`)},
	{"ml", regexp.MustCompile(`[\x{0D00}-\x{0D7F}]`)},
	{"ar", regexp.MustCompile(`[\x{0600}-\x{06FF}]`)},
}

// Latin-script languages are scored by stopword frequency.
var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "is", "that", "for", "shall", "with", "this", "agreement"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "del", "las", "por", "con", "para"},
	"fr": {"le", "la", "de", "et", "les", "des", "en", "un", "une", "du", "que", "pour"},
	"de": {"der", "die", "und", "das", "von", "den", "mit", "ist", "für", "auf", "dem", "nicht"},
	"pt": {"o", "a", "de", "que", "e", "do", "da", "em", "um", "para", "com", "não"},
	"it": {"il", "di", "che", "la", "e", "per", "un", "del", "della", "con", "sono", "non"},
}

// Detect identifies the language of text. Script patterns win outright; Latin
// text falls through to stopword scoring, and empty or inconclusive input
// returns the supplied default.
func Detect(text, defaultLanguage string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Language: defaultLanguage, Confidence: 0.0, Method: MethodDefault}
	}

	for _, sp := range scriptPatterns {
		matches := sp.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		// Require the script to make up a meaningful share of the text
		ratio := float64(len(matches)) / float64(len([]rune(text)))
		if ratio >= 0.1 {
			confidence := 0.7 + 0.3*ratio
			if confidence > 0.99 {
				confidence = 0.99
			}
			return Result{Language: sp.language, Confidence: confidence, Method: MethodPatternBased}
		}
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Result{Language: defaultLanguage, Confidence: 0.0, Method: MethodDefault}
	}
	wordSet := make(map[string]int, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,;:!?()\"'")]++
	}

	bestLang := ""
	bestHits := 0
	for lang, stops := range stopwords {
		hits := 0
		for _, s := range stops {
			hits += wordSet[s]
		}
		if hits > bestHits {
			bestHits = hits
			bestLang = lang
		}
	}

	if bestLang == "" || bestHits == 0 {
		return Result{Language: defaultLanguage, Confidence: 0.3, Method: MethodDefault}
	}

	confidence := float64(bestHits) / float64(len(words)) * 4
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0.3 {
		confidence = 0.3
	}
	return Result{Language: bestLang, Confidence: confidence, Method: MethodStopwords}
}
