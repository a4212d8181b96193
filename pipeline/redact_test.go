package pipeline

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRedactMasksDetectedPII(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	redactor := NewRedactor(nil, logger)

	text := "contact: jane.roe@example.com, taxpayer id 123-45-6789, office (415) 555-0134."
	result, err := redactor.Redact(context.Background(), text)
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}

	if strings.Contains(result.MaskedText, "jane.roe@example.com") {
		t.Errorf("masked text still contains email: %q", result.MaskedText)
	}
	if strings.Contains(result.MaskedText, "123-45-6789") {
		t.Errorf("masked text still contains SSN: %q", result.MaskedText)
	}
	if strings.Contains(result.MaskedText, "(415) 555-0134") {
		t.Errorf("masked text still contains phone: %q", result.MaskedText)
	}

	wantSummary := map[string]int{PIIEmail: 1, PIISSN: 1, PIIPhone: 1}
	for piiType, want := range wantSummary {
		if result.Summary[piiType] != want {
			t.Errorf("summary[%s] = %d, want %d", piiType, result.Summary[piiType], want)
		}
	}

	for _, m := range result.Matches {
		if m.ReplacementToken == "" {
			t.Errorf("match %s has no replacement token", m.PIIType)
		}
		if !strings.Contains(result.MaskedText, m.ReplacementToken) {
			t.Errorf("masked text missing token %q", m.ReplacementToken)
		}
	}
}

func TestRedactEmptyText(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	redactor := NewRedactor(nil, logger)

	result, err := redactor.Redact(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if len(result.Matches) != 0 || len(result.Summary) != 0 {
		t.Errorf("Redact() on blank text = %+v, want no matches", result)
	}
}

func TestUnmaskRoundTrip(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	redactor := NewRedactor(nil, logger)

	text := "reach me at sam.vendor@corp.io or 415-555-0134 before close."
	result, err := redactor.Redact(context.Background(), text)
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if result.MaskedText == text {
		t.Fatal("expected masking to change the text")
	}

	if got := Unmask(result.MaskedText, result.Matches); got != text {
		t.Errorf("Unmask() = %q, want %q", got, text)
	}
}

func TestRemoveOverlapsKeepsHigherConfidence(t *testing.T) {
	matches := []PIIMatch{
		{PIIType: PIIPhone, StartPosition: 10, EndPosition: 22, Confidence: 0.7},
		{PIIType: PIISSN, StartPosition: 15, EndPosition: 26, Confidence: 0.8},
		{PIIType: PIIEmail, StartPosition: 40, EndPosition: 60, Confidence: 0.9},
	}

	filtered := removeOverlaps(matches)
	if len(filtered) != 2 {
		t.Fatalf("removeOverlaps() = %d matches, want 2", len(filtered))
	}
	if filtered[0].PIIType != PIISSN {
		t.Errorf("overlap winner = %s, want %s", filtered[0].PIIType, PIISSN)
	}
	if filtered[1].PIIType != PIIEmail {
		t.Errorf("non-overlapping match dropped, got %s", filtered[1].PIIType)
	}
}

func TestDetectWithPatternsNameConfidence(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	redactor := NewRedactor(nil, logger)

	matches := redactor.detectWithPatterns("signed by Jonathan Smithfield on behalf of the buyer")
	if len(matches) != 1 {
		t.Fatalf("detectWithPatterns() = %d matches, want 1", len(matches))
	}
	if matches[0].PIIType != PIIPersonName {
		t.Errorf("type = %s, want %s", matches[0].PIIType, PIIPersonName)
	}
	// Long capitalized pairs get the confidence boost.
	if matches[0].Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", matches[0].Confidence)
	}
}

func TestApplyMaskingPreservesSurroundingText(t *testing.T) {
	text := "AAA 123-45-6789 BBB 987-65-4321 CCC"
	matches := []PIIMatch{
		{PIIType: PIISSN, StartPosition: 4, EndPosition: 15, ReplacementToken: "[SSN_1]"},
		{PIIType: PIISSN, StartPosition: 20, EndPosition: 31, ReplacementToken: "[SSN_2]"},
	}

	got := applyMasking(text, matches)
	want := "AAA [SSN_1] BBB [SSN_2] CCC"
	if got != want {
		t.Errorf("applyMasking() = %q, want %q", got, want)
	}
}
