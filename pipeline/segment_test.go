package pipeline

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestExtractHeading(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"numbered", "1. Termination for Cause", "1. Termination for Cause"},
		{"nested_numbered", "2.1 Payment Terms", "2.1 Payment Terms"},
		{"roman", "IV. Confidentiality", "IV. Confidentiality"},
		{"lettered", "(a) each party shall", "(a) each party shall"},
		{"article_keyword", "ARTICLE 5: Limitation of Liability", "ARTICLE 5 Limitation of Liability"},
		{"section_keyword", "Section 12.3 - Governing Law", "Section 12.3 Governing Law"},
		{"all_caps", "INDEMNIFICATION", "INDEMNIFICATION"},
		{"plain_sentence", "The parties agree as follows.", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractHeading(tt.text)
			if got != tt.want {
				t.Errorf("extractHeading(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSegmentByLines(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	segmenter := NewSegmenter(logger)

	text := strings.Join([]string{
		"1. Termination",
		"Either party may terminate this agreement upon thirty days written notice to the other party for any material breach that remains uncured.",
		"",
		"2. Limitation of Liability",
		"Neither party shall be liable for indirect, incidental, or consequential damages arising out of this agreement, even if advised of the possibility of such damages.",
		"",
		"3. Governing Law",
		"This agreement shall be governed by the laws of the State of Delaware without regard to conflict of law principles and venue shall lie in its courts.",
	}, "\n")

	doc := &DocumentData{Text: text, Method: MethodRaw}
	clauses := segmenter.Segment(doc)

	if len(clauses) != 3 {
		t.Fatalf("Segment() returned %d clauses, want 3", len(clauses))
	}
	for i, clause := range clauses {
		if clause.Order != i+1 {
			t.Errorf("clause %d order = %d, want %d", i, clause.Order, i+1)
		}
	}
	if clauses[0].Heading != "1. Termination" {
		t.Errorf("first heading = %q", clauses[0].Heading)
	}
	if !strings.Contains(clauses[1].Text, "consequential damages") {
		t.Errorf("second clause text = %q", clauses[1].Text)
	}
}

func TestSegmentMergesShortFragments(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	segmenter := NewSegmenter(logger)

	text := strings.Join([]string{
		"1. Notices",
		"See below.",
		"",
		"2. Payment",
		"All invoices issued under this agreement are payable within thirty days of receipt and late payment accrues interest at the maximum lawful rate until paid in full.",
	}, "\n")

	doc := &DocumentData{Text: text, Method: MethodRaw}
	clauses := segmenter.Segment(doc)

	// The three-word first clause fails validation and folds into the next.
	if len(clauses) != 1 {
		t.Fatalf("Segment() returned %d clauses, want 1", len(clauses))
	}
	if !strings.Contains(clauses[0].Text, "Notices") {
		t.Errorf("merged clause lost fragment text: %q", clauses[0].Text)
	}
}

func TestClauseConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{
			name: "short_fragment_penalized",
			text: "See below.",
			min:  0.1,
			max:  0.35,
		},
		{
			name: "legal_text_boosted",
			text: "Either party may pursue termination of this agreement for material breach, and liability for damages shall be limited as set out herein. Notice must be provided in writing.",
			min:  0.85,
			max:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clauseConfidence(tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("clauseConfidence() = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestCleanClauseText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace_collapse", "too   many\n\nspaces", "too many spaces"},
		{"page_artifact", "before Page 3 of 12\nafter", "before after"},
		{"curly_quotes", "the “Effective Date” and the party’s rights", `the "Effective Date" and the party's rights`},
		{"form_feed", "start\fend", "startend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanClauseText(tt.in)
			if got != tt.want {
				t.Errorf("cleanClauseText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShouldMerge(t *testing.T) {
	long := ClauseCandidate{Text: strings.Repeat("word ", 30)}
	short := ClauseCandidate{Text: "Short intro"}

	if !shouldMerge("continues the previous sentence", &long) {
		t.Error("lowercase continuation should merge")
	}
	if shouldMerge("New obligations commence on delivery", &long) {
		t.Error("capitalized start after long clause should not merge")
	}
	if !shouldMerge("Anything at all", &short) {
		t.Error("anything should merge into a sub-20-word clause")
	}
	if shouldMerge("3. Termination rights", &long) {
		t.Error("heading must never merge")
	}
}
