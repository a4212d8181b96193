package pipeline

import (
	"testing"

	"go.uber.org/zap"
)

func TestCountSyllables(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"notice", 2},
		{"table", 2},
		{"agreement", 3},
		{"indemnification", 6},
		{"strength", 1},
		{"hmm", 1},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			if got := countSyllables(tt.word); got != tt.want {
				t.Errorf("countSyllables(%q) = %d, want %d", tt.word, got, tt.want)
			}
		})
	}
}

func TestScoreSimpleText(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	analyzer := NewReadabilityAnalyzer(logger)

	grade, flesch := analyzer.score("The cat sat.")
	if grade != 0 {
		t.Errorf("grade = %v, want 0 (clamped)", grade)
	}
	if flesch < 100 {
		t.Errorf("flesch = %v, want very easy (>100)", flesch)
	}

	grade, flesch = analyzer.score("")
	if grade != 0 || flesch != 0 {
		t.Errorf("score(\"\") = (%v, %v), want (0, 0)", grade, flesch)
	}
}

func TestCompareDeltaSign(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	analyzer := NewReadabilityAnalyzer(logger)

	original := "Notwithstanding anything contained herein to the contrary, the indemnifying party shall unconditionally indemnify, defend, and hold harmless the indemnified party from and against any and all liabilities, obligations, losses, damages, penalties, claims, actions, judgments, suits, costs, expenses, and disbursements of whatsoever kind and nature."
	summary := "One side must pay the other side's costs if a claim is made. This applies to all kinds of claims."

	metrics := analyzer.Compare(original, summary)
	if metrics.Delta <= 0 {
		t.Errorf("Delta = %v, want positive when the summary reads easier", metrics.Delta)
	}
	if metrics.OriginalGrade <= metrics.SummaryGrade {
		t.Errorf("grades = (%v, %v), want original harder than summary",
			metrics.OriginalGrade, metrics.SummaryGrade)
	}
}

func TestBaselinePopulatesOriginalOnly(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	analyzer := NewReadabilityAnalyzer(logger)

	metrics := analyzer.Baseline("The supplier delivers the goods. The buyer pays the invoice within thirty days.")
	if metrics.OriginalGrade < 0 {
		t.Errorf("OriginalGrade = %v, want >= 0", metrics.OriginalGrade)
	}
	if metrics.SummaryGrade != 0 || metrics.Delta != 0 {
		t.Errorf("Baseline() set comparison fields: %+v", metrics)
	}
}
