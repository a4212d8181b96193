package pipeline

import (
	"context"
	"math"
	"strings"
	"testing"

	"clauselens/web/types"

	"go.uber.org/zap"
)

func TestScoreByKeywords(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantCategory string
	}{
		{
			name:         "termination",
			text:         "Either party may terminate this agreement upon notice of termination delivered in writing.",
			wantCategory: types.CategoryTermination,
		},
		{
			name:         "liability_cap",
			text:         "The aggregate liability of either party shall not exceed the fees paid, and neither party is liable for consequential damages.",
			wantCategory: types.CategoryLiability,
		},
		{
			name:         "indemnity",
			text:         "Supplier shall indemnify, defend, and hold harmless the Customer from third party claims.",
			wantCategory: types.CategoryIndemnity,
		},
		{
			name:         "no_evidence",
			text:         "The parties met on Tuesday.",
			wantCategory: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, _, _ := scoreByKeywords(tt.text)
			if category != tt.wantCategory {
				t.Errorf("scoreByKeywords() category = %q, want %q", category, tt.wantCategory)
			}
		})
	}
}

// A category with one pattern and two strong hits outranks a category whose
// larger pattern set racked up more raw weight.
func TestScoreByKeywordsNormalization(t *testing.T) {
	text := "The supplier shall defend and reimburse the customer for damages and losses and liability."

	category, confidence, evidence := scoreByKeywords(text)
	if category != types.CategoryIndemnity {
		t.Fatalf("scoreByKeywords() category = %q, want %q", category, types.CategoryIndemnity)
	}
	if confidence < 0.2 {
		t.Errorf("confidence = %v, want >= 0.2", confidence)
	}
	if evidence < 1.5 {
		t.Errorf("evidence = %v, want >= 1.5", evidence)
	}
}

func TestClassifyOneWithoutEmbedder(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	classifier := NewClassifier(nil, logger)

	// Strong keyword evidence classifies directly.
	got := classifier.classifyOne(context.Background(),
		"Supplier shall indemnify and hold harmless the Customer from all claims.")
	if got != types.CategoryIndemnity {
		t.Errorf("classifyOne() = %q, want %q", got, types.CategoryIndemnity)
	}

	// A single weak hit falls below the evidence floor and lands in Other.
	got = classifier.classifyOne(context.Background(), "A notice describing the loss.")
	if got != types.CategoryOther {
		t.Errorf("classifyOne() = %q, want %q", got, types.CategoryOther)
	}
}

func TestClassifySemanticFallback(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	// Dispute-flavored texts embed along one axis, everything else along the
	// other, so only the dispute canonical sentences clear the threshold.
	embed := func(_ context.Context, texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i, text := range texts {
			lower := strings.ToLower(text)
			if strings.Contains(lower, "arbitration") ||
				strings.Contains(lower, "mediate") ||
				strings.Contains(lower, "neutral panel") {
				vecs[i] = []float32{1, 0}
			} else {
				vecs[i] = []float32{0, 1}
			}
		}
		return vecs, nil
	}
	classifier := NewClassifier(embed, logger)

	got := classifier.classifyOne(context.Background(),
		"The parties shall refer any quarrel to a neutral panel for a binding decision.")
	if got != types.CategoryDisputeResolution {
		t.Errorf("classifyOne() = %q, want %q", got, types.CategoryDisputeResolution)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite_clamped", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"length_mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero_norm", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
