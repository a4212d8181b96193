package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"clauselens/web/types"

	"go.uber.org/zap"
)

// riskKeyword is one weighted keyword pattern. Negative contexts are phrases
// that soften the hit (mutual indemnification, excluded damages, and so on).
type riskKeyword struct {
	re               *regexp.Regexp
	weight           float64
	negativeContexts []string
}

func rk(pattern string, weight float64, negative ...string) riskKeyword {
	return riskKeyword{
		re:               regexp.MustCompile(`(?i)\b(?:` + pattern + `)\b`),
		weight:           weight,
		negativeContexts: negative,
	}
}

var riskKeywords = []riskKeyword{
	rk(`indemnify|indemnification|indemnities`, 0.8, "mutual indemnification", "limited indemnification"),
	rk(`hold harmless`, 0.9),
	rk(`defend`, 0.7, "right to defend", "option to defend"),
	rk(`unlimited`, 0.95),
	rk(`without limit|no limit`, 0.9),
	rk(`consequential damages`, 0.8, "excluding consequential", "no consequential"),
	rk(`punitive damages`, 0.85, "excluding punitive", "no punitive"),
	rk(`automatic renewal|auto-renewal|automatically renew`, 0.7),
	rk(`perpetual|in perpetuity`, 0.9),
	rk(`rolling basis|successive periods`, 0.6),
	rk(`terminate without cause|terminate for convenience`, 0.8),
	rk(`immediate termination|terminate immediately`, 0.7),
	rk(`sole discretion`, 0.75),
	rk(`liquidated damages`, 0.8),
	rk(`penalty|penalties`, 0.75),
	rk(`late fees|interest on overdue`, 0.5),
	rk(`exclusive jurisdiction`, 0.7),
	rk(`waive|waiver`, 0.8),
	rk(`jury trial waiver|waive jury trial`, 0.85),
	rk(`assignment without consent|assign without consent`, 0.7),
	rk(`freely assign|assign freely`, 0.6),
	rk(`work for hire|work made for hire`, 0.8),
	rk(`all rights|exclusive rights`, 0.7),
	rk(`perpetual confidentiality|indefinite confidentiality`, 0.6),
	rk(`unilateral|unilaterally`, 0.75),
	rk(`at any time|without notice`, 0.65),
}

// Category multipliers bias the fused score toward categories where adverse
// terms hurt more.
var categoryMultipliers = map[string]float64{
	types.CategoryIndemnity:         1.20,
	types.CategoryLiability:         1.15,
	types.CategoryTermination:       1.10,
	types.CategoryAssignment:        1.10,
	types.CategoryDisputeResolution: 1.05,
	types.CategoryIPOwnership:       1.05,
	types.CategoryGoverningLaw:      0.90,
	types.CategoryModification:      0.95,
	types.CategoryOther:             0.90,
}

var llmRiskScores = map[string]float64{
	types.RiskLow:       0.2,
	types.RiskModerate:  0.5,
	types.RiskAttention: 0.8,
}

const (
	riskThresholdModerate  = 0.3
	riskThresholdAttention = 0.6
	riskThresholdReview    = 0.8
)

// RiskAssessment is the fused risk verdict for one clause.
type RiskAssessment struct {
	Level            string
	Score            float64
	NeedsReview      bool
	Confidence       float64
	DetectedKeywords []string
	RiskFactors      []string
}

// RiskAnalyzer fuses deterministic keyword scores with the model's risk label.
type RiskAnalyzer struct {
	logger *zap.Logger
}

func NewRiskAnalyzer(logger *zap.Logger) *RiskAnalyzer {
	return &RiskAnalyzer{logger: logger}
}

// Assess computes the fused risk for a clause given its category and the
// model-assigned risk level. Keyword evidence, when present, dominates the
// fusion; otherwise the model's judgment does.
func (r *RiskAnalyzer) Assess(text, category, llmLevel string) RiskAssessment {
	keywordScore, keywords, factors := scoreKeywords(text)

	llmScore, ok := llmRiskScores[llmLevel]
	if !ok {
		llmScore = llmRiskScores[types.RiskModerate]
	}

	var fused float64
	if len(keywords) > 0 {
		fused = 0.7*keywordScore + 0.3*llmScore
	} else {
		fused = 0.3*keywordScore + 0.7*llmScore
	}

	if mult, ok := categoryMultipliers[category]; ok {
		fused *= mult
	}
	fused = math.Min(1.0, math.Max(0.0, fused))

	level := types.RiskLow
	switch {
	case fused >= riskThresholdAttention:
		level = types.RiskAttention
	case fused >= riskThresholdModerate:
		level = types.RiskModerate
	}

	needsReview := fused >= riskThresholdReview ||
		len(keywords) >= 3 ||
		math.Abs(keywordScore-llmScore) > 0.4

	confidence := 0.6
	if len(keywords) > 0 {
		confidence += 0.2
	}
	if levelFromScore(keywordScore) == llmLevel {
		confidence += 0.2
	}

	return RiskAssessment{
		Level:            level,
		Score:            fused,
		NeedsReview:      needsReview,
		Confidence:       confidence,
		DetectedKeywords: keywords,
		RiskFactors:      factors,
	}
}

func levelFromScore(score float64) string {
	switch {
	case score >= riskThresholdAttention:
		return types.RiskAttention
	case score >= riskThresholdModerate:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

// scoreKeywords sums catalog hit weights, halving hits whose surrounding text
// contains a softening phrase. The aggregate is the mean weight capped at 1.
func scoreKeywords(text string) (score float64, keywords, factors []string) {
	lower := strings.ToLower(text)
	var total float64
	hits := 0

	for _, kw := range riskKeywords {
		matches := kw.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}

		weight := kw.weight
		mitigated := false
		for _, neg := range kw.negativeContexts {
			if strings.Contains(lower, neg) {
				weight /= 2
				mitigated = true
				break
			}
		}

		for _, m := range matches {
			total += weight
			hits++
			keywords = append(keywords, strings.ToLower(m))
			if mitigated {
				factors = append(factors, fmt.Sprintf("Mitigated: %s", strings.ToLower(m)))
			} else {
				factors = append(factors, fmt.Sprintf("High-risk keyword: %s", strings.ToLower(m)))
			}
		}
	}

	if hits == 0 {
		return 0, nil, nil
	}
	return math.Min(1.0, total/float64(hits)), dedupe(keywords), factors
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// BuildRiskProfile aggregates clause-level risk into the document profile.
func (r *RiskAnalyzer) BuildRiskProfile(clauses []types.Clause) *types.RiskProfile {
	distribution := map[string]int{
		types.RiskLow:       0,
		types.RiskModerate:  0,
		types.RiskAttention: 0,
	}
	type scoredFactor struct {
		factor string
		score  float64
	}
	var factors []scoredFactor

	for _, c := range clauses {
		distribution[c.RiskLevel]++
		for _, f := range c.RiskFactors {
			factors = append(factors, scoredFactor{factor: f, score: c.RiskScore})
		}
	}

	total := len(clauses)
	overall := types.RiskLow
	if total > 0 {
		attentionRatio := float64(distribution[types.RiskAttention]) / float64(total)
		moderateRatio := float64(distribution[types.RiskModerate]) / float64(total)
		switch {
		case attentionRatio >= 0.3:
			overall = types.RiskAttention
		case attentionRatio >= 0.1 || moderateRatio >= 0.5:
			overall = types.RiskModerate
		}
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].score > factors[j].score
	})
	var top []string
	seen := make(map[string]struct{})
	for _, f := range factors {
		if _, ok := seen[f.factor]; ok {
			continue
		}
		seen[f.factor] = struct{}{}
		top = append(top, f.factor)
		if len(top) == 5 {
			break
		}
	}

	return &types.RiskProfile{
		OverallLevel:   overall,
		Distribution:   distribution,
		TopRiskFactors: top,
	}
}
