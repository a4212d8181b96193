package pipeline

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"

	"clauselens/web/types"

	"go.uber.org/zap"
)

// EmbedFunc produces one embedding vector per input text.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

type categoryPattern struct {
	category string
	re       *regexp.Regexp
	weight   float64
}

var categoryPatterns = []categoryPattern{
	{types.CategoryTermination, regexp.MustCompile(`(?i)terminat\w*|end\s+this\s+agreement|expir\w*|cancel\w*`), 1.0},
	{types.CategoryTermination, regexp.MustCompile(`(?i)notice\s+of\s+termination|upon\s+termination`), 1.2},
	{types.CategoryLiability, regexp.MustCompile(`(?i)liabilit\w*|liable|damages|responsible\s+for|loss\w*`), 1.0},
	{types.CategoryLiability, regexp.MustCompile(`(?i)limitation\s+of\s+liability|aggregate\s+liability`), 1.3},
	{types.CategoryIndemnity, regexp.MustCompile(`(?i)indemnif\w*|hold\s+harmless|defend|reimburse`), 1.2},
	{types.CategoryConfidentiality, regexp.MustCompile(`(?i)confidential\w*|non.?disclosure|proprietary|trade\s+secret`), 1.1},
	{types.CategoryPayment, regexp.MustCompile(`(?i)payment|fee\w*|invoice|billing|price|amounts?\s+due`), 1.0},
	{types.CategoryPayment, regexp.MustCompile(`(?i)net\s+\d+|payable\s+within`), 1.3},
	{types.CategoryIPOwnership, regexp.MustCompile(`(?i)intellectual\s+property|copyright|trademark|patent|ip\s+rights`), 1.1},
	{types.CategoryIPOwnership, regexp.MustCompile(`(?i)work\s+(?:made\s+)?for\s+hire|ownership\s+of`), 1.2},
	{types.CategoryDisputeResolution, regexp.MustCompile(`(?i)dispute|arbitration|mediation|litigation`), 1.1},
	{types.CategoryGoverningLaw, regexp.MustCompile(`(?i)governing\s+law|applicable\s+law|construed\s+in\s+accordance`), 1.2},
	{types.CategoryGoverningLaw, regexp.MustCompile(`(?i)jurisdiction|venue`), 0.8},
	{types.CategoryAssignment, regexp.MustCompile(`(?i)assign\w*|transfer\s+of\s+rights|delegate`), 1.0},
	{types.CategoryModification, regexp.MustCompile(`(?i)modif\w*|amend\w*|alter\w*`), 1.0},
	{types.CategoryWarranties, regexp.MustCompile(`(?i)warrant\w*|representations?|guarantee\w*|as.is`), 1.0},
	{types.CategoryForceMajeure, regexp.MustCompile(`(?i)force\s+majeure|acts?\s+of\s+god|beyond\s+(?:its|their|the\s+party's|reasonable)\s+control`), 1.3},
	{types.CategoryDefinitions, regexp.MustCompile(`(?i)shall\s+mean|means\s+and\s+includes|as\s+defined|definitions`), 1.0},
}

// Canonical sentences for the semantic fallback. Short clauses that match no
// keyword pattern are compared against these by embedding similarity.
var canonicalSentences = map[string][]string{
	types.CategoryTermination: {
		"Either party may terminate this agreement with written notice.",
		"This agreement expires at the end of the initial term.",
		"Breach of this agreement permits immediate cancellation.",
	},
	types.CategoryLiability: {
		"Neither party shall be liable for indirect or consequential damages.",
		"Total liability is capped at the fees paid in the prior twelve months.",
		"Each party is responsible for losses caused by its negligence.",
	},
	types.CategoryIndemnity: {
		"The supplier shall indemnify and hold harmless the customer.",
		"Each party agrees to defend the other against third party claims.",
	},
	types.CategoryConfidentiality: {
		"Each party shall keep the other's confidential information secret.",
		"Proprietary information may not be disclosed to third parties.",
	},
	types.CategoryPayment: {
		"Invoices are payable within thirty days of receipt.",
		"Fees are due annually in advance.",
	},
	types.CategoryIPOwnership: {
		"All intellectual property rights remain with the licensor.",
		"Work product created under this agreement is a work made for hire.",
	},
	types.CategoryDisputeResolution: {
		"Disputes shall be resolved by binding arbitration.",
		"The parties agree to mediate before commencing litigation.",
	},
	types.CategoryGoverningLaw: {
		"This agreement is governed by the laws of the State of Delaware.",
		"The courts of England have exclusive jurisdiction.",
	},
	types.CategoryAssignment: {
		"Neither party may assign this agreement without prior written consent.",
		"Rights under this agreement may be transferred to an affiliate.",
	},
	types.CategoryModification: {
		"This agreement may only be amended in a writing signed by both parties.",
		"No modification is effective unless documented.",
	},
	types.CategoryWarranties: {
		"The seller warrants that the goods conform to the specifications.",
		"The services are provided as is without warranty of any kind.",
	},
	types.CategoryForceMajeure: {
		"Neither party is liable for delay caused by events beyond its reasonable control.",
		"Performance is excused during acts of god, war, or natural disaster.",
	},
	types.CategoryDefinitions: {
		"Confidential Information means any non-public information disclosed by a party.",
		"Capitalized terms have the meanings set out in this section.",
	},
}

const (
	classifyMinConfidence = 0.2
	classifyMinEvidence   = 1.5
	semanticThreshold     = 0.7
)

// Classifier assigns each clause a category from the closed enum. Keyword
// evidence decides first; clauses with weak evidence fall back to embedding
// similarity against canonical sentences; everything else is Other.
type Classifier struct {
	embed  EmbedFunc
	logger *zap.Logger

	semanticOnce sync.Once
	semanticVecs map[string][][]float32
	semanticErr  error
}

func NewClassifier(embed EmbedFunc, logger *zap.Logger) *Classifier {
	return &Classifier{embed: embed, logger: logger}
}

// Classify sets the Category of every candidate in place.
func (c *Classifier) Classify(ctx context.Context, candidates []ClauseCandidate) {
	for i := range candidates {
		candidates[i].Category = c.classifyOne(ctx, candidates[i].Text)
	}
}

func (c *Classifier) classifyOne(ctx context.Context, text string) string {
	category, confidence, evidence := scoreByKeywords(text)
	if category != "" && confidence >= classifyMinConfidence && evidence >= classifyMinEvidence {
		return category
	}

	if c.embed != nil {
		if semantic := c.classifySemantic(ctx, text); semantic != "" {
			return semantic
		}
	}
	return types.CategoryOther
}

// scoreByKeywords accumulates pattern hit weights per category, scaled up for
// longer clauses where a single hit is weaker evidence. Ranking uses scores
// normalized by each category's pattern count and hit count, so categories
// with many patterns cannot win on volume alone; the evidence floor is still
// checked against the raw weighted sum.
func scoreByKeywords(text string) (category string, confidence, evidence float64) {
	words := len(strings.Fields(text))
	lengthFactor := 1.0 + math.Max(0, float64(words-50)/200.0)
	if lengthFactor > 1.5 {
		lengthFactor = 1.5
	}

	raw := make(map[string]float64)
	hits := make(map[string]int)
	patterns := make(map[string]int)
	for _, p := range categoryPatterns {
		patterns[p.category]++
		n := len(p.re.FindAllString(text, -1))
		if n > 0 {
			raw[p.category] += float64(n) * p.weight * lengthFactor
			hits[p.category] += n
		}
	}
	if len(raw) == 0 {
		return "", 0, 0
	}

	var top, second float64
	for cat, score := range raw {
		normalized := score / float64(patterns[cat]*hits[cat])
		if normalized > top {
			second = top
			top = normalized
			category = cat
		} else if normalized > second {
			second = normalized
		}
	}

	confidence = 1.0
	if top > 0 && second > 0 {
		confidence = (top - second) / top
	}
	return category, confidence, raw[category]
}

// classifySemantic compares the clause embedding against canonical category
// sentences; the best category above the similarity threshold wins.
func (c *Classifier) classifySemantic(ctx context.Context, text string) string {
	c.semanticOnce.Do(func() { c.embedCanonical(ctx) })
	if c.semanticErr != nil || len(c.semanticVecs) == 0 {
		return ""
	}

	vecs, err := c.embed(ctx, []string{text})
	if err != nil || len(vecs) == 0 {
		c.logger.Debug("Semantic classification skipped", zap.Error(err))
		return ""
	}
	clauseVec := vecs[0]

	bestCategory := ""
	bestScore := semanticThreshold
	for cat, refs := range c.semanticVecs {
		for _, ref := range refs {
			if sim := cosineSimilarity(clauseVec, ref); sim >= bestScore {
				bestScore = sim
				bestCategory = cat
			}
		}
	}
	return bestCategory
}

func (c *Classifier) embedCanonical(ctx context.Context) {
	var order []string
	var texts []string
	for cat, sentences := range canonicalSentences {
		for _, s := range sentences {
			order = append(order, cat)
			texts = append(texts, s)
		}
	}

	vecs, err := c.embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		c.semanticErr = err
		c.logger.Warn("Failed to embed canonical category sentences", zap.Error(err))
		return
	}

	c.semanticVecs = make(map[string][][]float32)
	for i, cat := range order {
		c.semanticVecs[cat] = append(c.semanticVecs[cat], vecs[i])
	}
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// clamped to [0, 1]. Zero-norm inputs score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
