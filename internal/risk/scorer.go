// Package risk scores legal clauses by fusing a keyword heuristic with an
// externally supplied risk label. The keyword side is deterministic and always
// available; the external label (typically from the summarization backend) is
// optional and may disagree, in which case the clause is flagged for review.
package risk

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/pkg/utils"
)

// Risk level thresholds on the fused score.
const (
	thresholdModerate  = 0.6
	thresholdAttention = 0.8
)

// Assessment is the scored risk verdict for a single clause.
type Assessment struct {
	Level            models.RiskLevel `json:"risk_level"`
	Score            float64          `json:"risk_score"`
	Confidence       float64          `json:"confidence"`
	KeywordScore     float64          `json:"keyword_score"`
	ExternalScore    float64          `json:"external_score"`
	ExternalLabel    string           `json:"external_label,omitempty"`
	DetectedKeywords []string         `json:"detected_keywords,omitempty"`
	RiskFactors      []string         `json:"risk_factors,omitempty"`
	NeedsReview      bool             `json:"needs_review"`
	Explanation      string           `json:"explanation"`
}

// Profile is the document-level risk rollup across clause assessments.
type Profile struct {
	OverallLevel models.RiskLevel         `json:"overall_risk_level"`
	TotalClauses int                      `json:"total_clauses"`
	Distribution map[models.RiskLevel]int `json:"risk_distribution"`
	AverageScore float64                  `json:"average_risk_score"`
}

// Scorer performs hybrid keyword + external-label risk analysis.
type Scorer struct {
	logger *zap.Logger
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger used by the scorer.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// NewScorer creates a clause risk scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score assesses one clause. clauseText is the clause body, summary the
// generated summary (may be empty), externalLabel the backend's risk label
// ("", "low", "moderate", "attention", ...), and category the clause category.
func (s *Scorer) Score(clauseText, summary, externalLabel, category string) Assessment {
	analysisText := clauseText
	if summary != "" {
		analysisText += "\n" + summary
	}

	keywordScore, detected, factors := analyzeKeywords(analysisText)
	externalScore, hasExternal := parseExternalLabel(externalLabel)

	var fused float64
	switch {
	case !hasExternal:
		fused = keywordScore
	case len(detected) > 0:
		fused = keywordScore*0.7 + externalScore*0.3
	default:
		fused = keywordScore*0.3 + externalScore*0.7
	}
	if m, ok := categoryMultipliers[category]; ok {
		fused *= m
	}
	fused = utils.Clamp(fused, 0, 1)

	level := LevelForScore(fused)
	needsReview := false
	if hasExternal && math.Abs(keywordScore-externalScore) > 0.4 {
		needsReview = true
	}
	if fused >= thresholdAttention {
		needsReview = true
	}
	if len(detected) >= 3 {
		needsReview = true
	}

	confidence := 0.6
	if len(detected) > 0 {
		confidence += 0.2
	}
	if hasExternal {
		agreement := 1.0 - math.Abs(keywordScore-externalScore)
		confidence += agreement * 0.2
	}
	confidence = utils.Clamp(confidence, 0, 1)

	assessment := Assessment{
		Level:            level,
		Score:            fused,
		Confidence:       confidence,
		KeywordScore:     keywordScore,
		ExternalScore:    externalScore,
		ExternalLabel:    externalLabel,
		DetectedKeywords: detected,
		RiskFactors:      factors,
		NeedsReview:      needsReview,
	}
	assessment.Explanation = explain(assessment)

	s.logger.Debug("scored clause risk",
		zap.String("category", category),
		zap.String("level", string(level)),
		zap.Float64("score", fused),
		zap.Int("keywords", len(detected)),
		zap.Bool("needs_review", needsReview))

	return assessment
}

// Rollup aggregates clause assessments into a document risk profile. The
// overall level is driven by the share of attention clauses: 30% or more
// makes the document itself an attention document, 10% or more a moderate one.
func (s *Scorer) Rollup(assessments []Assessment) Profile {
	profile := Profile{
		OverallLevel: models.RiskLow,
		TotalClauses: len(assessments),
		Distribution: map[models.RiskLevel]int{
			models.RiskLow:       0,
			models.RiskModerate:  0,
			models.RiskAttention: 0,
		},
	}
	if len(assessments) == 0 {
		return profile
	}

	var total float64
	for _, a := range assessments {
		profile.Distribution[a.Level]++
		total += a.Score
	}
	profile.AverageScore = total / float64(len(assessments))

	attentionRatio := float64(profile.Distribution[models.RiskAttention]) / float64(len(assessments))
	switch {
	case attentionRatio >= 0.3:
		profile.OverallLevel = models.RiskAttention
	case attentionRatio >= 0.1:
		profile.OverallLevel = models.RiskModerate
	}
	return profile
}

// LevelForScore maps a fused score in [0,1] to a risk level.
func LevelForScore(score float64) models.RiskLevel {
	switch {
	case score >= thresholdAttention:
		return models.RiskAttention
	case score >= thresholdModerate:
		return models.RiskModerate
	default:
		return models.RiskLow
	}
}

// analyzeKeywords scans the text against the risk catalog. Each matched rule
// contributes its (possibly mitigated) weight once; the sum is normalized by
// the number of match occurrences so a clause dense with one phrase does not
// dominate a clause touching several concerns.
func analyzeKeywords(text string) (score float64, detected []string, factors []string) {
	occurrences := 0
	seen := make(map[string]struct{})

	for _, r := range keywordRules {
		matches := r.pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		occurrences += len(matches)
		for _, m := range matches {
			lower := strings.ToLower(m)
			if _, ok := seen[lower]; !ok {
				seen[lower] = struct{}{}
				detected = append(detected, lower)
			}
		}

		weight := r.weight
		for _, mit := range r.mitigators {
			if loc := mit.FindStringIndex(text); loc != nil {
				weight *= 0.5
				factors = append(factors, "mitigated: "+mit.String())
				break
			}
		}
		score += weight
		factors = append(factors, "high-risk phrase: "+strings.ToLower(matches[0]))
	}

	if occurrences > 0 {
		score = math.Min(1.0, score/float64(occurrences))
	}
	sort.Strings(detected)
	return score, detected, factors
}

// externalLevels maps label substrings to scores. Order matters: the first
// substring found in the label wins.
var externalLevels = []struct {
	label string
	score float64
}{
	{"low", 0.2},
	{"moderate", 0.5},
	{"attention", 0.8},
	{"high", 0.8},
	{"critical", 0.9},
}

// parseExternalLabel normalizes an external risk label to a score. An empty
// label reports no external signal; a non-empty label that matches no known
// level defaults to 0.5.
func parseExternalLabel(label string) (float64, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(label))
	if trimmed == "" {
		return 0, false
	}
	for _, lvl := range externalLevels {
		if strings.Contains(trimmed, lvl.label) {
			return lvl.score, true
		}
	}
	return 0.5, true
}

func explain(a Assessment) string {
	var parts []string
	switch a.Level {
	case models.RiskAttention:
		parts = append(parts, "This clause contains potentially problematic terms.")
	case models.RiskModerate:
		parts = append(parts, "This clause contains terms that require attention.")
	default:
		parts = append(parts, "This clause appears to have minimal risk.")
	}
	if len(a.DetectedKeywords) > 0 {
		head := a.DetectedKeywords
		if len(head) > 3 {
			head = head[:3]
		}
		parts = append(parts, "Keywords: "+strings.Join(head, ", ")+".")
	}
	if a.NeedsReview {
		parts = append(parts, "Manual review recommended.")
	}
	return strings.Join(parts, " ")
}
