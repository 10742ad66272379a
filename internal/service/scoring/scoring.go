// Package scoring implements the pure governance scoring primitives: the
// per-decision ethics check, bias heuristic, risk classification,
// human-review triggers, and per-framework compliance flags. Nothing here
// performs I/O; the pipeline feeds inputs in and persists the results.
package scoring

import (
	"math"

	"github.com/kansa-ai/kansa/internal/config"
	"github.com/kansa-ai/kansa/internal/model"
)

// Ethics check flags.
const (
	FlagLowConfidence    = "low_confidence"
	FlagPotentialBias    = "potential_bias"
	FlagPrivacyConcern   = "privacy_concern"
	FlagLacksExplanation = "lacks_explanation"
)

// Bias categories.
const (
	CategoryDemographic   = "demographic"
	CategorySocioeconomic = "socioeconomic"
	CategoryGeographic    = "geographic"
	CategoryTemporal      = "temporal"
)

// ethicsPassThreshold is the minimum ethics score for a passing check.
const ethicsPassThreshold = 0.7

// explanationRequired lists input types whose decisions must carry reasoning.
var explanationRequired = map[string]bool{
	"tax_guidance":            true,
	"financial_insight":       true,
	"document_classification": true,
}

// Engine evaluates decisions against the configured governance policy.
// Detector strategies are pluggable; the zero-value detectors from
// NewEngine are the keyword heuristics.
type Engine struct {
	minConfidence float64
	triggers      config.ReviewTriggers
	frameworks    []string

	bias    BiasDetector
	privacy PrivacyDetector
	novelty NoveltyDetector
}

// NewEngine creates an Engine with the default detector strategies.
func NewEngine(cfg config.Config) *Engine {
	return &Engine{
		minConfidence: cfg.MinConfidence,
		triggers:      cfg.ReviewTriggers,
		frameworks:    cfg.ComplianceFrameworks,
		bias:          NewKeywordBiasDetector(),
		privacy:       NewKeywordPrivacyDetector(),
		novelty:       StaticNoveltyDetector{},
	}
}

// WithBiasDetector replaces the bias detector strategy.
func (e *Engine) WithBiasDetector(d BiasDetector) *Engine {
	if d != nil {
		e.bias = d
	}
	return e
}

// WithPrivacyDetector replaces the privacy detector strategy.
func (e *Engine) WithPrivacyDetector(d PrivacyDetector) *Engine {
	if d != nil {
		e.privacy = d
	}
	return e
}

// WithNoveltyDetector replaces the new-pattern detector strategy.
func (e *Engine) WithNoveltyDetector(d NoveltyDetector) *Engine {
	if d != nil {
		e.novelty = d
	}
	return e
}

// Evaluation is the full governance result for one decision input.
type Evaluation struct {
	Ethics              model.EthicsCheck
	Bias                model.BiasIndicators
	RiskScore           float64
	RiskLevel           model.RiskLevel
	HumanReviewRequired bool
	ComplianceFlags     []string
}

// Evaluate runs the scoring stages in pipeline order.
func (e *Engine) Evaluate(in model.DecisionInput) Evaluation {
	ethics := e.EthicsCheck(in)
	bias := e.BiasIndicators(in)
	riskScore := RiskScore(ethics, bias.Score, in.Confidence, in.HighBusinessImpact)
	level := LevelFor(riskScore)
	review := e.HumanReviewRequired(in, ethics, level)
	flags := e.ComplianceFlags(in, ethics, level, review)

	return Evaluation{
		Ethics:              ethics,
		Bias:                bias,
		RiskScore:           riskScore,
		RiskLevel:           level,
		HumanReviewRequired: review,
		ComplianceFlags:     flags,
	}
}

// EthicsCheck scores a decision input against the ethics gate. The score
// starts at 1.0, each violation subtracts a fixed penalty and records a
// flag, and the check passes only with no flags and a score at or above
// the pass threshold.
func (e *Engine) EthicsCheck(in model.DecisionInput) model.EthicsCheck {
	score := 1.0
	flags := []string{}

	if in.Confidence < e.minConfidence {
		score -= 0.2
		flags = append(flags, FlagLowConfidence)
	}
	if e.bias.Detect(in.Content, in.Metadata) {
		score -= 0.3
		flags = append(flags, FlagPotentialBias)
	}
	if e.privacy.Detect(in.Content) {
		score -= 0.2
		flags = append(flags, FlagPrivacyConcern)
	}
	if e.requiresExplanation(in) && (in.Reasoning == nil || *in.Reasoning == "") {
		score -= 0.1
		flags = append(flags, FlagLacksExplanation)
	}

	score = math.Max(0, score)
	return model.EthicsCheck{
		Passed: len(flags) == 0 && score >= ethicsPassThreshold,
		Flags:  flags,
		Score:  score,
	}
}

// requiresExplanation reports whether the decision is deemed to need
// caller-supplied reasoning.
func (e *Engine) requiresExplanation(in model.DecisionInput) bool {
	return in.HighBusinessImpact || explanationRequired[in.InputType]
}

// BiasIndicators computes the per-decision heuristic bias estimate: fixed
// category baselines, bumped when demographic terms appear in the input.
// The aggregate score is the sum of the category scores.
func (e *Engine) BiasIndicators(in model.DecisionInput) model.BiasIndicators {
	scores := map[string]float64{
		CategoryDemographic:   0.10,
		CategorySocioeconomic: 0.05,
		CategoryGeographic:    0.03,
		CategoryTemporal:      0.02,
	}
	mitigations := []string{}

	if e.privacy.Detect(in.Content) {
		scores[CategoryDemographic] += 0.05
		mitigations = append(mitigations, "demographic terms present in input; route output through bias review")
	}

	var total float64
	for _, s := range scores {
		total += s
	}

	return model.BiasIndicators{
		Score:          total,
		CategoryScores: scores,
		Mitigations:    mitigations,
	}
}

// RiskScore combines the governance signals into an additive risk score.
// Every contribution is non-negative and independent, so the resulting level
// is non-decreasing in each input.
func RiskScore(ethics model.EthicsCheck, biasScore, confidence float64, highImpact bool) float64 {
	var score float64
	if !ethics.Passed {
		score += 0.3
	}
	if ethics.Score < 0.5 {
		score += 0.2
	}
	if biasScore > 0.2 {
		score += 0.2
	}
	if confidence < 0.6 {
		score += 0.1
	}
	if highImpact {
		score += 0.2
	}
	return score
}

// LevelFor maps a risk score to its ordinal level.
func LevelFor(score float64) model.RiskLevel {
	switch {
	case score >= 0.8:
		return model.RiskCritical
	case score >= 0.6:
		return model.RiskHigh
	case score >= 0.3:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// HumanReviewRequired is the logical OR of the configured review triggers.
func (e *Engine) HumanReviewRequired(in model.DecisionInput, ethics model.EthicsCheck, level model.RiskLevel) bool {
	if e.triggers.LowConfidence && in.Confidence < e.minConfidence {
		return true
	}
	if e.triggers.HighRisk && level.AtLeast(model.RiskHigh) {
		return true
	}
	if e.triggers.EthicsViolation && !ethics.Passed {
		return true
	}
	if e.triggers.NewPattern && e.novelty.Detect(in) {
		return true
	}
	return false
}
