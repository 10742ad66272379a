// Package fairness computes model-level bias assessments from labeled
// test batches.
//
// Each batch case carries the protected-attribute groups it belongs to plus
// actual and predicted outcome labels. The engine derives standard group
// fairness metrics, detects per-attribute bias patterns, rolls them up into
// category scores, and persists an immutable assessment snapshot.
package fairness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// assessmentInterval is how long an assessment verdict remains current.
const assessmentInterval = 90 * 24 * time.Hour

// Store is the persistence surface for assessment snapshots.
type Store interface {
	CreateBiasAssessment(ctx context.Context, a model.BiasAssessmentResult) (model.BiasAssessmentResult, error)
}

// Catalog resolves models and receives assessment write-backs.
// *registry.Registry satisfies it.
type Catalog interface {
	Get(orgID, id uuid.UUID) (model.ModelMetadata, error)
	ApplyBiasAssessment(ctx context.Context, a model.BiasAssessmentResult) error
}

// Engine runs bias assessments.
type Engine struct {
	store   Store
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a bias assessment engine.
func New(store Store, catalog Catalog, logger *slog.Logger) *Engine {
	return &Engine{store: store, catalog: catalog, logger: logger, now: time.Now}
}

// attributeCategories maps protected attributes to bias categories.
// Unlisted attributes count as demographic, the most conservative bucket.
var attributeCategories = map[string]string{
	"gender":     "demographic",
	"age":        "demographic",
	"ethnicity":  "demographic",
	"race":       "demographic",
	"income":     "socioeconomic",
	"education":  "socioeconomic",
	"employment": "socioeconomic",
	"region":     "geographic",
	"state":      "geographic",
	"country":    "geographic",
	"location":   "geographic",
	"cohort":     "temporal",
	"quarter":    "temporal",
	"year":       "temporal",
}

// biasCategories is the fixed category set every assessment reports on.
var biasCategories = []string{"demographic", "socioeconomic", "geographic", "temporal"}

func categoryFor(attribute string) string {
	if c, ok := attributeCategories[attribute]; ok {
		return c
	}
	return "demographic"
}

// AssessModelBias evaluates a labeled batch against a registered model,
// persists the snapshot, and folds the result into the model's rolling
// ethics summary.
func (e *Engine) AssessModelBias(ctx context.Context, orgID, modelID uuid.UUID, cases []model.BiasTestCase) (model.BiasAssessmentResult, error) {
	m, err := e.catalog.Get(orgID, modelID)
	if err != nil {
		return model.BiasAssessmentResult{}, fmt.Errorf("fairness: resolve model: %w", err)
	}

	result := e.evaluate(cases)
	result.ID = uuid.New()
	result.ModelID = m.ID
	result.OrgID = orgID
	result.AssessedAt = e.now().UTC()
	result.NextAssessment = result.AssessedAt.Add(assessmentInterval)

	stored, err := e.store.CreateBiasAssessment(ctx, result)
	if err != nil {
		return model.BiasAssessmentResult{}, fmt.Errorf("fairness: store assessment: %w", err)
	}

	if err := e.catalog.ApplyBiasAssessment(ctx, stored); err != nil {
		e.logger.Warn("fairness: registry write-back failed", "model_id", modelID, "error", err)
	}

	return stored, nil
}

// evaluate computes the full metric set for a batch. Deterministic and
// side-effect free.
func (e *Engine) evaluate(cases []model.BiasTestCase) model.BiasAssessmentResult {
	byAttr := groupByAttribute(cases)

	attrParity := make(map[string]float64, len(byAttr))
	repGaps := make(map[string]float64, len(byAttr))
	var eqOddsMax, eqOppMax, calibMax, labelMax, selectionMax float64

	attrs := make([]string, 0, len(byAttr))
	for attr := range byAttr {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	for _, attr := range attrs {
		groups := byAttr[attr]
		if len(groups) < 2 {
			continue
		}

		attrParity[attr] = rateGap(groups, func(g *groupStats) (float64, bool) {
			return float64(g.predPos) / float64(g.total), g.total > 0
		})

		tprGap := rateGap(groups, func(g *groupStats) (float64, bool) {
			pos := g.tp + g.fn
			if pos == 0 {
				return 0, false
			}
			return float64(g.tp) / float64(pos), true
		})
		fprGap := rateGap(groups, func(g *groupStats) (float64, bool) {
			neg := g.fp + g.tn
			if neg == 0 {
				return 0, false
			}
			return float64(g.fp) / float64(neg), true
		})
		eqOddsMax = math.Max(eqOddsMax, math.Max(tprGap, fprGap))
		eqOppMax = math.Max(eqOppMax, tprGap)

		// Calibration: how far mean confidence drifts from the realized
		// positive rate, worst group wins.
		for _, g := range groups {
			if g.total == 0 {
				continue
			}
			drift := math.Abs(g.scoreSum/float64(g.total) - float64(g.actualPos)/float64(g.total))
			calibMax = math.Max(calibMax, drift)
		}

		labelMax = math.Max(labelMax, rateGap(groups, func(g *groupStats) (float64, bool) {
			return float64(g.actualPos) / float64(g.total), g.total > 0
		}))

		repGap := representationGap(groups, len(cases))
		repGaps[attr] = repGap
		selectionMax = math.Max(selectionMax, repGap)
	}

	parityMax := 0.0
	for _, gap := range attrParity {
		parityMax = math.Max(parityMax, gap)
	}

	detected := detectBiases(attrParity, byAttr)
	categoryScores := rollupCategories(attrParity)
	overall := meanCategoryScore(categoryScores)

	return model.BiasAssessmentResult{
		BatchSize:          len(cases),
		RepresentationGaps: repGaps,
		LabelBias:          labelMax,
		SelectionBias:      selectionMax,
		Fairness: model.FairnessMetrics{
			DemographicParity: parityMax,
			EqualizedOdds:     eqOddsMax,
			EqualOpportunity:  eqOppMax,
			Calibration:       calibMax,
		},
		DetectedBiases:   detected,
		CategoryScores:   categoryScores,
		OverallBiasScore: overall,
		Status:           statusFor(overall, detected),
		Recommendations:  recommendationsFor(detected),
	}
}

type groupStats struct {
	total     int
	actualPos int
	predPos   int
	tp        int
	fp        int
	fn        int
	tn        int
	scoreSum  float64
}

func groupByAttribute(cases []model.BiasTestCase) map[string]map[string]*groupStats {
	byAttr := make(map[string]map[string]*groupStats)
	for _, c := range cases {
		for attr, value := range c.Group {
			groups, ok := byAttr[attr]
			if !ok {
				groups = make(map[string]*groupStats)
				byAttr[attr] = groups
			}
			g, ok := groups[value]
			if !ok {
				g = &groupStats{}
				groups[value] = g
			}
			g.total++
			g.scoreSum += c.Score
			switch {
			case c.Actual && c.Predicted:
				g.tp++
				g.actualPos++
				g.predPos++
			case c.Actual && !c.Predicted:
				g.fn++
				g.actualPos++
			case !c.Actual && c.Predicted:
				g.fp++
				g.predPos++
			default:
				g.tn++
			}
		}
	}
	return byAttr
}

// rateGap computes max minus min of a per-group rate. Groups where the rate
// is undefined (no eligible cases) are skipped; fewer than two defined
// groups means no measurable gap.
func rateGap(groups map[string]*groupStats, rate func(*groupStats) (float64, bool)) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	defined := 0
	for _, g := range groups {
		r, ok := rate(g)
		if !ok {
			continue
		}
		defined++
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	if defined < 2 {
		return 0
	}
	return hi - lo
}

// representationGap measures how unevenly the batch covers an attribute's
// groups: the spread between the largest and smallest group share.
func representationGap(groups map[string]*groupStats, total int) float64 {
	if total == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		share := float64(g.total) / float64(total)
		lo = math.Min(lo, share)
		hi = math.Max(hi, share)
	}
	return hi - lo
}

func severityFor(gap float64) model.BiasSeverity {
	switch {
	case gap > 0.4:
		return model.SeverityCritical
	case gap > 0.25:
		return model.SeverityHigh
	case gap > 0.15:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// detectBiases flags attributes whose demographic parity gap exceeds 0.1.
func detectBiases(attrParity map[string]float64, byAttr map[string]map[string]*groupStats) []model.DetectedBias {
	attrs := make([]string, 0, len(attrParity))
	for attr := range attrParity {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	var out []model.DetectedBias
	for _, attr := range attrs {
		gap := attrParity[attr]
		if gap <= 0.1 {
			continue
		}
		groups := make([]string, 0, len(byAttr[attr]))
		for value := range byAttr[attr] {
			groups = append(groups, value)
		}
		sort.Strings(groups)
		out = append(out, model.DetectedBias{
			Type:           categoryFor(attr) + "_bias",
			Severity:       severityFor(gap),
			Description:    fmt.Sprintf("positive prediction rate differs by %.2f across %s groups", gap, attr),
			AffectedGroups: groups,
		})
	}
	return out
}

// rollupCategories reports the worst parity gap per bias category. All
// categories are always present so downstream consumers see zeros, not
// missing keys.
func rollupCategories(attrParity map[string]float64) map[string]float64 {
	scores := make(map[string]float64, len(biasCategories))
	for _, c := range biasCategories {
		scores[c] = 0
	}
	for attr, gap := range attrParity {
		c := categoryFor(attr)
		scores[c] = math.Max(scores[c], gap)
	}
	return scores
}

func meanCategoryScore(scores map[string]float64) float64 {
	var sum float64
	for _, c := range biasCategories {
		sum += scores[c]
	}
	return sum / float64(len(biasCategories))
}

// statusFor grades an assessment from the overall score and the worst
// detected pattern.
func statusFor(overall float64, detected []model.DetectedBias) model.BiasStatus {
	worst := model.BiasSeverity("")
	for _, d := range detected {
		switch d.Severity {
		case model.SeverityCritical:
			worst = model.SeverityCritical
		case model.SeverityHigh:
			if worst != model.SeverityCritical {
				worst = model.SeverityHigh
			}
		}
	}

	switch {
	case overall > 0.3 || worst == model.SeverityCritical:
		return model.BiasFailed
	case overall > 0.15 || worst == model.SeverityHigh:
		return model.BiasRequiresMitigation
	case overall > 0.1 || len(detected) > 0:
		return model.BiasWarning
	default:
		return model.BiasPassed
	}
}

func recommendationsFor(detected []model.DetectedBias) []string {
	if len(detected) == 0 {
		return nil
	}
	recs := make([]string, 0, len(detected)+1)
	for _, d := range detected {
		recs = append(recs, fmt.Sprintf("rebalance training data for %s groups: %s", d.Type, d.Description))
	}
	recs = append(recs, "re-run the assessment after mitigation to confirm the gap closed")
	return recs
}
