// Package ethicsreview scores registered models against a fixed set of
// ethics principles and issues an approval verdict with an oversight plan.
//
// Scoring is heuristic over the model's registered metadata. The scorer is
// pluggable so organizations can substitute their own review rubric.
package ethicsreview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// reviewInterval is how long an approval remains current.
const reviewInterval = 180 * 24 * time.Hour

// Principles every assessment scores, in report order.
var Principles = []string{"fairness", "transparency", "accountability", "privacy", "human_dignity"}

// Store is the persistence surface for assessment snapshots.
type Store interface {
	CreateEthicsAssessment(ctx context.Context, a model.EthicsAssessment) (model.EthicsAssessment, error)
}

// Catalog resolves models and receives assessment write-backs.
// *registry.Registry satisfies it.
type Catalog interface {
	Get(orgID, id uuid.UUID) (model.ModelMetadata, error)
	ApplyEthicsAssessment(ctx context.Context, a model.EthicsAssessment) error
}

// PrincipleScorer produces per-principle scores (0 to 10) for a model.
type PrincipleScorer interface {
	ScorePrinciples(m model.ModelMetadata) []model.PrincipleScore
}

// Engine runs ethics assessments.
type Engine struct {
	store   Store
	catalog Catalog
	scorer  PrincipleScorer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an ethics review engine with the default metadata scorer.
func New(store Store, catalog Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		catalog: catalog,
		scorer:  MetadataScorer{},
		logger:  logger,
		now:     time.Now,
	}
}

// WithScorer replaces the principle scorer.
func (e *Engine) WithScorer(s PrincipleScorer) *Engine {
	e.scorer = s
	return e
}

// AssessEthics scores a model, persists the snapshot, and folds the verdict
// into the model's rolling ethics summary.
func (e *Engine) AssessEthics(ctx context.Context, orgID, modelID uuid.UUID, assessor, framework string) (model.EthicsAssessment, error) {
	m, err := e.catalog.Get(orgID, modelID)
	if err != nil {
		return model.EthicsAssessment{}, fmt.Errorf("ethicsreview: resolve model: %w", err)
	}
	if framework == "" {
		framework = "internal"
	}

	scores := e.scorer.ScorePrinciples(m)
	overall := meanScore(scores)
	risk := riskLevelFor(overall)

	now := e.now().UTC()
	a := model.EthicsAssessment{
		ID:              uuid.New(),
		ModelID:         m.ID,
		OrgID:           orgID,
		Assessor:        assessor,
		Framework:       framework,
		AssessedAt:      now,
		PrincipleScores: scores,
		OverallScore:    overall,
		RiskLevel:       risk,
		OversightPlan:   oversightFor(risk),
		Status:          statusFor(overall, risk),
		NextReview:      now.Add(reviewInterval),
	}

	stored, err := e.store.CreateEthicsAssessment(ctx, a)
	if err != nil {
		return model.EthicsAssessment{}, fmt.Errorf("ethicsreview: store assessment: %w", err)
	}

	if err := e.catalog.ApplyEthicsAssessment(ctx, stored); err != nil {
		e.logger.Warn("ethicsreview: registry write-back failed", "model_id", modelID, "error", err)
	}

	return stored, nil
}

func meanScore(scores []model.PrincipleScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	return sum / float64(len(scores))
}

func riskLevelFor(overall float64) model.RiskLevel {
	switch {
	case overall < 5:
		return model.RiskCritical
	case overall < 6.5:
		return model.RiskHigh
	case overall < 8:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func oversightFor(risk model.RiskLevel) model.OversightLevel {
	switch risk {
	case model.RiskCritical:
		return model.OversightFull
	case model.RiskHigh:
		return model.OversightExtensive
	default:
		return model.OversightModerate
	}
}

func statusFor(overall float64, risk model.RiskLevel) model.EthicsStatus {
	switch {
	case risk == model.RiskCritical || overall < 5:
		return model.EthicsRejected
	case risk == model.RiskHigh || overall < 7:
		return model.EthicsConditional
	default:
		return model.EthicsApproved
	}
}

// MetadataScorer derives principle scores from registered model metadata.
type MetadataScorer struct{}

// ScorePrinciples scores each principle from what the registration reveals.
func (MetadataScorer) ScorePrinciples(m model.ModelMetadata) []model.PrincipleScore {
	return []model.PrincipleScore{
		scoreFairness(m),
		scoreTransparency(m),
		scoreAccountability(m),
		scorePrivacy(m),
		scoreHumanDignity(m),
	}
}

func scoreFairness(m model.ModelMetadata) model.PrincipleScore {
	s := model.PrincipleScore{Principle: "fairness"}
	if m.Ethics.LastBiasAssessment == nil {
		s.Score = 5
		s.Concerns = append(s.Concerns, "no bias assessment on record")
		s.Recommendations = append(s.Recommendations, "run a bias assessment with a representative batch")
		return s
	}
	s.Score = m.Ethics.FairnessScore * 10
	s.Evidence = append(s.Evidence, fmt.Sprintf("fairness score %.2f from last bias assessment", m.Ethics.FairnessScore))
	if s.Score < 7 {
		s.Concerns = append(s.Concerns, "measured fairness below target")
		s.Recommendations = append(s.Recommendations, "mitigate the detected bias patterns and reassess")
	}
	return s
}

func scoreTransparency(m model.ModelMetadata) model.PrincipleScore {
	s := model.PrincipleScore{Principle: "transparency"}
	doc := strings.TrimSpace(m.Documentation)
	switch {
	case len(doc) > 200:
		s.Score = 8
		s.Evidence = append(s.Evidence, "substantive model documentation on record")
	case len(doc) > 0:
		s.Score = 6
		s.Concerns = append(s.Concerns, "documentation is thin")
	default:
		s.Score = 3
		s.Concerns = append(s.Concerns, "no model documentation registered")
		s.Recommendations = append(s.Recommendations, "register model cards covering training data and limitations")
	}
	if m.Purpose != "" {
		s.Score++
		s.Evidence = append(s.Evidence, "declared purpose: "+m.Purpose)
	}
	if s.Score > 10 {
		s.Score = 10
	}
	return s
}

func scoreAccountability(m model.ModelMetadata) model.PrincipleScore {
	s := model.PrincipleScore{Principle: "accountability", Score: 3}
	if m.Deployment.HumanOversight {
		s.Score += 4
		s.Evidence = append(s.Evidence, "human oversight configured for deployment")
	} else {
		s.Concerns = append(s.Concerns, "no human oversight on deployment")
		s.Recommendations = append(s.Recommendations, "add a human review step for consequential outputs")
	}
	if m.Ethics.Approver != "" {
		s.Score += 3
		s.Evidence = append(s.Evidence, "prior review signed off by "+m.Ethics.Approver)
	}
	return s
}

func scorePrivacy(m model.ModelMetadata) model.PrincipleScore {
	s := model.PrincipleScore{Principle: "privacy"}
	if m.TrainingData.ContainsPII {
		s.Score = 4
		s.Concerns = append(s.Concerns, "training data contains personally identifiable information")
		s.Recommendations = append(s.Recommendations, "document the lawful basis and minimization applied to PII")
	} else {
		s.Score = 8
		s.Evidence = append(s.Evidence, "training data registered as PII-free")
	}
	if m.TrainingData.Provenance != "" {
		s.Score++
		s.Evidence = append(s.Evidence, "training data provenance documented")
	}
	return s
}

func scoreHumanDignity(m model.ModelMetadata) model.PrincipleScore {
	s := model.PrincipleScore{Principle: "human_dignity", Score: 7}
	if m.Purpose == "" {
		s.Score -= 2
		s.Concerns = append(s.Concerns, "no declared purpose to judge impact on affected people")
	}
	if m.Deployment.HumanOversight {
		s.Score++
		s.Evidence = append(s.Evidence, "affected people can reach a human reviewer")
	}
	return s
}
