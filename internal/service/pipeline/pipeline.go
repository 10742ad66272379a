// Package pipeline implements decision ingestion: validation, governance
// scoring, record assembly, persistence, caching, alerting, and background
// explanation enrichment.
//
// Both the HTTP API and MCP server delegate to this service, ensuring
// consistent behavior across all interfaces. Persistence and alerting
// failures degrade rather than fail the call: the caller always receives
// the scored record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kansa-ai/kansa/internal/explain"
	"github.com/kansa-ai/kansa/internal/model"
	"github.com/kansa-ai/kansa/internal/service/scoring"
	"github.com/kansa-ai/kansa/internal/telemetry"
)

// Store is the persistence surface the pipeline writes through.
// *storage.DB satisfies it; tests substitute fakes.
type Store interface {
	CreateDecision(ctx context.Context, d model.DecisionRecord) (model.DecisionRecord, error)
	GetDecision(ctx context.Context, orgID, id uuid.UUID) (model.DecisionRecord, error)
	UpdateDecisionStatus(ctx context.Context, orgID, id uuid.UUID, status model.DecisionStatus) error
	SubmitFeedback(ctx context.Context, orgID, id uuid.UUID, fb model.Feedback) error
	UpdateDecisionExplanation(ctx context.Context, orgID, id uuid.UUID, ex model.Explainability) error
}

// Cache receives every scored record for dashboard reads.
type Cache interface {
	Append(d model.DecisionRecord)
}

// AlertQueue receives governance alerts. *alerts.Dispatcher satisfies it.
type AlertQueue interface {
	Enqueue(alert model.Alert)
}

// Service is the decision ingestion pipeline.
type Service struct {
	store      Store
	engine     *scoring.Engine
	cache      Cache
	alerts     AlertQueue
	summarizer explain.Summarizer
	logger     *slog.Logger

	summaryTimeout time.Duration
	now            func() time.Time

	decisionDuration metric.Float64Histogram
	riskScores       metric.Float64Histogram
}

// New creates the pipeline. summarizer may be a noop; alerts and cache are
// required.
func New(store Store, engine *scoring.Engine, c Cache, alerts AlertQueue, summarizer explain.Summarizer, summaryTimeout time.Duration, logger *slog.Logger) *Service {
	meter := telemetry.Meter("kansa/pipeline")
	dur, _ := meter.Float64Histogram("kansa.decision.duration",
		metric.WithDescription("Time to score and record a decision (ms)"),
		metric.WithUnit("ms"),
	)
	risk, _ := meter.Float64Histogram("kansa.decision.risk_score",
		metric.WithDescription("Risk score distribution of recorded decisions"),
	)
	return &Service{
		store:            store,
		engine:           engine,
		cache:            c,
		alerts:           alerts,
		summarizer:       summarizer,
		logger:           logger,
		summaryTimeout:   summaryTimeout,
		now:              time.Now,
		decisionDuration: dur,
		riskScores:       risk,
	}
}

// LogDecision validates, scores, and records one AI decision. Returns the
// fully evaluated record even when persistence degrades.
func (s *Service) LogDecision(ctx context.Context, input model.DecisionInput) (model.DecisionRecord, error) {
	start := s.now()

	if err := input.Validate(); err != nil {
		return model.DecisionRecord{}, err
	}

	eval := s.engine.Evaluate(input)
	record := s.assemble(input, eval)

	persisted := true
	if _, err := s.store.CreateDecision(ctx, record); err != nil {
		persisted = false
		s.logger.Warn("pipeline: persist decision failed, returning scored record",
			"decision_id", record.ID, "error", err)
	}

	s.cache.Append(record)
	s.raiseAlerts(record)

	if persisted {
		s.enrichExplanation(record)
	}

	elapsed := float64(s.now().Sub(start).Microseconds()) / 1000.0
	s.decisionDuration.Record(ctx, elapsed, metric.WithAttributes(
		attribute.String("kansa.input_type", input.InputType),
		attribute.String("kansa.risk_level", string(record.RiskLevel)),
	))
	s.riskScores.Record(ctx, record.RiskScore)

	s.logger.Info("pipeline: decision recorded",
		"decision_id", record.ID,
		"model", record.ModelName,
		"risk_level", record.RiskLevel,
		"human_review", record.HumanReviewRequired,
		"persisted", persisted)

	return record, nil
}

// assemble builds the immutable record from the input and its evaluation.
func (s *Service) assemble(input model.DecisionInput, eval scoring.Evaluation) model.DecisionRecord {
	status := model.StatusActive
	if eval.HumanReviewRequired {
		status = model.StatusEscalated
	}

	quality := model.QualityMetrics{}
	if input.Quality != nil {
		quality = *input.Quality
	}

	factors := buildFactors(input, eval)
	record := model.DecisionRecord{
		ID:        uuid.New(),
		Timestamp: s.now().UTC(),

		OrgID:     input.OrgID,
		SessionID: input.SessionID,
		UserID:    input.UserID,

		ModelName:    input.ModelName,
		ModelVersion: input.ModelVersion,

		InputType:   input.InputType,
		Content:     input.Content,
		Metadata:    input.Metadata,
		ContentHash: input.ContentHash,

		Result:       input.Result,
		Confidence:   input.Confidence,
		Alternatives: input.Alternatives,
		Reasoning:    input.Reasoning,

		LatencyMS:    input.LatencyMS,
		InputTokens:  input.InputTokens,
		OutputTokens: input.OutputTokens,
		CostUSD:      input.CostUSD,
		Runtime:      input.Runtime,

		HighBusinessImpact: input.HighBusinessImpact,

		EthicsCheck:         eval.Ethics,
		BiasIndicators:      eval.Bias,
		RiskScore:           eval.RiskScore,
		RiskLevel:           eval.RiskLevel,
		HumanReviewRequired: eval.HumanReviewRequired,
		ComplianceFlags:     eval.ComplianceFlags,

		AuditTrail: model.AuditTrail{
			DataSource:      input.DataSource,
			Transformations: input.Transformations,
			Validations:     input.Validations,
			Approvals:       []model.Approval{},
		},
		Explainability: model.Explainability{
			Summary: fallbackSummary(input, eval),
			Factors: factors,
		},
		Quality: quality,
		Tags:    buildTags(input),
		Status:  status,
	}
	return record
}

// buildFactors derives the deterministic factor list, ordered by importance.
func buildFactors(input model.DecisionInput, eval scoring.Evaluation) []model.Factor {
	positiveIf := func(ok bool) string {
		if ok {
			return "positive"
		}
		return "negative"
	}

	factors := []model.Factor{
		{Name: "model_confidence", Importance: input.Confidence, Polarity: positiveIf(input.Confidence >= 0.6)},
		{Name: "ethics_score", Importance: eval.Ethics.Score, Polarity: positiveIf(eval.Ethics.Passed)},
		{Name: "bias_indicators", Importance: eval.Bias.Score, Polarity: positiveIf(eval.Bias.Score <= 0.2)},
	}
	if input.HighBusinessImpact {
		factors = append(factors, model.Factor{Name: "business_impact", Importance: 0.3, Polarity: "negative"})
	}
	for _, flag := range eval.Ethics.Flags {
		factors = append(factors, model.Factor{Name: flag, Importance: 0.1, Polarity: "negative"})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Importance > factors[j].Importance
	})
	return factors
}

// fallbackSummary is the deterministic explanation used until (and unless)
// a summary provider produces a better one.
func fallbackSummary(input model.DecisionInput, eval scoring.Evaluation) string {
	ethics := "passed the ethics check"
	if !eval.Ethics.Passed {
		ethics = fmt.Sprintf("raised %d ethics flag(s)", len(eval.Ethics.Flags))
	}
	return fmt.Sprintf("%s decision by %s recorded at %s risk (score %.2f) with confidence %.2f; %s.",
		input.InputType, input.ModelName, eval.RiskLevel, eval.RiskScore, input.Confidence, ethics)
}

func buildTags(input model.DecisionInput) []string {
	bucket := "low_confidence"
	switch {
	case input.Confidence >= 0.8:
		bucket = "high_confidence"
	case input.Confidence >= 0.6:
		bucket = "medium_confidence"
	}
	return []string{input.ModelName, input.InputType, bucket}
}

// raiseAlerts enqueues governance alerts for the record. Non-blocking.
func (s *Service) raiseAlerts(record model.DecisionRecord) {
	if record.RiskLevel == model.RiskCritical {
		s.alerts.Enqueue(model.Alert{
			ID:         uuid.New(),
			OrgID:      record.OrgID,
			DecisionID: record.ID,
			Type:       model.AlertCriticalRisk,
			Message:    fmt.Sprintf("critical risk decision by %s (score %.2f)", record.ModelName, record.RiskScore),
			CreatedAt:  s.now().UTC(),
		})
	}
	if !record.EthicsCheck.Passed {
		s.alerts.Enqueue(model.Alert{
			ID:         uuid.New(),
			OrgID:      record.OrgID,
			DecisionID: record.ID,
			Type:       model.AlertEthicsViolation,
			Message:    fmt.Sprintf("ethics check failed for %s: %v", record.ModelName, record.EthicsCheck.Flags),
			CreatedAt:  s.now().UTC(),
		})
	}
}

// enrichExplanation asks the summary provider for a better explanation on a
// detached goroutine and updates the stored record if one arrives. The
// caller's response always carries the deterministic fallback.
func (s *Service) enrichExplanation(record model.DecisionRecord) {
	if s.summarizer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.summaryTimeout)
		defer cancel()

		summary, err := s.summarizer.Summarize(ctx, explain.Request{
			ModelName:  record.ModelName,
			InputType:  record.InputType,
			Content:    record.Content,
			Confidence: record.Confidence,
			RiskLevel:  record.RiskLevel,
			Factors:    record.Explainability.Factors,
		})
		if err != nil {
			if !errors.Is(err, explain.ErrUnavailable) {
				s.logger.Warn("pipeline: summary generation failed", "decision_id", record.ID, "error", err)
			}
			return
		}

		ex := record.Explainability
		ex.Summary = summary
		if err := s.store.UpdateDecisionExplanation(ctx, record.OrgID, record.ID, ex); err != nil {
			s.logger.Warn("pipeline: summary persist failed", "decision_id", record.ID, "error", err)
		}
	}()
}

// GetDecision retrieves a recorded decision.
func (s *Service) GetDecision(ctx context.Context, orgID, id uuid.UUID) (model.DecisionRecord, error) {
	return s.store.GetDecision(ctx, orgID, id)
}

// UpdateStatus moves a decision through its review lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, status model.DecisionStatus) error {
	if !model.ValidDecisionStatus(status) {
		return &model.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	return s.store.UpdateDecisionStatus(ctx, orgID, id, status)
}

// SubmitFeedback attaches a post-hoc rating to a decision.
func (s *Service) SubmitFeedback(ctx context.Context, orgID, id uuid.UUID, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return &model.ValidationError{Field: "rating", Reason: "must be in [1,5]"}
	}
	return s.store.SubmitFeedback(ctx, orgID, id, model.Feedback{
		Rating:      rating,
		Comment:     comment,
		SubmittedAt: s.now().UTC(),
	})
}
