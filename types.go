package kansa

import (
	"context"

	"github.com/kansa-ai/kansa/internal/explain"
	"github.com/kansa-ai/kansa/internal/model"
)

// Adapters between the public extension interfaces and the internal
// service contracts. This is the only file that sees both sides of the
// boundary, so conversions live here.

type summarizerAdapter struct {
	s Summarizer
}

func (a *summarizerAdapter) Summarize(ctx context.Context, req explain.Request) (string, error) {
	factors := make([]SummaryFactor, 0, len(req.Factors))
	for _, f := range req.Factors {
		factors = append(factors, SummaryFactor{
			Name:       f.Name,
			Importance: f.Importance,
			Polarity:   f.Polarity,
		})
	}
	return a.s.Summarize(ctx, SummaryRequest{
		ModelName:  req.ModelName,
		InputType:  req.InputType,
		Content:    req.Content,
		Confidence: req.Confidence,
		RiskLevel:  string(req.RiskLevel),
		Factors:    factors,
	})
}

type alertSinkAdapter struct {
	sink AlertSink
}

func (a *alertSinkAdapter) Deliver(ctx context.Context, alert model.Alert) error {
	return a.sink.Deliver(ctx, Alert{
		ID:         alert.ID,
		OrgID:      alert.OrgID,
		DecisionID: alert.DecisionID,
		Type:       string(alert.Type),
		Message:    alert.Message,
		CreatedAt:  alert.CreatedAt,
	})
}

type biasDetectorAdapter struct {
	d BiasDetector
}

func (a biasDetectorAdapter) Detect(content string, metadata map[string]any) bool {
	return a.d.Detect(content, metadata)
}

type privacyDetectorAdapter struct {
	d PrivacyDetector
}

func (a privacyDetectorAdapter) Detect(content string) bool {
	return a.d.Detect(content)
}

type noveltyDetectorAdapter struct {
	d NoveltyDetector
}

func (a noveltyDetectorAdapter) Detect(in model.DecisionInput) bool {
	return a.d.Detect(in.InputType, in.Content, in.Metadata)
}
