package kansa

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/explain"
)

// ErrSummaryUnavailable signals that a Summarizer cannot produce a summary
// right now. The pipeline keeps its deterministic factor-based summary and
// does not log the miss as an error.
var ErrSummaryUnavailable = explain.ErrUnavailable

// SummaryFactor is one contributing factor in a summary request, most
// important first.
type SummaryFactor struct {
	Name       string
	Importance float64
	// Polarity is "positive" when the factor supported the outcome,
	// "negative" when it weighed against it.
	Polarity string
}

// SummaryRequest carries the decision facts a Summarizer turns into a
// plain-language explanation.
type SummaryRequest struct {
	ModelName  string
	InputType  string
	Content    string
	Confidence float64
	RiskLevel  string
	Factors    []SummaryFactor
}

// Summarizer generates a short plain-language explanation of a decision.
// When provided via WithSummarizer, replaces auto-detected Ollama/OpenAI/noop.
// Return ErrSummaryUnavailable to decline without surfacing an error.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// Alert is a governance alert raised by the decision pipeline.
type Alert struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	DecisionID uuid.UUID
	Type       string
	Message    string
	CreatedAt  time.Time
}

// AlertSink receives alerts for delivery.
// When provided via WithAlertSink, replaces the default Postgres delivery.
// Deliver runs on the dispatcher goroutine with a bounded per-alert timeout;
// failures are logged but never fail the originating decision.
type AlertSink interface {
	Deliver(ctx context.Context, alert Alert) error
}

// BiasDetector decides whether decision input content carries bias
// indicators. When provided via WithBiasDetector, replaces the keyword
// heuristic in the scoring engine.
type BiasDetector interface {
	Detect(content string, metadata map[string]any) bool
}

// PrivacyDetector decides whether decision input content exposes protected
// or identifying attributes.
type PrivacyDetector interface {
	Detect(content string) bool
}

// NoveltyDetector decides whether a decision represents a pattern the
// organization has not reviewed before. The built-in default never fires;
// deployments plug in their own drift detection.
type NoveltyDetector interface {
	Detect(inputType, content string, metadata map[string]any) bool
}
