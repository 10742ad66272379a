// Package model defines the governance data model: decision records,
// model metadata, assessment snapshots, compliance reports, and the
// request/response payloads shared by the HTTP and MCP surfaces.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the ordinal risk classification of a decision or model.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank orders risk levels for comparisons. Unknown levels rank below low.
var riskRank = map[RiskLevel]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// AtLeast reports whether r is at or above the given level.
func (r RiskLevel) AtLeast(min RiskLevel) bool {
	return riskRank[r] >= riskRank[min]
}

// Max returns the higher of two risk levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if riskRank[other] > riskRank[r] {
		return other
	}
	return r
}

// DecisionStatus is the review lifecycle state of a decision record.
type DecisionStatus string

const (
	StatusActive    DecisionStatus = "active"
	StatusReviewed  DecisionStatus = "reviewed"
	StatusApproved  DecisionStatus = "approved"
	StatusRejected  DecisionStatus = "rejected"
	StatusEscalated DecisionStatus = "escalated"
)

// ValidDecisionStatus reports whether s is a known lifecycle state.
func ValidDecisionStatus(s DecisionStatus) bool {
	switch s {
	case StatusActive, StatusReviewed, StatusApproved, StatusRejected, StatusEscalated:
		return true
	}
	return false
}

// EthicsCheck is the per-decision pass/fail gate computed by the pipeline.
type EthicsCheck struct {
	Passed bool     `json:"passed"`
	Flags  []string `json:"flags"`
	Score  float64  `json:"score"`
}

// BiasIndicators is the per-decision heuristic bias estimate.
type BiasIndicators struct {
	Score          float64            `json:"score"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Mitigations    []string           `json:"mitigations"`
}

// Approval is a human sign-off appended by the out-of-band review workflow.
type Approval struct {
	Approver   string    `json:"approver"`
	Role       string    `json:"role,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
	Notes      string    `json:"notes,omitempty"`
}

// AuditTrail is the provenance record attached to a decision.
// Approvals starts empty; the pipeline never appends to it.
type AuditTrail struct {
	DataSource      string     `json:"data_source"`
	Transformations []string   `json:"transformations"`
	Validations     []string   `json:"validations"`
	Approvals       []Approval `json:"approvals"`
}

// Factor is one explainability factor, ordered by importance.
type Factor struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	// Polarity is "positive" when the factor supported the outcome,
	// "negative" when it weighed against it.
	Polarity string `json:"polarity"`
}

// Explainability is the natural-language summary plus ordered factor list.
type Explainability struct {
	Summary string   `json:"summary"`
	Factors []Factor `json:"factors"`
}

// QualityMetrics are caller-supplied model quality figures, zero when unknown.
type QualityMetrics struct {
	Accuracy  float64            `json:"accuracy"`
	Precision float64            `json:"precision"`
	Recall    float64            `json:"recall"`
	F1        float64            `json:"f1"`
	Custom    map[string]float64 `json:"custom,omitempty"`
}

// Feedback is an optional post-hoc user rating, mutable after creation.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Alternative is an option the AI considered but did not select.
type Alternative struct {
	Label  string   `json:"label"`
	Score  *float64 `json:"score,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// DecisionInput is the caller-facing slice of a decision: everything except
// the governance, audit-approval, status, id, and timestamp fields, which
// the pipeline computes.
type DecisionInput struct {
	OrgID     uuid.UUID `json:"org_id"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`

	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version,omitempty"`

	InputType   string         `json:"input_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`

	Result       map[string]any `json:"result,omitempty"`
	Confidence   float64        `json:"confidence"`
	Alternatives []Alternative  `json:"alternatives,omitempty"`
	Reasoning    *string        `json:"reasoning,omitempty"`

	LatencyMS    int64          `json:"latency_ms,omitempty"`
	InputTokens  int            `json:"input_tokens,omitempty"`
	OutputTokens int            `json:"output_tokens,omitempty"`
	CostUSD      float64        `json:"cost_usd,omitempty"`
	Runtime      map[string]any `json:"runtime,omitempty"`

	// HighBusinessImpact marks decisions whose outcome has direct financial
	// or regulatory consequence for the client.
	HighBusinessImpact bool `json:"high_business_impact,omitempty"`

	// Provenance carried into the audit trail.
	DataSource      string   `json:"data_source,omitempty"`
	Transformations []string `json:"transformations,omitempty"`
	Validations     []string `json:"validations,omitempty"`

	Quality *QualityMetrics `json:"quality,omitempty"`
}

// DecisionRecord is one fully evaluated AI decision. Immutable once created,
// except Status and Feedback which the review workflow mutates.
type DecisionRecord struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	OrgID     uuid.UUID `json:"org_id"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`

	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version,omitempty"`

	InputType   string         `json:"input_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`

	Result       map[string]any `json:"result,omitempty"`
	Confidence   float64        `json:"confidence"`
	Alternatives []Alternative  `json:"alternatives,omitempty"`
	Reasoning    *string        `json:"reasoning,omitempty"`

	LatencyMS    int64          `json:"latency_ms,omitempty"`
	InputTokens  int            `json:"input_tokens,omitempty"`
	OutputTokens int            `json:"output_tokens,omitempty"`
	CostUSD      float64        `json:"cost_usd,omitempty"`
	Runtime      map[string]any `json:"runtime,omitempty"`

	HighBusinessImpact bool `json:"high_business_impact,omitempty"`

	// Governance fields, computed by the pipeline. Never caller-supplied.
	EthicsCheck         EthicsCheck    `json:"ethics_check"`
	BiasIndicators      BiasIndicators `json:"bias_indicators"`
	RiskScore           float64        `json:"risk_score"`
	RiskLevel           RiskLevel      `json:"risk_level"`
	HumanReviewRequired bool           `json:"human_review_required"`
	ComplianceFlags     []string       `json:"compliance_flags"`

	AuditTrail     AuditTrail     `json:"audit_trail"`
	Explainability Explainability `json:"explainability"`
	Quality        QualityMetrics `json:"quality"`
	Tags           []string       `json:"tags"`

	Status   DecisionStatus `json:"status"`
	Feedback *Feedback      `json:"feedback,omitempty"`
}

// TimeRange is a half-open interval [From, To) over decision timestamps.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.From) && t.Before(tr.To)
}
