package model

import (
	"time"

	"github.com/google/uuid"
)

// BiasStatus is the verdict of a per-model bias assessment.
type BiasStatus string

const (
	BiasPassed             BiasStatus = "passed"
	BiasWarning            BiasStatus = "warning"
	BiasRequiresMitigation BiasStatus = "requires_mitigation"
	BiasFailed             BiasStatus = "failed"
)

// BiasSeverity grades a detected bias pattern.
type BiasSeverity string

const (
	SeverityLow      BiasSeverity = "low"
	SeverityMedium   BiasSeverity = "medium"
	SeverityHigh     BiasSeverity = "high"
	SeverityCritical BiasSeverity = "critical"
)

// BiasTestCase is one labeled example in an assessment batch. Group holds the
// protected-attribute values the case belongs to (e.g. "gender" -> "female");
// Actual and Predicted are the binary outcome labels, Score the model's raw
// confidence for the positive class.
type BiasTestCase struct {
	Group     map[string]string `json:"group"`
	Actual    bool              `json:"actual"`
	Predicted bool              `json:"predicted"`
	Score     float64           `json:"score"`
}

// FairnessMetrics are batch-level statistics, each expressed as a gap in
// [0,1] where 0 is perfectly fair.
type FairnessMetrics struct {
	DemographicParity float64 `json:"demographic_parity"`
	EqualizedOdds     float64 `json:"equalized_odds"`
	EqualOpportunity  float64 `json:"equal_opportunity"`
	Calibration       float64 `json:"calibration"`
}

// DetectedBias is one bias pattern found during an assessment.
type DetectedBias struct {
	Type           string       `json:"type"`
	Severity       BiasSeverity `json:"severity"`
	Description    string       `json:"description"`
	AffectedGroups []string     `json:"affected_groups,omitempty"`
}

// BiasAssessmentResult is a point-in-time bias evaluation of a model.
// Immutable once stored.
type BiasAssessmentResult struct {
	ID         uuid.UUID `json:"id"`
	ModelID    uuid.UUID `json:"model_id"`
	OrgID      uuid.UUID `json:"org_id"`
	AssessedAt time.Time `json:"assessed_at"`
	BatchSize  int       `json:"batch_size"`

	RepresentationGaps map[string]float64 `json:"representation_gaps,omitempty"`
	LabelBias          float64            `json:"label_bias"`
	SelectionBias      float64            `json:"selection_bias"`
	Fairness           FairnessMetrics    `json:"fairness"`
	DetectedBiases     []DetectedBias     `json:"detected_biases"`
	CategoryScores     map[string]float64 `json:"category_scores"`
	OverallBiasScore   float64            `json:"overall_bias_score"`

	Status          BiasStatus `json:"status"`
	Recommendations []string   `json:"recommendations,omitempty"`
	NextAssessment  time.Time  `json:"next_assessment"`
}

// EthicsStatus is the verdict of a model ethics assessment.
type EthicsStatus string

const (
	EthicsApproved    EthicsStatus = "approved"
	EthicsConditional EthicsStatus = "conditional"
	EthicsRejected    EthicsStatus = "rejected"
)

// OversightLevel is the human-oversight plan derived from assessment risk.
type OversightLevel string

const (
	OversightModerate  OversightLevel = "moderate"
	OversightExtensive OversightLevel = "extensive"
	OversightFull      OversightLevel = "full"
)

// PrincipleScore is one ethics principle scored 0-10 with supporting detail.
type PrincipleScore struct {
	Principle       string   `json:"principle"`
	Score           float64  `json:"score"`
	Evidence        []string `json:"evidence,omitempty"`
	Concerns        []string `json:"concerns,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// EthicsAssessment is a point-in-time ethics evaluation of a model against a
// named framework's principles. Immutable once stored.
type EthicsAssessment struct {
	ID         uuid.UUID `json:"id"`
	ModelID    uuid.UUID `json:"model_id"`
	OrgID      uuid.UUID `json:"org_id"`
	Assessor   string    `json:"assessor"`
	Framework  string    `json:"framework"`
	AssessedAt time.Time `json:"assessed_at"`

	PrincipleScores []PrincipleScore `json:"principle_scores"`
	OverallScore    float64          `json:"overall_score"`
	RiskLevel       RiskLevel        `json:"risk_level"`
	OversightPlan   OversightLevel   `json:"oversight_plan"`

	Status     EthicsStatus `json:"status"`
	NextReview time.Time    `json:"next_review"`
}
