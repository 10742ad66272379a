package model

import (
	"time"

	"github.com/google/uuid"
)

// RequirementStatus classifies one regulatory requirement's evaluation.
type RequirementStatus string

const (
	RequirementMet           RequirementStatus = "met"
	RequirementPartiallyMet  RequirementStatus = "partially_met"
	RequirementNotMet        RequirementStatus = "not_met"
	RequirementNotApplicable RequirementStatus = "not_applicable"
)

// ComplianceLevel summarizes an entire report.
type ComplianceLevel string

const (
	Compliant          ComplianceLevel = "compliant"
	MostlyCompliant    ComplianceLevel = "mostly_compliant"
	PartiallyCompliant ComplianceLevel = "partially_compliant"
)

// RequirementResult is one framework requirement evaluated against the
// decision corpus.
type RequirementResult struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Status      RequirementStatus `json:"status"`
	Evidence    []string          `json:"evidence,omitempty"`
	Gaps        []string          `json:"gaps,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
}

// ComplianceSummary is the report-level rollup.
type ComplianceSummary struct {
	OverallScore float64         `json:"overall_score"`
	Level        ComplianceLevel `json:"level"`
	Met          int             `json:"met"`
	PartiallyMet int             `json:"partially_met"`
	NotMet       int             `json:"not_met"`
}

// SystemCompliance is the per-AI-system rollup within a report.
type SystemCompliance struct {
	ModelName     string  `json:"model_name"`
	DecisionCount int     `json:"decision_count"`
	FlaggedCount  int     `json:"flagged_count"`
	Score         float64 `json:"score"`
}

// DataGovernanceChecklist is a fixed checklist reported for every framework.
type DataGovernanceChecklist struct {
	AccessControls   bool `json:"access_controls"`
	EncryptionAtRest bool `json:"encryption_at_rest"`
	RetentionPolicy  bool `json:"retention_policy"`
	DataLineage      bool `json:"data_lineage"`
	TenantIsolation  bool `json:"tenant_isolation"`
}

// ReportRiskAssessment summarizes risk exposure over the reporting period.
type ReportRiskAssessment struct {
	ByLevel  map[RiskLevel]int `json:"by_level"`
	TopRisks []string          `json:"top_risks,omitempty"`
}

// AuditTrailSummary rolls up audit accounting over the reporting period.
type AuditTrailSummary struct {
	DecisionCount  int     `json:"decision_count"`
	MeanLatencyMS  float64 `json:"mean_latency_ms"`
	ErrorRate      float64 `json:"error_rate"`
	HumanOverrides int     `json:"human_overrides"`
}

// ComplianceReport is a point-in-time evaluation of an organization's
// decision corpus against a regulatory framework. Immutable once stored.
type ComplianceReport struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"org_id"`
	Framework   string    `json:"framework"`
	Period      TimeRange `json:"period"`
	GeneratedAt time.Time `json:"generated_at"`
	GeneratedBy string    `json:"generated_by"`

	Requirements   []RequirementResult     `json:"requirements"`
	Summary        ComplianceSummary       `json:"summary"`
	Systems        []SystemCompliance      `json:"systems"`
	DataGovernance DataGovernanceChecklist `json:"data_governance"`
	Risk           ReportRiskAssessment    `json:"risk"`
	AuditTrail     AuditTrailSummary       `json:"audit_trail"`

	NextReview time.Time `json:"next_review"`
}
