package model

import (
	"time"

	"github.com/google/uuid"
)

// ModelStatus is the administrative lifecycle state of a governed model.
// Transitions are administrative; nothing in the governance core mutates
// the status after registration.
type ModelStatus string

const (
	ModelDevelopment ModelStatus = "development"
	ModelTesting     ModelStatus = "testing"
	ModelProduction  ModelStatus = "production"
	ModelDeprecated  ModelStatus = "deprecated"
	ModelRetired     ModelStatus = "retired"
)

// TrainingDataSummary describes the data a model was trained on.
type TrainingDataSummary struct {
	Sources     []string `json:"sources,omitempty"`
	RecordCount int64    `json:"record_count,omitempty"`
	ContainsPII bool     `json:"contains_pii"`
	Provenance  string   `json:"provenance,omitempty"`
}

// ModelEthicsSummary holds the rolling ethics state of a model, written back
// by the bias and ethics assessment engines.
type ModelEthicsSummary struct {
	FairnessScore      float64            `json:"fairness_score"`
	BiasByCategory     map[string]float64 `json:"bias_by_category,omitempty"`
	LastBiasAssessment *uuid.UUID         `json:"last_bias_assessment,omitempty"`
	LastReviewedAt     *time.Time         `json:"last_reviewed_at,omitempty"`
	Approver           string             `json:"approver,omitempty"`
	OverallEthicsScore float64            `json:"overall_ethics_score,omitempty"`
}

// ModelComplianceSummary lists the regulatory posture of a model.
type ModelComplianceSummary struct {
	Frameworks     []string `json:"frameworks,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Score          float64  `json:"score,omitempty"`
}

// DeploymentInfo describes where and how a model runs.
type DeploymentInfo struct {
	Environment    string `json:"environment,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
	HumanOversight bool   `json:"human_oversight"`
}

// ModelLifecycle tracks administrative state and timestamps.
type ModelLifecycle struct {
	Status      ModelStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUpdated time.Time   `json:"last_updated"`
}

// ModelMetadata is a governed AI model as held by the registry.
type ModelMetadata struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Type    string    `json:"type"`
	Purpose string    `json:"purpose,omitempty"`
	OrgID   uuid.UUID `json:"org_id"`

	TrainingData  TrainingDataSummary    `json:"training_data"`
	Performance   map[string]float64     `json:"performance,omitempty"`
	Ethics        ModelEthicsSummary     `json:"ethics"`
	Compliance    ModelComplianceSummary `json:"compliance"`
	Deployment    DeploymentInfo         `json:"deployment"`
	Documentation string                 `json:"documentation,omitempty"`

	Lifecycle ModelLifecycle `json:"lifecycle"`
}

// ModelInput is the caller-supplied slice of a model registration.
// ID and lifecycle are assigned by the registry.
type ModelInput struct {
	Name          string                 `json:"name"`
	Version       string                 `json:"version"`
	Type          string                 `json:"type"`
	Purpose       string                 `json:"purpose,omitempty"`
	OrgID         uuid.UUID              `json:"org_id"`
	TrainingData  TrainingDataSummary    `json:"training_data"`
	Performance   map[string]float64     `json:"performance,omitempty"`
	Compliance    ModelComplianceSummary `json:"compliance"`
	Deployment    DeploymentInfo         `json:"deployment"`
	Documentation string                 `json:"documentation,omitempty"`
}
