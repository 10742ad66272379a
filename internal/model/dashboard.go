package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies a governance alert.
type AlertType string

const (
	AlertCriticalRisk    AlertType = "critical_risk"
	AlertEthicsViolation AlertType = "ethics_violation"
)

// Alert is a governance alert raised by the decision pipeline.
type Alert struct {
	ID           uuid.UUID `json:"id"`
	OrgID        uuid.UUID `json:"org_id"`
	DecisionID   uuid.UUID `json:"decision_id"`
	Type         AlertType `json:"type"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// DailyCount is one day's decision count in a dashboard series.
type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// ModelRiskSummary is the per-model risk rollup shown on the dashboard.
type ModelRiskSummary struct {
	ModelID       uuid.UUID `json:"model_id"`
	ModelName     string    `json:"model_name"`
	RiskLevel     RiskLevel `json:"risk_level"`
	DecisionCount int       `json:"decision_count"`
}

// DashboardTotals are the headline counters for a dashboard timeframe.
type DashboardTotals struct {
	Decisions     int `json:"decisions"`
	HighRisk      int `json:"high_risk"`
	HumanReview   int `json:"human_review"`
	BiasIncidents int `json:"bias_incidents"`
}

// Dashboard is the read-only governance rollup for one organization.
type Dashboard struct {
	OrgID         uuid.UUID          `json:"org_id"`
	Timeframe     TimeRange          `json:"timeframe"`
	Totals        DashboardTotals    `json:"totals"`
	DailyCounts   []DailyCount       `json:"daily_counts"`
	RiskHistogram map[RiskLevel]int  `json:"risk_histogram"`
	ModelRisk     []ModelRiskSummary `json:"model_risk"`
	ActiveAlerts  []Alert            `json:"active_alerts"`
	GeneratedAt   time.Time          `json:"generated_at"`
}
