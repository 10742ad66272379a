package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// CreateBiasAssessment stores an immutable bias assessment snapshot. Scalar
// verdict columns are duplicated out of the JSONB payload for querying.
func (db *DB) CreateBiasAssessment(ctx context.Context, a model.BiasAssessmentResult) (model.BiasAssessmentResult, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssessedAt.IsZero() {
		a.AssessedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO bias_assessments (id, org_id, model_id, status, overall_score, result, assessed_at, next_assessment)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OrgID, a.ModelID, a.Status, a.OverallBiasScore, a, a.AssessedAt, a.NextAssessment,
	)
	if err != nil {
		return model.BiasAssessmentResult{}, fmt.Errorf("storage: create bias assessment: %w", err)
	}
	return a, nil
}

// CreateEthicsAssessment stores an immutable ethics assessment snapshot.
func (db *DB) CreateEthicsAssessment(ctx context.Context, a model.EthicsAssessment) (model.EthicsAssessment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssessedAt.IsZero() {
		a.AssessedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO ethics_assessments (id, org_id, model_id, status, risk_level, overall, result, assessed_at, next_review)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OrgID, a.ModelID, a.Status, a.RiskLevel, a.OverallScore, a, a.AssessedAt, a.NextReview,
	)
	if err != nil {
		return model.EthicsAssessment{}, fmt.Errorf("storage: create ethics assessment: %w", err)
	}
	return a, nil
}
