package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kansa-ai/kansa/internal/model"
)

const decisionColumns = `id, org_id, session_id, user_id, model_name, model_version,
	 input_type, content, metadata, content_hash, result, confidence, alternatives,
	 reasoning, latency_ms, input_tokens, output_tokens, cost_usd, runtime,
	 high_business_impact, ethics_check, bias_indicators, risk_score, risk_level,
	 human_review_required, compliance_flags, audit_trail, explainability, quality,
	 tags, status, feedback, created_at`

// CreateDecision inserts a fully evaluated decision record.
func (db *DB) CreateDecision(ctx context.Context, d model.DecisionRecord) (model.DecisionRecord, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	if d.ComplianceFlags == nil {
		d.ComplianceFlags = []string{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO decisions (`+decisionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		 $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
		 $31, $32, $33)`,
		d.ID, d.OrgID, d.SessionID, d.UserID, d.ModelName, d.ModelVersion,
		d.InputType, d.Content, d.Metadata, d.ContentHash, d.Result, d.Confidence, d.Alternatives,
		d.Reasoning, d.LatencyMS, d.InputTokens, d.OutputTokens, d.CostUSD, d.Runtime,
		d.HighBusinessImpact, d.EthicsCheck, d.BiasIndicators, d.RiskScore, d.RiskLevel,
		d.HumanReviewRequired, d.ComplianceFlags, d.AuditTrail, d.Explainability, d.Quality,
		d.Tags, d.Status, d.Feedback, d.Timestamp,
	)
	if err != nil {
		return model.DecisionRecord{}, fmt.Errorf("storage: create decision: %w", err)
	}
	return d, nil
}

// GetDecision retrieves a decision by ID within an organization.
func (db *DB) GetDecision(ctx context.Context, orgID, id uuid.UUID) (model.DecisionRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DecisionRecord{}, ErrNotFound
		}
		return model.DecisionRecord{}, fmt.Errorf("storage: get decision: %w", err)
	}
	return d, nil
}

// FindDecisions returns an organization's decisions within [tr.From, tr.To),
// newest first.
func (db *DB) FindDecisions(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) ([]model.DecisionRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+decisionColumns+` FROM decisions
		 WHERE org_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC`,
		orgID, tr.From, tr.To,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find decisions: %w", err)
	}
	defer rows.Close()

	var out []model.DecisionRecord
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDecisionStatus moves a decision through its review lifecycle.
func (db *DB) UpdateDecisionStatus(ctx context.Context, orgID, id uuid.UUID, status model.DecisionStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE decisions SET status = $1 WHERE org_id = $2 AND id = $3`,
		status, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: update decision status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SubmitFeedback attaches or replaces the user feedback on a decision.
func (db *DB) SubmitFeedback(ctx context.Context, orgID, id uuid.UUID, fb model.Feedback) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE decisions SET feedback = $1 WHERE org_id = $2 AND id = $3`,
		fb, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: submit feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDecisionExplanation replaces the explainability block once the
// background summarizer finishes.
func (db *DB) UpdateDecisionExplanation(ctx context.Context, orgID, id uuid.UUID, ex model.Explainability) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE decisions SET explainability = $1 WHERE org_id = $2 AND id = $3`,
		ex, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: update decision explanation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDecision(row pgx.Row) (model.DecisionRecord, error) {
	var d model.DecisionRecord
	err := row.Scan(
		&d.ID, &d.OrgID, &d.SessionID, &d.UserID, &d.ModelName, &d.ModelVersion,
		&d.InputType, &d.Content, &d.Metadata, &d.ContentHash, &d.Result, &d.Confidence, &d.Alternatives,
		&d.Reasoning, &d.LatencyMS, &d.InputTokens, &d.OutputTokens, &d.CostUSD, &d.Runtime,
		&d.HighBusinessImpact, &d.EthicsCheck, &d.BiasIndicators, &d.RiskScore, &d.RiskLevel,
		&d.HumanReviewRequired, &d.ComplianceFlags, &d.AuditTrail, &d.Explainability, &d.Quality,
		&d.Tags, &d.Status, &d.Feedback, &d.Timestamp,
	)
	return d, err
}
