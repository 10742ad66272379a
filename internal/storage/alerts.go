package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// CreateAlert inserts a governance alert.
func (db *DB) CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO alerts (id, org_id, decision_id, alert_type, message, acknowledged, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrgID, a.DecisionID, a.Type, a.Message, a.Acknowledged, a.CreatedAt,
	)
	if err != nil {
		return model.Alert{}, fmt.Errorf("storage: create alert: %w", err)
	}
	return a, nil
}

// ListActiveAlerts returns unacknowledged alerts for an organization,
// newest first.
func (db *DB) ListActiveAlerts(ctx context.Context, orgID uuid.UUID) ([]model.Alert, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, org_id, decision_id, alert_type, message, acknowledged, created_at
		 FROM alerts WHERE org_id = $1 AND NOT acknowledged
		 ORDER BY created_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.OrgID, &a.DecisionID, &a.Type, &a.Message, &a.Acknowledged, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert marks an alert as handled.
func (db *DB) AcknowledgeAlert(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE alerts SET acknowledged = TRUE WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
