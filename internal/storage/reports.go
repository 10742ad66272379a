package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// CreateComplianceReport stores an immutable compliance report.
func (db *DB) CreateComplianceReport(ctx context.Context, r model.ComplianceReport) (model.ComplianceReport, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO compliance_reports (id, org_id, framework, period_from, period_to, report, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.OrgID, r.Framework, r.Period.From, r.Period.To, r, r.GeneratedAt,
	)
	if err != nil {
		return model.ComplianceReport{}, fmt.Errorf("storage: create compliance report: %w", err)
	}
	return r, nil
}
