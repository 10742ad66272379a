package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kansa-ai/kansa/internal/model"
)

const modelColumns = `id, org_id, name, version, model_type, purpose,
	 training_data, performance, ethics, compliance, deployment, documentation, lifecycle`

// CreateModel inserts a registered model.
func (db *DB) CreateModel(ctx context.Context, m model.ModelMetadata) (model.ModelMetadata, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO models (`+modelColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.OrgID, m.Name, m.Version, m.Type, m.Purpose,
		m.TrainingData, m.Performance, m.Ethics, m.Compliance, m.Deployment, m.Documentation, m.Lifecycle,
	)
	if err != nil {
		return model.ModelMetadata{}, fmt.Errorf("storage: create model: %w", err)
	}
	return m, nil
}

// GetModel retrieves a model by ID within an organization.
func (db *DB) GetModel(ctx context.Context, orgID, id uuid.UUID) (model.ModelMetadata, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM models WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	m, err := scanModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ModelMetadata{}, ErrNotFound
		}
		return model.ModelMetadata{}, fmt.Errorf("storage: get model: %w", err)
	}
	return m, nil
}

// FindAllModels returns every registered model across organizations.
// Used to warm the in-memory registry at startup.
func (db *DB) FindAllModels(ctx context.Context) ([]model.ModelMetadata, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+modelColumns+` FROM models ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("storage: find models: %w", err)
	}
	defer rows.Close()

	var out []model.ModelMetadata
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateModelEthics replaces the rolling ethics summary on a model.
func (db *DB) UpdateModelEthics(ctx context.Context, orgID, id uuid.UUID, ethics model.ModelEthicsSummary) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE models SET ethics = $1 WHERE org_id = $2 AND id = $3`,
		ethics, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: update model ethics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanModel(row pgx.Row) (model.ModelMetadata, error) {
	var m model.ModelMetadata
	err := row.Scan(
		&m.ID, &m.OrgID, &m.Name, &m.Version, &m.Type, &m.Purpose,
		&m.TrainingData, &m.Performance, &m.Ethics, &m.Compliance, &m.Deployment, &m.Documentation, &m.Lifecycle,
	)
	return m, err
}
