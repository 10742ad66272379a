// Package registry maintains the catalog of governed AI models.
//
// The registry is an in-memory index warmed from the database at startup.
// Reads are served from memory; writes persist first and then update the
// index, so a crashed write never leaves a phantom model in the catalog.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
	"github.com/kansa-ai/kansa/internal/storage"
)

// Store is the persistence surface the registry writes through.
// *storage.DB satisfies it; tests substitute fakes.
type Store interface {
	CreateModel(ctx context.Context, m model.ModelMetadata) (model.ModelMetadata, error)
	FindAllModels(ctx context.Context) ([]model.ModelMetadata, error)
	UpdateModelEthics(ctx context.Context, orgID, id uuid.UUID, ethics model.ModelEthicsSummary) error
}

// Registry is the in-memory model catalog backed by the store.
type Registry struct {
	store  Store
	logger *slog.Logger

	mu     sync.RWMutex
	models map[uuid.UUID]model.ModelMetadata
}

// New creates an empty registry. Call Load to warm it from the store.
func New(store Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		models: make(map[uuid.UUID]model.ModelMetadata),
	}
}

// Load warms the index from the store. A load failure leaves the registry
// empty but usable; models re-register as they are seen.
func (r *Registry) Load(ctx context.Context) {
	all, err := r.store.FindAllModels(ctx)
	if err != nil {
		r.logger.Warn("registry: load failed, starting empty", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range all {
		r.models[m.ID] = m
	}
	r.logger.Info("registry: loaded models", "count", len(all))
}

// Register validates, persists, and indexes a new model. The initial
// lifecycle status is development unless the deployment says otherwise.
func (r *Registry) Register(ctx context.Context, input model.ModelInput) (model.ModelMetadata, error) {
	if err := input.Validate(); err != nil {
		return model.ModelMetadata{}, err
	}

	now := time.Now().UTC()
	status := model.ModelDevelopment
	if input.Deployment.Environment == "production" {
		status = model.ModelProduction
	}

	m := model.ModelMetadata{
		ID:            uuid.New(),
		Name:          input.Name,
		Version:       input.Version,
		Type:          input.Type,
		Purpose:       input.Purpose,
		OrgID:         input.OrgID,
		TrainingData:  input.TrainingData,
		Performance:   input.Performance,
		Compliance:    input.Compliance,
		Deployment:    input.Deployment,
		Documentation: input.Documentation,
		Lifecycle: model.ModelLifecycle{
			Status:      status,
			CreatedAt:   now,
			LastUpdated: now,
		},
	}

	created, err := r.store.CreateModel(ctx, m)
	if err != nil {
		return model.ModelMetadata{}, fmt.Errorf("registry: register model: %w", err)
	}

	r.mu.Lock()
	r.models[created.ID] = created
	r.mu.Unlock()

	return created, nil
}

// Get returns a model by ID within an organization.
func (r *Registry) Get(orgID, id uuid.UUID) (model.ModelMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[id]
	if !ok || m.OrgID != orgID {
		return model.ModelMetadata{}, storage.ErrNotFound
	}
	return m, nil
}

// ListByOrg returns an organization's models sorted by name then version.
func (r *Registry) ListByOrg(orgID uuid.UUID) []model.ModelMetadata {
	r.mu.RLock()
	out := make([]model.ModelMetadata, 0)
	for _, m := range r.models {
		if m.OrgID == orgID {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// ApplyBiasAssessment folds a bias assessment into the model's rolling
// ethics summary. Fairness is 1 minus the overall bias score, floored at 0.
func (r *Registry) ApplyBiasAssessment(ctx context.Context, a model.BiasAssessmentResult) error {
	r.mu.Lock()
	m, ok := r.models[a.ModelID]
	if !ok || m.OrgID != a.OrgID {
		r.mu.Unlock()
		return storage.ErrNotFound
	}

	fairness := 1 - a.OverallBiasScore
	if fairness < 0 {
		fairness = 0
	}
	assessedAt := a.AssessedAt
	id := a.ID
	m.Ethics.FairnessScore = fairness
	m.Ethics.BiasByCategory = a.CategoryScores
	m.Ethics.LastBiasAssessment = &id
	m.Ethics.LastReviewedAt = &assessedAt
	m.Lifecycle.LastUpdated = time.Now().UTC()
	r.models[m.ID] = m
	ethics := m.Ethics
	r.mu.Unlock()

	if err := r.store.UpdateModelEthics(ctx, a.OrgID, a.ModelID, ethics); err != nil {
		return fmt.Errorf("registry: apply bias assessment: %w", err)
	}
	return nil
}

// ApplyEthicsAssessment folds an ethics assessment into the model's rolling
// ethics summary.
func (r *Registry) ApplyEthicsAssessment(ctx context.Context, a model.EthicsAssessment) error {
	r.mu.Lock()
	m, ok := r.models[a.ModelID]
	if !ok || m.OrgID != a.OrgID {
		r.mu.Unlock()
		return storage.ErrNotFound
	}

	assessedAt := a.AssessedAt
	m.Ethics.OverallEthicsScore = a.OverallScore
	m.Ethics.LastReviewedAt = &assessedAt
	m.Ethics.Approver = a.Assessor
	m.Lifecycle.LastUpdated = time.Now().UTC()
	r.models[m.ID] = m
	ethics := m.Ethics
	r.mu.Unlock()

	if err := r.store.UpdateModelEthics(ctx, a.OrgID, a.ModelID, ethics); err != nil {
		return fmt.Errorf("registry: apply ethics assessment: %w", err)
	}
	return nil
}
