package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansa-ai/kansa/internal/model"
	"github.com/kansa-ai/kansa/internal/storage"
)

type fakeStore struct {
	models       []model.ModelMetadata
	findErr      error
	createErr    error
	ethicsWrites int
}

func (f *fakeStore) CreateModel(_ context.Context, m model.ModelMetadata) (model.ModelMetadata, error) {
	if f.createErr != nil {
		return model.ModelMetadata{}, f.createErr
	}
	f.models = append(f.models, m)
	return m, nil
}

func (f *fakeStore) FindAllModels(_ context.Context) ([]model.ModelMetadata, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.models, nil
}

func (f *fakeStore) UpdateModelEthics(_ context.Context, _, _ uuid.UUID, _ model.ModelEthicsSummary) error {
	f.ethicsWrites++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validInput(orgID uuid.UUID) model.ModelInput {
	return model.ModelInput{
		Name:    "tax-advisor",
		Version: "2.0.0",
		Type:    "recommendation",
		OrgID:   orgID,
	}
}

func TestRegisterAndGet(t *testing.T) {
	store := &fakeStore{}
	r := New(store, discardLogger())
	orgID := uuid.New()

	m, err := r.Register(context.Background(), validInput(orgID))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, model.ModelDevelopment, m.Lifecycle.Status)

	got, err := r.Get(orgID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "tax-advisor", got.Name)

	_, err = r.Get(uuid.New(), m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegisterProductionDeployment(t *testing.T) {
	r := New(&fakeStore{}, discardLogger())
	input := validInput(uuid.New())
	input.Deployment.Environment = "production"

	m, err := r.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, model.ModelProduction, m.Lifecycle.Status)
}

func TestRegisterInvalidInput(t *testing.T) {
	r := New(&fakeStore{}, discardLogger())
	input := validInput(uuid.New())
	input.Name = ""

	_, err := r.Register(context.Background(), input)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRegisterStoreFailure(t *testing.T) {
	store := &fakeStore{createErr: errors.New("db down")}
	r := New(store, discardLogger())

	_, err := r.Register(context.Background(), validInput(uuid.New()))
	require.Error(t, err)

	// A failed persist must not leave a phantom in the index.
	assert.Empty(t, r.ListByOrg(uuid.Nil))
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	store := &fakeStore{findErr: errors.New("db down")}
	r := New(store, discardLogger())

	r.Load(context.Background())
	assert.Empty(t, r.ListByOrg(uuid.New()))
}

func TestListByOrgSorted(t *testing.T) {
	store := &fakeStore{}
	r := New(store, discardLogger())
	orgID := uuid.New()

	for _, nv := range [][2]string{{"b-model", "1.0.0"}, {"a-model", "2.0.0"}, {"a-model", "1.0.0"}} {
		input := validInput(orgID)
		input.Name, input.Version = nv[0], nv[1]
		_, err := r.Register(context.Background(), input)
		require.NoError(t, err)
	}
	// Another org's model must not leak into the listing.
	_, err := r.Register(context.Background(), validInput(uuid.New()))
	require.NoError(t, err)

	got := r.ListByOrg(orgID)
	require.Len(t, got, 3)
	assert.Equal(t, "a-model", got[0].Name)
	assert.Equal(t, "1.0.0", got[0].Version)
	assert.Equal(t, "a-model", got[1].Name)
	assert.Equal(t, "2.0.0", got[1].Version)
	assert.Equal(t, "b-model", got[2].Name)
}

func TestApplyBiasAssessment(t *testing.T) {
	store := &fakeStore{}
	r := New(store, discardLogger())
	orgID := uuid.New()

	m, err := r.Register(context.Background(), validInput(orgID))
	require.NoError(t, err)

	a := model.BiasAssessmentResult{
		ID:               uuid.New(),
		ModelID:          m.ID,
		OrgID:            orgID,
		OverallBiasScore: 0.3,
		CategoryScores:   map[string]float64{"demographic": 0.3},
	}
	require.NoError(t, r.ApplyBiasAssessment(context.Background(), a))
	assert.Equal(t, 1, store.ethicsWrites)

	got, err := r.Get(orgID, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.Ethics.FairnessScore, 1e-9)
	require.NotNil(t, got.Ethics.LastBiasAssessment)
	assert.Equal(t, a.ID, *got.Ethics.LastBiasAssessment)

	a.ModelID = uuid.New()
	assert.ErrorIs(t, r.ApplyBiasAssessment(context.Background(), a), storage.ErrNotFound)
}

func TestApplyEthicsAssessment(t *testing.T) {
	store := &fakeStore{}
	r := New(store, discardLogger())
	orgID := uuid.New()

	m, err := r.Register(context.Background(), validInput(orgID))
	require.NoError(t, err)

	require.NoError(t, r.ApplyEthicsAssessment(context.Background(), model.EthicsAssessment{
		ModelID:      m.ID,
		OrgID:        orgID,
		Assessor:     "ethics-board",
		OverallScore: 7.5,
	}))

	got, err := r.Get(orgID, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, got.Ethics.OverallEthicsScore, 1e-9)
	assert.Equal(t, "ethics-board", got.Ethics.Approver)
}
