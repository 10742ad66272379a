package ethicsreview

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
	stored   []model.EthicsAssessment
	storeErr error
}

func (f *fakeStore) CreateEthicsAssessment(_ context.Context, a model.EthicsAssessment) (model.EthicsAssessment, error) {
	if f.storeErr != nil {
		return model.EthicsAssessment{}, f.storeErr
	}
	f.stored = append(f.stored, a)
	return a, nil
}

type fakeCatalog struct {
	m        model.ModelMetadata
	getErr   error
	applied  int
	applyErr error
}

func (f *fakeCatalog) Get(_, _ uuid.UUID) (model.ModelMetadata, error) {
	if f.getErr != nil {
		return model.ModelMetadata{}, f.getErr
	}
	return f.m, nil
}

func (f *fakeCatalog) ApplyEthicsAssessment(_ context.Context, _ model.EthicsAssessment) error {
	f.applied++
	return f.applyErr
}

// fixedScorer returns the same overall regardless of the model.
type fixedScorer struct{ score float64 }

func (s fixedScorer) ScorePrinciples(_ model.ModelMetadata) []model.PrincipleScore {
	out := make([]model.PrincipleScore, len(Principles))
	for i, p := range Principles {
		out[i] = model.PrincipleScore{Principle: p, Score: s.score}
	}
	return out
}

func testEngine(store *fakeStore, catalog *fakeCatalog) *Engine {
	return New(store, catalog, slog.New(slog.DiscardHandler))
}

func TestVerdictBoundaries(t *testing.T) {
	tests := []struct {
		overall       float64
		wantStatus    model.EthicsStatus
		wantRisk      model.RiskLevel
		wantOversight model.OversightLevel
	}{
		{4.9, model.EthicsRejected, model.RiskCritical, model.OversightFull},
		{5.0, model.EthicsConditional, model.RiskHigh, model.OversightExtensive},
		{6.5, model.EthicsConditional, model.RiskMedium, model.OversightModerate},
		{6.9, model.EthicsConditional, model.RiskMedium, model.OversightModerate},
		{7.0, model.EthicsApproved, model.RiskMedium, model.OversightModerate},
		{8.0, model.EthicsApproved, model.RiskLow, model.OversightModerate},
	}

	for _, tt := range tests {
		store := &fakeStore{}
		catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New()}}
		e := testEngine(store, catalog).WithScorer(fixedScorer{score: tt.overall})

		got, err := e.AssessEthics(context.Background(), uuid.New(), catalog.m.ID, "board", "internal")
		require.NoError(t, err)
		assert.InDelta(t, tt.overall, got.OverallScore, 1e-9)
		assert.Equal(t, tt.wantStatus, got.Status, "overall %.1f", tt.overall)
		assert.Equal(t, tt.wantRisk, got.RiskLevel, "overall %.1f", tt.overall)
		assert.Equal(t, tt.wantOversight, got.OversightPlan, "overall %.1f", tt.overall)
		assert.True(t, got.NextReview.After(got.AssessedAt))
		assert.Len(t, got.PrincipleScores, len(Principles))
	}
}

func TestAssessModelNotFound(t *testing.T) {
	e := testEngine(&fakeStore{}, &fakeCatalog{getErr: storage.ErrNotFound})
	_, err := e.AssessEthics(context.Background(), uuid.New(), uuid.New(), "board", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssessStoreFailure(t *testing.T) {
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New()}}
	e := testEngine(&fakeStore{storeErr: errors.New("db down")}, catalog)

	_, err := e.AssessEthics(context.Background(), uuid.New(), uuid.New(), "board", "")
	require.Error(t, err)
	assert.Zero(t, catalog.applied)
}

func TestAssessWriteBackFailureNonFatal(t *testing.T) {
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New()}, applyErr: errors.New("registry down")}
	e := testEngine(&fakeStore{}, catalog)

	got, err := e.AssessEthics(context.Background(), uuid.New(), uuid.New(), "board", "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
}

func TestDefaultFrameworkIsInternal(t *testing.T) {
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New()}}
	e := testEngine(&fakeStore{}, catalog)

	got, err := e.AssessEthics(context.Background(), uuid.New(), uuid.New(), "board", "")
	require.NoError(t, err)
	assert.Equal(t, "internal", got.Framework)
}

func TestMetadataScorerWellGovernedModel(t *testing.T) {
	id := uuid.New()
	m := model.ModelMetadata{
		Purpose:       "tax guidance triage",
		Documentation: "Model card: trained on anonymized ledger entries, validated quarterly, known limitations documented including cold-start behavior for new entity types and reduced accuracy on multi-state filings. Escalation paths defined.",
		TrainingData:  model.TrainingDataSummary{ContainsPII: false, Provenance: "internal ledger exports"},
		Deployment:    model.DeploymentInfo{HumanOversight: true},
		Ethics: model.ModelEthicsSummary{
			FairnessScore:      0.9,
			LastBiasAssessment: &id,
			Approver:           "ethics-board",
		},
	}

	scores := MetadataScorer{}.ScorePrinciples(m)
	require.Len(t, scores, 5)

	byPrinciple := map[string]model.PrincipleScore{}
	for _, s := range scores {
		byPrinciple[s.Principle] = s
	}
	assert.InDelta(t, 9.0, byPrinciple["fairness"].Score, 1e-9)
	assert.InDelta(t, 9.0, byPrinciple["transparency"].Score, 1e-9)
	assert.InDelta(t, 10.0, byPrinciple["accountability"].Score, 1e-9)
	assert.InDelta(t, 9.0, byPrinciple["privacy"].Score, 1e-9)
	assert.InDelta(t, 8.0, byPrinciple["human_dignity"].Score, 1e-9)

	// Well governed model lands in approved territory.
	assert.Equal(t, model.EthicsApproved, statusFor(meanScore(scores), riskLevelFor(meanScore(scores))))
}

func TestMetadataScorerBareModel(t *testing.T) {
	scores := MetadataScorer{}.ScorePrinciples(model.ModelMetadata{
		TrainingData: model.TrainingDataSummary{ContainsPII: true},
	})

	overall := meanScore(scores)
	// 5 + 3 + 3 + 4 + 5 over five principles.
	assert.InDelta(t, 4.0, overall, 1e-9)
	assert.Equal(t, model.EthicsRejected, statusFor(overall, riskLevelFor(overall)))

	for _, s := range scores {
		if s.Principle == "fairness" || s.Principle == "transparency" {
			assert.NotEmpty(t, s.Recommendations, s.Principle)
		}
	}
}
