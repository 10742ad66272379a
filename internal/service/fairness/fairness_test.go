package fairness

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
	stored   []model.BiasAssessmentResult
	storeErr error
}

func (f *fakeStore) CreateBiasAssessment(_ context.Context, a model.BiasAssessmentResult) (model.BiasAssessmentResult, error) {
	if f.storeErr != nil {
		return model.BiasAssessmentResult{}, f.storeErr
	}
	f.stored = append(f.stored, a)
	return a, nil
}

type fakeCatalog struct {
	m          model.ModelMetadata
	getErr     error
	applied    []model.BiasAssessmentResult
	applyErr   error
	applyCalls int
}

func (f *fakeCatalog) Get(_, _ uuid.UUID) (model.ModelMetadata, error) {
	if f.getErr != nil {
		return model.ModelMetadata{}, f.getErr
	}
	return f.m, nil
}

func (f *fakeCatalog) ApplyBiasAssessment(_ context.Context, a model.BiasAssessmentResult) error {
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, a)
	return nil
}

func testEngine(store *fakeStore, catalog *fakeCatalog) *Engine {
	return New(store, catalog, slog.New(slog.DiscardHandler))
}

// cases where every group sees identical treatment.
func balancedCases() []model.BiasTestCase {
	var out []model.BiasTestCase
	for _, gender := range []string{"male", "female"} {
		for i := 0; i < 10; i++ {
			predicted := i < 5
			out = append(out, model.BiasTestCase{
				Group:     map[string]string{"gender": gender},
				Actual:    predicted,
				Predicted: predicted,
				Score:     0.5,
			})
		}
	}
	return out
}

// cases where one gender group gets positive predictions four times as often.
func skewedCases() []model.BiasTestCase {
	var out []model.BiasTestCase
	for i := 0; i < 10; i++ {
		out = append(out, model.BiasTestCase{
			Group:     map[string]string{"gender": "male"},
			Actual:    true,
			Predicted: i < 8,
			Score:     0.8,
		})
	}
	for i := 0; i < 10; i++ {
		out = append(out, model.BiasTestCase{
			Group:     map[string]string{"gender": "female"},
			Actual:    true,
			Predicted: i < 2,
			Score:     0.8,
		})
	}
	return out
}

func TestAssessEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New(), OrgID: uuid.New()}}
	e := testEngine(store, catalog)

	got, err := e.AssessModelBias(context.Background(), catalog.m.OrgID, catalog.m.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, got.BatchSize)
	assert.Equal(t, model.BiasPassed, got.Status)
	assert.Zero(t, got.OverallBiasScore)
	assert.Zero(t, got.Fairness.DemographicParity)
	assert.Empty(t, got.DetectedBiases)
	// All categories reported even with nothing to measure.
	require.Len(t, got.CategoryScores, 4)
	for _, c := range []string{"demographic", "socioeconomic", "geographic", "temporal"} {
		assert.Contains(t, got.CategoryScores, c)
	}
	assert.True(t, got.NextAssessment.After(got.AssessedAt))
}

func TestAssessBalancedBatchPasses(t *testing.T) {
	store := &fakeStore{}
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New(), OrgID: uuid.New()}}
	e := testEngine(store, catalog)

	got, err := e.AssessModelBias(context.Background(), catalog.m.OrgID, catalog.m.ID, balancedCases())
	require.NoError(t, err)

	assert.Equal(t, model.BiasPassed, got.Status)
	assert.Zero(t, got.Fairness.DemographicParity)
	assert.Zero(t, got.Fairness.EqualizedOdds)
	assert.Empty(t, got.DetectedBiases)
	assert.Len(t, store.stored, 1)
	assert.Equal(t, 1, catalog.applyCalls)
}

func TestAssessSkewedBatchFails(t *testing.T) {
	store := &fakeStore{}
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New(), OrgID: uuid.New()}}
	e := testEngine(store, catalog)

	got, err := e.AssessModelBias(context.Background(), catalog.m.OrgID, catalog.m.ID, skewedCases())
	require.NoError(t, err)

	// 80% vs 20% positive prediction rate.
	assert.InDelta(t, 0.6, got.Fairness.DemographicParity, 1e-9)
	assert.InDelta(t, 0.6, got.Fairness.EqualOpportunity, 1e-9)
	assert.InDelta(t, 0.6, got.CategoryScores["demographic"], 1e-9)
	// Both groups are all actual-positive with mean score 0.8.
	assert.InDelta(t, 0.2, got.Fairness.Calibration, 1e-9)
	assert.Zero(t, got.LabelBias)
	// Equal group sizes, no representation gap.
	assert.Zero(t, got.RepresentationGaps["gender"])

	require.Len(t, got.DetectedBiases, 1)
	assert.Equal(t, "demographic_bias", got.DetectedBiases[0].Type)
	assert.Equal(t, model.SeverityCritical, got.DetectedBiases[0].Severity)
	assert.Equal(t, []string{"female", "male"}, got.DetectedBiases[0].AffectedGroups)

	// A critical pattern fails the assessment regardless of the mean.
	assert.Equal(t, model.BiasFailed, got.Status)
	assert.NotEmpty(t, got.Recommendations)
}

func TestAssessUnknownAttributeCountsAsDemographic(t *testing.T) {
	e := testEngine(&fakeStore{}, &fakeCatalog{})

	var cases []model.BiasTestCase
	for i := 0; i < 10; i++ {
		cases = append(cases, model.BiasTestCase{
			Group:     map[string]string{"handedness": "left"},
			Predicted: true, Actual: true, Score: 1,
		})
	}
	for i := 0; i < 10; i++ {
		cases = append(cases, model.BiasTestCase{
			Group:     map[string]string{"handedness": "right"},
			Predicted: false, Actual: false, Score: 0,
		})
	}

	got := e.evaluate(cases)
	assert.InDelta(t, 1.0, got.CategoryScores["demographic"], 1e-9)
}

func TestAssessModelNotFound(t *testing.T) {
	catalog := &fakeCatalog{getErr: storage.ErrNotFound}
	e := testEngine(&fakeStore{}, catalog)

	_, err := e.AssessModelBias(context.Background(), uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssessStoreFailure(t *testing.T) {
	store := &fakeStore{storeErr: errors.New("db down")}
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New()}}
	e := testEngine(store, catalog)

	_, err := e.AssessModelBias(context.Background(), uuid.New(), uuid.New(), nil)
	require.Error(t, err)
	assert.Zero(t, catalog.applyCalls)
}

func TestAssessWriteBackFailureNonFatal(t *testing.T) {
	store := &fakeStore{}
	catalog := &fakeCatalog{m: model.ModelMetadata{ID: uuid.New()}, applyErr: errors.New("registry down")}
	e := testEngine(store, catalog)

	got, err := e.AssessModelBias(context.Background(), uuid.New(), uuid.New(), balancedCases())
	require.NoError(t, err)
	assert.Equal(t, model.BiasPassed, got.Status)
}

func TestStatusBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		overall  float64
		detected []model.DetectedBias
		want     model.BiasStatus
	}{
		{"clean", 0.10, nil, model.BiasPassed},
		{"just above warning", 0.101, nil, model.BiasWarning},
		{"warning on any detection", 0.05, []model.DetectedBias{{Severity: model.SeverityLow}}, model.BiasWarning},
		{"mitigation threshold", 0.151, nil, model.BiasRequiresMitigation},
		{"mitigation on high severity", 0.05, []model.DetectedBias{{Severity: model.SeverityHigh}}, model.BiasRequiresMitigation},
		{"upper mitigation edge", 0.30, nil, model.BiasRequiresMitigation},
		{"failed threshold", 0.31, nil, model.BiasFailed},
		{"failed on critical severity", 0.05, []model.DetectedBias{{Severity: model.SeverityCritical}}, model.BiasFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.overall, tt.detected))
		})
	}
}

func TestSeverityTiers(t *testing.T) {
	assert.Equal(t, model.SeverityLow, severityFor(0.15))
	assert.Equal(t, model.SeverityMedium, severityFor(0.16))
	assert.Equal(t, model.SeverityHigh, severityFor(0.26))
	assert.Equal(t, model.SeverityCritical, severityFor(0.41))
}

func TestRepresentationGap(t *testing.T) {
	e := testEngine(&fakeStore{}, &fakeCatalog{})

	// 15 of one group, 5 of the other: shares 0.75 and 0.25.
	var cases []model.BiasTestCase
	for i := 0; i < 15; i++ {
		cases = append(cases, model.BiasTestCase{Group: map[string]string{"region": "urban"}})
	}
	for i := 0; i < 5; i++ {
		cases = append(cases, model.BiasTestCase{Group: map[string]string{"region": "rural"}})
	}

	got := e.evaluate(cases)
	assert.InDelta(t, 0.5, got.RepresentationGaps["region"], 1e-9)
	assert.InDelta(t, 0.5, got.SelectionBias, 1e-9)
}
