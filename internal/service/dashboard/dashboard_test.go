package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansa-ai/kansa/internal/model"
)

type fakeStore struct {
	decisions []model.DecisionRecord
	findErr   error
	findCalls atomic.Int64
	alerts    []model.Alert
	alertsErr error
}

func (f *fakeStore) FindDecisions(_ context.Context, _ uuid.UUID, _ model.TimeRange) ([]model.DecisionRecord, error) {
	f.findCalls.Add(1)
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.decisions, nil
}

func (f *fakeStore) ListActiveAlerts(_ context.Context, _ uuid.UUID) ([]model.Alert, error) {
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	return f.alerts, nil
}

type fakeCache struct {
	mu      sync.Mutex
	records []model.DecisionRecord
}

func (f *fakeCache) Snapshot(_ uuid.UUID) []model.DecisionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.DecisionRecord(nil), f.records...)
}

type fakeCatalog struct {
	models []model.ModelMetadata
}

func (f *fakeCatalog) ListByOrg(_ uuid.UUID) []model.ModelMetadata {
	return f.models
}

func testService(store *fakeStore, c *fakeCache, catalog *fakeCatalog) *Service {
	return New(store, c, catalog, 0.2, slog.New(slog.DiscardHandler))
}

func timeframe() model.TimeRange {
	return model.TimeRange{
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC),
	}
}

func record(day int, name string, level model.RiskLevel) model.DecisionRecord {
	return model.DecisionRecord{
		ID:        uuid.New(),
		Timestamp: time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC),
		ModelName: name,
		RiskLevel: level,
	}
}

func TestBuildFromCache(t *testing.T) {
	modelID := uuid.New()
	store := &fakeStore{alerts: []model.Alert{{ID: uuid.New()}}}
	c := &fakeCache{}

	r1 := record(1, "tax-advisor", model.RiskLow)
	r2 := record(1, "tax-advisor", model.RiskHigh)
	r2.HumanReviewRequired = true
	r3 := record(3, "doc-classifier", model.RiskCritical)
	r3.BiasIndicators.Score = 0.3
	outOfRange := record(20, "tax-advisor", model.RiskLow)
	c.records = []model.DecisionRecord{r1, r2, r3, outOfRange}

	catalog := &fakeCatalog{models: []model.ModelMetadata{{ID: modelID, Name: "tax-advisor"}}}
	s := testService(store, c, catalog)

	got, err := s.Build(context.Background(), uuid.New(), timeframe())
	require.NoError(t, err)

	assert.Equal(t, 3, got.Totals.Decisions)
	assert.Equal(t, 2, got.Totals.HighRisk)
	assert.Equal(t, 1, got.Totals.HumanReview)
	assert.Equal(t, 1, got.Totals.BiasIncidents)

	require.Len(t, got.DailyCounts, 2)
	assert.Equal(t, 2, got.DailyCounts[0].Count)
	assert.True(t, got.DailyCounts[0].Day.Before(got.DailyCounts[1].Day))

	assert.Equal(t, 1, got.RiskHistogram[model.RiskLow])
	assert.Equal(t, 1, got.RiskHistogram[model.RiskHigh])
	assert.Equal(t, 1, got.RiskHistogram[model.RiskCritical])
	assert.Equal(t, 0, got.RiskHistogram[model.RiskMedium])

	require.Len(t, got.ModelRisk, 2)
	assert.Equal(t, "doc-classifier", got.ModelRisk[0].ModelName)
	assert.Equal(t, model.RiskCritical, got.ModelRisk[0].RiskLevel)
	assert.Equal(t, "tax-advisor", got.ModelRisk[1].ModelName)
	assert.Equal(t, model.RiskHigh, got.ModelRisk[1].RiskLevel)
	assert.Equal(t, 2, got.ModelRisk[1].DecisionCount)
	assert.Equal(t, modelID, got.ModelRisk[1].ModelID)

	assert.Len(t, got.ActiveAlerts, 1)
	// Cache served the read; the store was only hit for alerts.
	assert.EqualValues(t, 0, store.findCalls.Load())
}

func TestBuildFallsBackToStore(t *testing.T) {
	store := &fakeStore{decisions: []model.DecisionRecord{record(2, "tax-advisor", model.RiskMedium)}}
	s := testService(store, &fakeCache{}, &fakeCatalog{})

	got, err := s.Build(context.Background(), uuid.New(), timeframe())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Totals.Decisions)
	assert.EqualValues(t, 1, store.findCalls.Load())
}

func TestBuildDegradesOnStoreFailure(t *testing.T) {
	store := &fakeStore{findErr: errors.New("db down"), alertsErr: errors.New("db down")}
	s := testService(store, &fakeCache{}, &fakeCatalog{})

	got, err := s.Build(context.Background(), uuid.New(), timeframe())
	require.NoError(t, err)
	assert.Zero(t, got.Totals.Decisions)
	assert.NotNil(t, got.ActiveAlerts)
	assert.Empty(t, got.ActiveAlerts)
}

func TestBuildInvalidTimeframe(t *testing.T) {
	s := testService(&fakeStore{}, &fakeCache{}, &fakeCatalog{})
	_, err := s.Build(context.Background(), uuid.New(), model.TimeRange{})
	assert.True(t, model.IsValidation(err))
}

func TestBuildCollapsesConcurrentRequests(t *testing.T) {
	store := &fakeStore{}
	s := testService(store, &fakeCache{}, &fakeCatalog{})
	orgID := uuid.New()
	tr := timeframe()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Build(context.Background(), orgID, tr)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Collapsed requests share one store read.
	assert.Less(t, store.findCalls.Load(), int64(16))
}

type ctxAwareStore struct {
	fakeStore
}

func (c *ctxAwareStore) FindDecisions(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) ([]model.DecisionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fakeStore.FindDecisions(ctx, orgID, tr)
}

func TestBuildSurvivesCallerCancellation(t *testing.T) {
	tr := timeframe()
	store := &ctxAwareStore{fakeStore: fakeStore{
		decisions: []model.DecisionRecord{record(2, "tax-advisor", model.RiskLow)},
	}}
	s := New(store, &fakeCache{}, &fakeCatalog{}, 0.2, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A collapsed build outlives the request that started it, so even the
	// initiating caller's cancellation must not starve the store read.
	got, err := s.Build(ctx, uuid.New(), tr)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Totals.Decisions)
}
