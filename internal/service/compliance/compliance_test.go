package compliance

import (
	"context"
	"errors"
	"log/slog"
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
	stored    []model.ComplianceReport
	storeErr  error
}

func (f *fakeStore) FindDecisions(_ context.Context, _ uuid.UUID, _ model.TimeRange) ([]model.DecisionRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.decisions, nil
}

func (f *fakeStore) CreateComplianceReport(_ context.Context, r model.ComplianceReport) (model.ComplianceReport, error) {
	if f.storeErr != nil {
		return model.ComplianceReport{}, f.storeErr
	}
	f.stored = append(f.stored, r)
	return r, nil
}

func testService(store *fakeStore) *Service {
	return New(store, slog.New(slog.DiscardHandler))
}

func period() model.TimeRange {
	return model.TimeRange{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cleanDecision(modelName string) model.DecisionRecord {
	return model.DecisionRecord{
		ID:          uuid.New(),
		ModelName:   modelName,
		RiskLevel:   model.RiskLow,
		EthicsCheck: model.EthicsCheck{Passed: true},
		LatencyMS:   100,
	}
}

func TestGenerateReportEmptyCorpus(t *testing.T) {
	store := &fakeStore{}
	s := testService(store)

	got, err := s.GenerateReport(context.Background(), uuid.New(), "sox", period(), "auditor")
	require.NoError(t, err)

	// Nothing in the period can violate a requirement.
	assert.Equal(t, model.Compliant, got.Summary.Level)
	assert.InDelta(t, 1.0, got.Summary.OverallScore, 1e-9)
	assert.Equal(t, 5, got.Summary.Met)
	assert.Zero(t, got.Summary.NotMet)
	assert.Empty(t, got.Systems)
	assert.Zero(t, got.AuditTrail.DecisionCount)
	assert.True(t, got.DataGovernance.TenantIsolation)
	assert.True(t, got.NextReview.After(got.GeneratedAt))
	assert.Len(t, store.stored, 1)
}

func TestGenerateReportCleanCorpus(t *testing.T) {
	store := &fakeStore{decisions: []model.DecisionRecord{
		cleanDecision("tax-advisor"),
		cleanDecision("tax-advisor"),
		cleanDecision("doc-classifier"),
	}}
	s := testService(store)

	got, err := s.GenerateReport(context.Background(), uuid.New(), "gdpr", period(), "auditor")
	require.NoError(t, err)

	assert.Equal(t, model.Compliant, got.Summary.Level)
	require.Len(t, got.Systems, 2)
	assert.Equal(t, "doc-classifier", got.Systems[0].ModelName)
	assert.Equal(t, "tax-advisor", got.Systems[1].ModelName)
	assert.Equal(t, 2, got.Systems[1].DecisionCount)
	assert.InDelta(t, 1.0, got.Systems[1].Score, 1e-9)
	assert.InDelta(t, 100.0, got.AuditTrail.MeanLatencyMS, 1e-9)
}

func TestGenerateReportFlaggedCorpus(t *testing.T) {
	// 2 of 10 decisions lack review (over the 10% tolerance), 1 of 10
	// lacks a data source (at the tolerance edge).
	flagged := cleanDecision("tax-advisor")
	flagged.ComplianceFlags = []string{"sox_unreviewed_financial_decision"}
	flagged2 := cleanDecision("tax-advisor")
	flagged2.ComplianceFlags = []string{"sox_unreviewed_financial_decision", "sox_missing_data_source"}

	decisions := []model.DecisionRecord{flagged, flagged2}
	for i := 0; i < 7; i++ {
		decisions = append(decisions, cleanDecision("tax-advisor"))
	}
	decisions = append(decisions, cleanDecision("doc-classifier"))
	store := &fakeStore{decisions: decisions}
	s := testService(store)

	got, err := s.GenerateReport(context.Background(), uuid.New(), "sox", period(), "auditor")
	require.NoError(t, err)

	assert.Equal(t, model.PartiallyCompliant, got.Summary.Level)
	assert.NotZero(t, got.Summary.NotMet)
	assert.Less(t, got.Summary.OverallScore, 1.0)

	byID := map[string]model.RequirementResult{}
	for _, r := range got.Requirements {
		byID[r.ID] = r
	}
	assert.Equal(t, model.RequirementNotMet, byID["SOX-302"].Status)
	// One violation in ten decisions sits inside the tolerance band.
	assert.Equal(t, model.RequirementPartiallyMet, byID["SOX-404"].Status)
	assert.Equal(t, model.RequirementMet, byID["SOX-REC"].Status)

	assert.NotEmpty(t, got.Risk.TopRisks)
	assert.Contains(t, got.Risk.TopRisks[0], "sox_unreviewed_financial_decision")

	// Per-system rollup: tax-advisor had 2 flagged decisions of 9.
	require.Len(t, got.Systems, 2)
	assert.Equal(t, 2, got.Systems[1].FlaggedCount)
	assert.InDelta(t, 7.0/9.0, got.Systems[1].Score, 1e-9)
}

func TestGenerateReportPartialWithinTolerance(t *testing.T) {
	// One missing data source in ten decisions lands inside the SOX-404
	// tolerance band: the requirement is partially met, nothing is not
	// met, and the report stays fully compliant.
	flagged := cleanDecision("tax-advisor")
	flagged.ComplianceFlags = []string{"sox_missing_data_source"}

	decisions := []model.DecisionRecord{flagged}
	for i := 0; i < 9; i++ {
		decisions = append(decisions, cleanDecision("tax-advisor"))
	}
	store := &fakeStore{decisions: decisions}
	s := testService(store)

	got, err := s.GenerateReport(context.Background(), uuid.New(), "sox", period(), "auditor")
	require.NoError(t, err)

	assert.Zero(t, got.Summary.NotMet)
	assert.Equal(t, 1, got.Summary.PartiallyMet)
	assert.Equal(t, model.Compliant, got.Summary.Level)
	assert.InDelta(t, 4.0/5.0, got.Summary.OverallScore, 1e-9)
}

func TestSummarizeLevels(t *testing.T) {
	results := func(met, partial, notMet int) []model.RequirementResult {
		var out []model.RequirementResult
		for i := 0; i < met; i++ {
			out = append(out, model.RequirementResult{Status: model.RequirementMet})
		}
		for i := 0; i < partial; i++ {
			out = append(out, model.RequirementResult{Status: model.RequirementPartiallyMet})
		}
		for i := 0; i < notMet; i++ {
			out = append(out, model.RequirementResult{Status: model.RequirementNotMet})
		}
		return out
	}

	cases := []struct {
		name                 string
		met, partial, notMet int
		level                model.ComplianceLevel
		score                float64
	}{
		{"all met", 5, 0, 0, model.Compliant, 1.0},
		{"partials only", 3, 2, 0, model.Compliant, 0.6},
		{"one not met of twenty", 19, 0, 1, model.MostlyCompliant, 0.95},
		{"not met at ten percent", 9, 0, 1, model.PartiallyCompliant, 0.9},
		{"one not met of five", 4, 0, 1, model.PartiallyCompliant, 0.8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sum := summarize(results(tc.met, tc.partial, tc.notMet))
			assert.Equal(t, tc.level, sum.Level)
			assert.InDelta(t, tc.score, sum.OverallScore, 1e-9)
		})
	}
}

func TestGenerateReportHighRiskAccountability(t *testing.T) {
	d := cleanDecision("risk-scorer")
	d.RiskLevel = model.RiskHigh
	d.HumanReviewRequired = false

	store := &fakeStore{decisions: []model.DecisionRecord{d}}
	s := testService(store)

	got, err := s.GenerateReport(context.Background(), uuid.New(), "sox", period(), "auditor")
	require.NoError(t, err)

	byID := map[string]model.RequirementResult{}
	for _, r := range got.Requirements {
		byID[r.ID] = r
	}
	assert.Equal(t, model.RequirementNotMet, byID["SOX-ACC"].Status)
}

func TestGenerateReportUnsupportedFramework(t *testing.T) {
	s := testService(&fakeStore{})
	_, err := s.GenerateReport(context.Background(), uuid.New(), "hipaa", period(), "auditor")
	assert.True(t, model.IsValidation(err))
}

func TestGenerateReportInvalidPeriod(t *testing.T) {
	s := testService(&fakeStore{})
	_, err := s.GenerateReport(context.Background(), uuid.New(), "sox", model.TimeRange{}, "auditor")
	assert.True(t, model.IsValidation(err))
}

func TestGenerateReportStoreFailure(t *testing.T) {
	s := testService(&fakeStore{storeErr: errors.New("db down")})
	_, err := s.GenerateReport(context.Background(), uuid.New(), "sox", period(), "auditor")
	assert.Error(t, err)
}

func TestGenerateReportLoadFailure(t *testing.T) {
	s := testService(&fakeStore{findErr: errors.New("db down")})
	_, err := s.GenerateReport(context.Background(), uuid.New(), "soc2", period(), "auditor")
	assert.Error(t, err)
}
