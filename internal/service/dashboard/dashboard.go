// Package dashboard assembles the read-only governance rollup for an
// organization.
//
// Reads are served from the in-memory decision cache when it has data for
// the timeframe, falling back to the store otherwise. Concurrent requests
// for the same organization and timeframe collapse into one computation.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kansa-ai/kansa/internal/model"
)

// Store is the fallback read surface when the cache has nothing cached.
type Store interface {
	FindDecisions(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) ([]model.DecisionRecord, error)
	ListActiveAlerts(ctx context.Context, orgID uuid.UUID) ([]model.Alert, error)
}

// Cache is the hot read path. *cache.DecisionCache satisfies it.
type Cache interface {
	Snapshot(orgID uuid.UUID) []model.DecisionRecord
}

// Catalog resolves model names to registered IDs for the per-model rollup.
type Catalog interface {
	ListByOrg(orgID uuid.UUID) []model.ModelMetadata
}

// Service builds dashboards.
type Service struct {
	store   Store
	cache   Cache
	catalog Catalog
	logger  *slog.Logger

	biasThreshold float64
	group         singleflight.Group
	now           func() time.Time
}

// New creates a dashboard service. biasThreshold is the per-decision bias
// score above which a decision counts as a bias incident.
func New(store Store, c Cache, catalog Catalog, biasThreshold float64, logger *slog.Logger) *Service {
	return &Service{
		store:         store,
		cache:         c,
		catalog:       catalog,
		logger:        logger,
		biasThreshold: biasThreshold,
		now:           time.Now,
	}
}

// Build assembles the dashboard for one organization and timeframe.
// Alert lookup failures degrade to an empty alert list.
func (s *Service) Build(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) (model.Dashboard, error) {
	if err := tr.Validate(); err != nil {
		return model.Dashboard{}, err
	}

	key := fmt.Sprintf("%s/%d/%d", orgID, tr.From.Unix(), tr.To.Unix())
	v, err, _ := s.group.Do(key, func() (any, error) {
		// The result is shared with collapsed callers, so the build must
		// not die with whichever request happened to arrive first.
		return s.build(context.WithoutCancel(ctx), orgID, tr)
	})
	if err != nil {
		return model.Dashboard{}, err
	}
	return v.(model.Dashboard), nil
}

func (s *Service) build(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) (model.Dashboard, error) {
	decisions := s.load(ctx, orgID, tr)

	alerts, err := s.store.ListActiveAlerts(ctx, orgID)
	if err != nil {
		s.logger.Warn("dashboard: alert lookup failed", "org_id", orgID, "error", err)
		alerts = []model.Alert{}
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}

	return model.Dashboard{
		OrgID:         orgID,
		Timeframe:     tr,
		Totals:        s.totals(decisions),
		DailyCounts:   dailyCounts(decisions),
		RiskHistogram: riskHistogram(decisions),
		ModelRisk:     s.modelRisk(orgID, decisions),
		ActiveAlerts:  alerts,
		GeneratedAt:   s.now().UTC(),
	}, nil
}

// load prefers the cache; an empty snapshot for the timeframe falls back to
// the store, and a store failure degrades to an empty corpus.
func (s *Service) load(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) []model.DecisionRecord {
	var inRange []model.DecisionRecord
	for _, d := range s.cache.Snapshot(orgID) {
		if tr.Contains(d.Timestamp) {
			inRange = append(inRange, d)
		}
	}
	if len(inRange) > 0 {
		return inRange
	}

	stored, err := s.store.FindDecisions(ctx, orgID, tr)
	if err != nil {
		s.logger.Warn("dashboard: decision lookup failed", "org_id", orgID, "error", err)
		return nil
	}
	return stored
}

func (s *Service) totals(decisions []model.DecisionRecord) model.DashboardTotals {
	var t model.DashboardTotals
	t.Decisions = len(decisions)
	for _, d := range decisions {
		if d.RiskLevel.AtLeast(model.RiskHigh) {
			t.HighRisk++
		}
		if d.HumanReviewRequired {
			t.HumanReview++
		}
		if d.BiasIndicators.Score > s.biasThreshold {
			t.BiasIncidents++
		}
	}
	return t
}

func dailyCounts(decisions []model.DecisionRecord) []model.DailyCount {
	byDay := map[time.Time]int{}
	for _, d := range decisions {
		day := d.Timestamp.UTC().Truncate(24 * time.Hour)
		byDay[day]++
	}

	out := make([]model.DailyCount, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, model.DailyCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

func riskHistogram(decisions []model.DecisionRecord) map[model.RiskLevel]int {
	hist := map[model.RiskLevel]int{
		model.RiskLow:      0,
		model.RiskMedium:   0,
		model.RiskHigh:     0,
		model.RiskCritical: 0,
	}
	for _, d := range decisions {
		hist[d.RiskLevel]++
	}
	return hist
}

// modelRisk rolls decisions up per model: the worst risk level seen and the
// decision count, with IDs resolved through the registry where possible.
func (s *Service) modelRisk(orgID uuid.UUID, decisions []model.DecisionRecord) []model.ModelRiskSummary {
	idByName := map[string]uuid.UUID{}
	if s.catalog != nil {
		for _, m := range s.catalog.ListByOrg(orgID) {
			// First registered version wins; versions share a name.
			if _, ok := idByName[m.Name]; !ok {
				idByName[m.Name] = m.ID
			}
		}
	}

	byName := map[string]*model.ModelRiskSummary{}
	for _, d := range decisions {
		sum, ok := byName[d.ModelName]
		if !ok {
			sum = &model.ModelRiskSummary{
				ModelID:   idByName[d.ModelName],
				ModelName: d.ModelName,
				RiskLevel: model.RiskLow,
			}
			byName[d.ModelName] = sum
		}
		sum.DecisionCount++
		sum.RiskLevel = sum.RiskLevel.Max(d.RiskLevel)
	}

	out := make([]model.ModelRiskSummary, 0, len(byName))
	for _, sum := range byName {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelName < out[j].ModelName })
	return out
}
