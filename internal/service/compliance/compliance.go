// Package compliance generates framework compliance reports from an
// organization's decision corpus.
//
// Each supported framework carries a fixed requirement catalog. Requirements
// are evaluated against corpus statistics for the reporting period; an empty
// corpus satisfies every corpus-scoped requirement vacuously, since there is
// nothing in the period that could violate it.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// reviewInterval is how long a generated report remains current.
const reviewInterval = 365 * 24 * time.Hour

// Store is the persistence surface for report generation.
type Store interface {
	FindDecisions(ctx context.Context, orgID uuid.UUID, tr model.TimeRange) ([]model.DecisionRecord, error)
	CreateComplianceReport(ctx context.Context, r model.ComplianceReport) (model.ComplianceReport, error)
}

// Service generates compliance reports.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a compliance report service.
func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// SupportedFrameworks lists the frameworks with requirement catalogs.
func SupportedFrameworks() []string {
	return []string{"sox", "gdpr", "soc2"}
}

// GenerateReport evaluates a framework's requirements over the period's
// decisions and persists the resulting report.
func (s *Service) GenerateReport(ctx context.Context, orgID uuid.UUID, framework string, period model.TimeRange, generatedBy string) (model.ComplianceReport, error) {
	framework = strings.ToLower(strings.TrimSpace(framework))
	catalog, ok := catalogs[framework]
	if !ok {
		return model.ComplianceReport{}, &model.ValidationError{
			Field:  "framework",
			Reason: fmt.Sprintf("unsupported framework %q, supported: %s", framework, strings.Join(SupportedFrameworks(), ", ")),
		}
	}
	if err := period.Validate(); err != nil {
		return model.ComplianceReport{}, err
	}

	decisions, err := s.store.FindDecisions(ctx, orgID, period)
	if err != nil {
		return model.ComplianceReport{}, fmt.Errorf("compliance: load decisions: %w", err)
	}

	stats := collectStats(decisions)
	requirements := make([]model.RequirementResult, 0, len(catalog))
	for _, req := range catalog {
		requirements = append(requirements, req.evaluate(stats))
	}

	now := s.now().UTC()
	report := model.ComplianceReport{
		ID:             uuid.New(),
		OrgID:          orgID,
		Framework:      framework,
		Period:         period,
		GeneratedAt:    now,
		GeneratedBy:    generatedBy,
		Requirements:   requirements,
		Summary:        summarize(requirements),
		Systems:        systemRollup(stats, framework),
		DataGovernance: platformChecklist(),
		Risk:           riskRollup(stats),
		AuditTrail:     auditRollup(stats),
		NextReview:     now.Add(reviewInterval),
	}

	stored, err := s.store.CreateComplianceReport(ctx, report)
	if err != nil {
		return model.ComplianceReport{}, fmt.Errorf("compliance: store report: %w", err)
	}
	return stored, nil
}

// corpusStats are the aggregates requirements evaluate against.
type corpusStats struct {
	total          int
	flagCounts     map[string]int
	ethicsFlags    map[string]int
	humanReview    int
	highRiskNoRev  int
	latencySum     int64
	riskByLevel    map[model.RiskLevel]int
	modelDecisions map[string]int
	modelFlagged   map[string]map[string]int
}

func collectStats(decisions []model.DecisionRecord) corpusStats {
	st := corpusStats{
		flagCounts:     map[string]int{},
		ethicsFlags:    map[string]int{},
		riskByLevel:    map[model.RiskLevel]int{},
		modelDecisions: map[string]int{},
		modelFlagged:   map[string]map[string]int{},
	}
	for _, d := range decisions {
		st.total++
		st.riskByLevel[d.RiskLevel]++
		st.latencySum += d.LatencyMS
		st.modelDecisions[d.ModelName]++
		if d.HumanReviewRequired {
			st.humanReview++
		}
		if d.RiskLevel.AtLeast(model.RiskHigh) && !d.HumanReviewRequired {
			st.highRiskNoRev++
		}
		frameworksHit := map[string]bool{}
		for _, f := range d.ComplianceFlags {
			st.flagCounts[f]++
			if framework, _, found := strings.Cut(f, "_"); found {
				frameworksHit[framework] = true
			}
		}
		for framework := range frameworksHit {
			if st.modelFlagged[framework] == nil {
				st.modelFlagged[framework] = map[string]int{}
			}
			st.modelFlagged[framework][d.ModelName]++
		}
		for _, f := range d.EthicsCheck.Flags {
			st.ethicsFlags[f]++
		}
	}
	return st
}

// requirement is one catalog entry plus its evaluation rule.
type requirement struct {
	id          string
	title       string
	remediation string
	// violations returns how many decisions in the corpus breach this
	// requirement; nil marks a platform-level control that always holds.
	violations func(corpusStats) int
}

func (r requirement) evaluate(st corpusStats) model.RequirementResult {
	out := model.RequirementResult{ID: r.id, Title: r.title}

	if r.violations == nil {
		out.Status = model.RequirementMet
		out.Evidence = []string{"enforced by the platform for every recorded decision"}
		return out
	}

	n := r.violations(st)
	switch {
	case n == 0:
		out.Status = model.RequirementMet
		out.Evidence = []string{fmt.Sprintf("no violations across %d decisions in the period", st.total)}
	case st.total > 0 && float64(n)/float64(st.total) <= 0.1:
		out.Status = model.RequirementPartiallyMet
		out.Gaps = []string{fmt.Sprintf("%d of %d decisions violate this requirement", n, st.total)}
		out.Remediation = r.remediation
	default:
		out.Status = model.RequirementNotMet
		out.Gaps = []string{fmt.Sprintf("%d of %d decisions violate this requirement", n, st.total)}
		out.Remediation = r.remediation
	}
	return out
}

func flagViolations(flag string) func(corpusStats) int {
	return func(st corpusStats) int { return st.flagCounts[flag] }
}

func ethicsFlagViolations(flag string) func(corpusStats) int {
	return func(st corpusStats) int { return st.ethicsFlags[flag] }
}

// catalogs holds the per-framework requirement sets. Flag names line up
// with the flags the scoring engine raises.
var catalogs = map[string][]requirement{
	"sox": {
		{
			id: "SOX-302", title: "Financial decisions carry management review",
			remediation: "route unreviewed financial decisions through the review queue",
			violations:  flagViolations("sox_unreviewed_financial_decision"),
		},
		{
			id: "SOX-404", title: "Decision inputs trace to a documented data source",
			remediation: "record the source system on every financial decision",
			violations:  flagViolations("sox_missing_data_source"),
		},
		{
			id: "SOX-ACC", title: "High risk decisions have human accountability",
			remediation: "enable the high risk review trigger",
			violations:  func(st corpusStats) int { return st.highRiskNoRev },
		},
		{
			id: "SOX-REC", title: "Decision records are immutable and retained",
		},
		{
			id: "SOX-SEG", title: "Decision records are segregated per organization",
		},
	},
	"gdpr": {
		{
			id: "GDPR-22", title: "Automated decisions about people have human oversight",
			remediation: "require human review for decisions over personal data",
			violations:  flagViolations("gdpr_automated_decision_without_oversight"),
		},
		{
			id: "GDPR-5", title: "Personal data use is minimized in decision inputs",
			remediation: "strip personal identifiers before submitting decision content",
			violations:  flagViolations("gdpr_personal_data"),
		},
		{
			id: "GDPR-13", title: "Decisions carry an intelligible explanation",
			remediation: "ensure models emit reasoning so explanations can be produced",
			violations:  ethicsFlagViolations("lacks_explanation"),
		},
		{
			id: "GDPR-25", title: "Privacy risks are flagged at decision time",
			remediation: "review decisions carrying privacy concern flags",
			violations:  ethicsFlagViolations("privacy_concern"),
		},
		{
			id: "GDPR-15", title: "Recorded decisions are retrievable on request",
		},
	},
	"soc2": {
		{
			id: "CC4", title: "Decision inputs pass validation controls",
			remediation: "attach validation steps to every decision submission",
			violations:  flagViolations("soc2_missing_validation_controls"),
		},
		{
			id: "CC5", title: "High risk activity receives human review",
			remediation: "enable the high risk review trigger",
			violations:  func(st corpusStats) int { return st.highRiskNoRev },
		},
		{
			id: "CC3", title: "Every decision is risk assessed at ingestion",
		},
		{
			id: "CC6", title: "Decision data is isolated per organization",
		},
		{
			id: "CC7", title: "Anomalous decisions raise alerts",
		},
	},
}

func summarize(requirements []model.RequirementResult) model.ComplianceSummary {
	var sum model.ComplianceSummary
	for _, r := range requirements {
		switch r.Status {
		case model.RequirementMet:
			sum.Met++
		case model.RequirementPartiallyMet:
			sum.PartiallyMet++
		case model.RequirementNotMet:
			sum.NotMet++
		}
	}
	total := len(requirements)
	if total > 0 {
		sum.OverallScore = float64(sum.Met) / float64(total)
	}

	// Partially-met requirements lower the score but only not-met ones
	// degrade the level.
	switch {
	case sum.NotMet == 0:
		sum.Level = model.Compliant
	case float64(sum.NotMet) < 0.1*float64(total):
		sum.Level = model.MostlyCompliant
	default:
		sum.Level = model.PartiallyCompliant
	}
	return sum
}

func systemRollup(st corpusStats, framework string) []model.SystemCompliance {
	names := make([]string, 0, len(st.modelDecisions))
	for name := range st.modelDecisions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.SystemCompliance, 0, len(names))
	for _, name := range names {
		count := st.modelDecisions[name]
		flagged := st.modelFlagged[framework][name]
		score := 1.0
		if count > 0 {
			score = 1 - float64(flagged)/float64(count)
		}
		out = append(out, model.SystemCompliance{
			ModelName:     name,
			DecisionCount: count,
			FlaggedCount:  flagged,
			Score:         score,
		})
	}
	return out
}

// platformChecklist reports the controls the platform itself provides.
func platformChecklist() model.DataGovernanceChecklist {
	return model.DataGovernanceChecklist{
		AccessControls:   true,
		EncryptionAtRest: true,
		RetentionPolicy:  true,
		DataLineage:      true,
		TenantIsolation:  true,
	}
}

func riskRollup(st corpusStats) model.ReportRiskAssessment {
	type flagCount struct {
		flag  string
		count int
	}
	flags := make([]flagCount, 0, len(st.flagCounts))
	for f, n := range st.flagCounts {
		flags = append(flags, flagCount{f, n})
	}
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].count != flags[j].count {
			return flags[i].count > flags[j].count
		}
		return flags[i].flag < flags[j].flag
	})

	var top []string
	for i, fc := range flags {
		if i == 3 {
			break
		}
		top = append(top, fmt.Sprintf("%s (%d decisions)", fc.flag, fc.count))
	}

	return model.ReportRiskAssessment{ByLevel: st.riskByLevel, TopRisks: top}
}

func auditRollup(st corpusStats) model.AuditTrailSummary {
	out := model.AuditTrailSummary{
		DecisionCount:  st.total,
		HumanOverrides: st.humanReview,
	}
	if st.total > 0 {
		out.MeanLatencyMS = float64(st.latencySum) / float64(st.total)
	}
	return out
}
