// Package mcp implements the Model Context Protocol server for Kansa.
//
// The MCP server exposes the governance pipeline through MCP tools so
// MCP-compatible AI agents can log decisions, register models, run
// assessments, and pull compliance reports without the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kansa-ai/kansa/internal/model"
	"github.com/kansa-ai/kansa/internal/service/compliance"
	"github.com/kansa-ai/kansa/internal/service/dashboard"
	"github.com/kansa-ai/kansa/internal/service/ethicsreview"
	"github.com/kansa-ai/kansa/internal/service/fairness"
	"github.com/kansa-ai/kansa/internal/service/pipeline"
	"github.com/kansa-ai/kansa/internal/service/registry"
)

// Deps holds the service layer the MCP tools call into.
type Deps struct {
	Pipeline   *pipeline.Service
	Registry   *registry.Registry
	Fairness   *fairness.Engine
	Ethics     *ethicsreview.Engine
	Compliance *compliance.Service
	Dashboard  *dashboard.Service
	Logger     *slog.Logger
	Version    string
}

// Server wraps the MCP server with Kansa's service layer.
type Server struct {
	mcpServer  *mcpserver.MCPServer
	pipeline   *pipeline.Service
	registry   *registry.Registry
	fairness   *fairness.Engine
	ethics     *ethicsreview.Engine
	compliance *compliance.Service
	dashboard  *dashboard.Service
	logger     *slog.Logger
}

// New creates and configures a new MCP server with all tools registered.
func New(d Deps) *Server {
	s := &Server{
		pipeline:   d.Pipeline,
		registry:   d.Registry,
		fairness:   d.Fairness,
		ethics:     d.Ethics,
		compliance: d.Compliance,
		dashboard:  d.Dashboard,
		logger:     d.Logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kansa",
		d.Version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err))
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func orgIDArg(request mcplib.CallToolRequest) (uuid.UUID, error) {
	raw := request.GetString("org_id", "")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("org_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("org_id must be a valid UUID")
	}
	return id, nil
}

func uuidArg(request mcplib.CallToolRequest, name string) (uuid.UUID, error) {
	raw := request.GetString(name, "")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", name)
	}
	return id, nil
}

func timeArg(request mcplib.CallToolRequest, name string, fallback time.Time) (time.Time, error) {
	raw := request.GetString(name, "")
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

func (s *Server) registerTools() {
	// kansa_log_decision tool: run one AI decision through the governance pipeline.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansa_log_decision",
			mcplib.WithDescription(`Log an AI decision for governance scoring.

The decision is ethics-checked, bias-scored, risk-scored, and recorded with
a full audit trail. The result tells you whether human review is required
and which compliance flags the decision raised.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("org_id",
				mcplib.Description("Organization UUID the decision belongs to"),
				mcplib.Required(),
			),
			mcplib.WithString("model_name",
				mcplib.Description("Name of the model that produced the decision"),
				mcplib.Required(),
			),
			mcplib.WithString("model_version",
				mcplib.Description("Version of the model that produced the decision"),
			),
			mcplib.WithString("input_type",
				mcplib.Description("Category of the decision input. Common types: tax_guidance, financial_insight, document_classification, user_query. Any string is accepted."),
				mcplib.Required(),
			),
			mcplib.WithString("content",
				mcplib.Description("The input content the model decided on"),
				mcplib.Required(),
			),
			mcplib.WithNumber("confidence",
				mcplib.Description("Model confidence for this decision (0.0-1.0)"),
				mcplib.Required(),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithString("reasoning",
				mcplib.Description("The model's reasoning chain, if available"),
			),
			mcplib.WithString("data_source",
				mcplib.Description("Where the input data came from"),
			),
			mcplib.WithBoolean("high_business_impact",
				mcplib.Description("Whether the decision carries high business impact"),
			),
		),
		s.handleLogDecision,
	)

	// kansa_register_model tool: register a model in the governance registry.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansa_register_model",
			mcplib.WithDescription(`Register an AI model in the governance registry.

Registered models can receive bias and ethics assessments and appear in
compliance reports. Registering the same name and version twice fails.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("org_id",
				mcplib.Description("Organization UUID that owns the model"),
				mcplib.Required(),
			),
			mcplib.WithString("name",
				mcplib.Description("Model name"),
				mcplib.Required(),
			),
			mcplib.WithString("version",
				mcplib.Description("Model version"),
				mcplib.Required(),
			),
			mcplib.WithString("type",
				mcplib.Description("Model type, e.g. llm, classifier, regression"),
				mcplib.Required(),
			),
			mcplib.WithString("purpose",
				mcplib.Description("What the model is used for"),
			),
		),
		s.handleRegisterModel,
	)

	// kansa_assess_bias tool: run a bias assessment batch against a model.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansa_assess_bias",
			mcplib.WithDescription(`Run a bias assessment over a labeled test batch.

Each case carries protected-attribute groups plus boolean actual and
predicted outcomes (true = positive outcome). The assessment computes
group fairness metrics, detects per-attribute bias, and updates the
model's rolling fairness score.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithString("org_id",
				mcplib.Description("Organization UUID that owns the model"),
				mcplib.Required(),
			),
			mcplib.WithString("model_id",
				mcplib.Description("UUID of the registered model to assess"),
				mcplib.Required(),
			),
			mcplib.WithString("cases",
				mcplib.Description(`JSON array of test cases, each {"group": {"gender": "female"}, "actual": true, "predicted": false, "score": 0.4}`),
				mcplib.Required(),
			),
		),
		s.handleAssessBias,
	)

	// kansa_assess_ethics tool: run an ethics review against a model.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansa_assess_ethics",
			mcplib.WithDescription(`Run an ethics review of a registered model.

Scores the model against the five governance principles (fairness,
transparency, accountability, privacy, human dignity) and returns an
approval verdict with an oversight plan.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithString("org_id",
				mcplib.Description("Organization UUID that owns the model"),
				mcplib.Required(),
			),
			mcplib.WithString("model_id",
				mcplib.Description("UUID of the registered model to review"),
				mcplib.Required(),
			),
			mcplib.WithString("assessor",
				mcplib.Description("Who is performing the review"),
				mcplib.Required(),
			),
			mcplib.WithString("framework",
				mcplib.Description("Ethics framework the review follows"),
			),
		),
		s.handleAssessEthics,
	)

	// kansa_compliance_report tool: generate a framework compliance report.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansa_compliance_report",
			mcplib.WithDescription(`Generate a compliance report for a regulatory framework.

Evaluates every requirement of the framework (sox, gdpr, or soc2) against
the decisions recorded in the period and returns the full report with
per-system breakdowns and a risk assessment.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithString("org_id",
				mcplib.Description("Organization UUID to report on"),
				mcplib.Required(),
			),
			mcplib.WithString("framework",
				mcplib.Description("Regulatory framework: sox, gdpr, or soc2"),
				mcplib.Required(),
			),
			mcplib.WithString("from",
				mcplib.Description("Period start, RFC 3339. Defaults to 90 days ago."),
			),
			mcplib.WithString("to",
				mcplib.Description("Period end, RFC 3339. Defaults to now."),
			),
			mcplib.WithString("generated_by",
				mcplib.Description("Who requested the report"),
			),
		),
		s.handleComplianceReport,
	)

	// kansa_dashboard tool: aggregate governance metrics for a period.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansa_dashboard",
			mcplib.WithDescription(`Get the governance dashboard for an organization.

Returns decision totals, risk distribution, per-model risk summaries,
daily decision counts, and active alerts for the requested period.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("org_id",
				mcplib.Description("Organization UUID to aggregate"),
				mcplib.Required(),
			),
			mcplib.WithString("from",
				mcplib.Description("Period start, RFC 3339. Defaults to 30 days ago."),
			),
			mcplib.WithString("to",
				mcplib.Description("Period end, RFC 3339. Defaults to now."),
			),
		),
		s.handleDashboard,
	)
}

func (s *Server) handleLogDecision(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, err := orgIDArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	input := model.DecisionInput{
		OrgID:              orgID,
		ModelName:          request.GetString("model_name", ""),
		ModelVersion:       request.GetString("model_version", ""),
		InputType:          request.GetString("input_type", ""),
		Content:            request.GetString("content", ""),
		Confidence:         request.GetFloat("confidence", 0),
		DataSource:         request.GetString("data_source", ""),
		HighBusinessImpact: request.GetBool("high_business_impact", false),
	}
	if reasoning := request.GetString("reasoning", ""); reasoning != "" {
		input.Reasoning = &reasoning
	}

	record, err := s.pipeline.LogDecision(ctx, input)
	if err != nil {
		return errorResult(fmt.Sprintf("log decision failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"id":                    record.ID,
		"risk_score":            record.RiskScore,
		"risk_level":            record.RiskLevel,
		"human_review_required": record.HumanReviewRequired,
		"compliance_flags":      record.ComplianceFlags,
		"ethics_check":          record.EthicsCheck,
		"explainability":        record.Explainability,
	}), nil
}

func (s *Server) handleRegisterModel(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, err := orgIDArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	meta, err := s.registry.Register(ctx, model.ModelInput{
		OrgID:   orgID,
		Name:    request.GetString("name", ""),
		Version: request.GetString("version", ""),
		Type:    request.GetString("type", ""),
		Purpose: request.GetString("purpose", ""),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("register model failed: %v", err)), nil
	}

	return jsonResult(meta), nil
}

func (s *Server) handleAssessBias(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, err := orgIDArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	modelID, err := uuidArg(request, "model_id")
	if err != nil {
		return errorResult(err.Error()), nil
	}

	var cases []model.BiasTestCase
	if err := json.Unmarshal([]byte(request.GetString("cases", "")), &cases); err != nil {
		return errorResult(fmt.Sprintf("cases must be a JSON array of test cases: %v", err)), nil
	}
	result, err := s.fairness.AssessModelBias(ctx, orgID, modelID, cases)
	if err != nil {
		return errorResult(fmt.Sprintf("bias assessment failed: %v", err)), nil
	}

	return jsonResult(result), nil
}

func (s *Server) handleAssessEthics(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, err := orgIDArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	modelID, err := uuidArg(request, "model_id")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	assessor := request.GetString("assessor", "")
	if assessor == "" {
		return errorResult("assessor is required"), nil
	}

	assessment, err := s.ethics.AssessEthics(ctx, orgID, modelID, assessor, request.GetString("framework", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("ethics assessment failed: %v", err)), nil
	}

	return jsonResult(assessment), nil
}

func (s *Server) handleComplianceReport(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, err := orgIDArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	now := time.Now().UTC()
	from, err := timeArg(request, "from", now.AddDate(0, 0, -90))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	to, err := timeArg(request, "to", now)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	report, err := s.compliance.GenerateReport(ctx, orgID, request.GetString("framework", ""),
		model.TimeRange{From: from, To: to}, request.GetString("generated_by", "mcp"))
	if err != nil {
		return errorResult(fmt.Sprintf("compliance report failed: %v", err)), nil
	}

	return jsonResult(report), nil
}

func (s *Server) handleDashboard(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	orgID, err := orgIDArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	now := time.Now().UTC()
	from, err := timeArg(request, "from", now.AddDate(0, 0, -30))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	to, err := timeArg(request, "to", now)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	dash, err := s.dashboard.Build(ctx, orgID, model.TimeRange{From: from, To: to})
	if err != nil {
		return errorResult(fmt.Sprintf("dashboard failed: %v", err)), nil
	}

	return jsonResult(dash), nil
}
