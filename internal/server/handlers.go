package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
	"github.com/kansa-ai/kansa/internal/service/compliance"
	"github.com/kansa-ai/kansa/internal/service/dashboard"
	"github.com/kansa-ai/kansa/internal/service/ethicsreview"
	"github.com/kansa-ai/kansa/internal/service/fairness"
	"github.com/kansa-ai/kansa/internal/service/pipeline"
	"github.com/kansa-ai/kansa/internal/service/registry"
	"github.com/kansa-ai/kansa/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	pipeline            *pipeline.Service
	registry            *registry.Registry
	fairness            *fairness.Engine
	ethics              *ethicsreview.Engine
	compliance          *compliance.Service
	dashboard           *dashboard.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	DB                  *storage.DB
	Pipeline            *pipeline.Service
	Registry            *registry.Registry
	Fairness            *fairness.Engine
	Ethics              *ethicsreview.Engine
	Compliance          *compliance.Service
	Dashboard           *dashboard.Service
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		pipeline:            d.Pipeline,
		registry:            d.Registry,
		fairness:            d.Fairness,
		ethics:              d.Ethics,
		compliance:          d.Compliance,
		dashboard:           d.Dashboard,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleLogDecision handles POST /v1/decisions.
func (h *Handlers) HandleLogDecision(w http.ResponseWriter, r *http.Request) {
	var input model.DecisionInput
	if err := decodeJSON(w, r, &input, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	record, err := h.pipeline.LogDecision(r.Context(), input)
	if err != nil {
		h.logger.Error("log decision failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		serviceError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusCreated, record)
}

// HandleGetDecision handles GET /v1/decisions/{id}.
func (h *Handlers) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	orgID, ok := queryOrgID(w, r)
	if !ok {
		return
	}

	record, err := h.pipeline.GetDecision(r.Context(), orgID, id)
	if err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, record)
}

// HandleUpdateDecisionStatus handles POST /v1/decisions/{id}/status.
func (h *Handlers) HandleUpdateDecisionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.DecisionStatusRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.OrgID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id is required")
		return
	}

	if err := h.pipeline.UpdateStatus(r.Context(), req.OrgID, id, req.Status); err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

// HandleSubmitFeedback handles POST /v1/decisions/{id}/feedback.
func (h *Handlers) HandleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.FeedbackRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.OrgID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id is required")
		return
	}

	if err := h.pipeline.SubmitFeedback(r.Context(), req.OrgID, id, req.Rating, req.Comment); err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "rating": req.Rating})
}

// HandleRegisterModel handles POST /v1/models.
func (h *Handlers) HandleRegisterModel(w http.ResponseWriter, r *http.Request) {
	var input model.ModelInput
	if err := decodeJSON(w, r, &input, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	meta, err := h.registry.Register(r.Context(), input)
	if err != nil {
		h.logger.Error("register model failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		serviceError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusCreated, meta)
}

// HandleListModels handles GET /v1/models.
func (h *Handlers) HandleListModels(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryOrgID(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.registry.ListByOrg(orgID))
}

// HandleGetModel handles GET /v1/models/{id}.
func (h *Handlers) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	orgID, ok := queryOrgID(w, r)
	if !ok {
		return
	}

	meta, err := h.registry.Get(orgID, id)
	if err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, meta)
}

// HandleBiasAssessment handles POST /v1/models/{model_id}/bias-assessment.
func (h *Handlers) HandleBiasAssessment(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathUUID(w, r, "model_id")
	if !ok {
		return
	}
	var req model.BiasAssessmentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.OrgID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id is required")
		return
	}
	// Empty batches are valid and assess as passed with a zero score.
	result, err := h.fairness.AssessModelBias(r.Context(), req.OrgID, modelID, req.Cases)
	if err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusCreated, result)
}

// HandleEthicsAssessment handles POST /v1/models/{model_id}/ethics-assessment.
func (h *Handlers) HandleEthicsAssessment(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathUUID(w, r, "model_id")
	if !ok {
		return
	}
	var req model.EthicsAssessmentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.OrgID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id is required")
		return
	}
	if req.Assessor == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "assessor is required")
		return
	}

	assessment, err := h.ethics.AssessEthics(r.Context(), req.OrgID, modelID, req.Assessor, req.Framework)
	if err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusCreated, assessment)
}

// HandleComplianceReport handles POST /v1/reports/compliance.
func (h *Handlers) HandleComplianceReport(w http.ResponseWriter, r *http.Request) {
	var req model.ComplianceReportRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.OrgID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id is required")
		return
	}

	report, err := h.compliance.GenerateReport(r.Context(), req.OrgID, req.Framework, req.Period, req.GeneratedBy)
	if err != nil {
		h.logger.Error("compliance report failed", "error", err,
			"framework", req.Framework, "request_id", RequestIDFromContext(r.Context()))
		serviceError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusCreated, report)
}

// HandleDashboard handles GET /v1/dashboard.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryOrgID(w, r)
	if !ok {
		return
	}
	tr, ok := queryTimeRange(w, r)
	if !ok {
		return
	}

	dash, err := h.dashboard.Build(r.Context(), orgID, tr)
	if err != nil {
		serviceError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, dash)
}

// HandleAcknowledgeAlert handles POST /v1/alerts/{id}/ack.
func (h *Handlers) HandleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.AlertAckRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.OrgID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id is required")
		return
	}

	if err := h.db.AcknowledgeAlert(r.Context(), req.OrgID, id); err != nil {
		serviceError(w, r, err, storage.ErrNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// pathUUID parses a UUID path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryOrgID parses the required org_id query parameter.
func queryOrgID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("org_id")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id query parameter is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "org_id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryTimeRange parses the from/to query parameters as RFC 3339 timestamps.
// Defaults to the trailing 30 days when both are absent.
func queryTimeRange(w http.ResponseWriter, r *http.Request) (model.TimeRange, bool) {
	q := r.URL.Query()
	rawFrom, rawTo := q.Get("from"), q.Get("to")

	if rawFrom == "" && rawTo == "" {
		now := time.Now().UTC()
		return model.TimeRange{From: now.AddDate(0, 0, -30), To: now}, true
	}

	from, err := time.Parse(time.RFC3339, rawFrom)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "from must be an RFC 3339 timestamp")
		return model.TimeRange{}, false
	}
	to, err := time.Parse(time.RFC3339, rawTo)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "to must be an RFC 3339 timestamp")
		return model.TimeRange{}, false
	}
	return model.TimeRange{From: from, To: to}, true
}

// handleDecodeError maps body decode failures onto 4xx responses.
func handleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeInvalidInput, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
}
