package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResponseMeta carries request correlation data in every API response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// ErrorDetail is the machine-readable error payload.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Postgres   string `json:"postgres"`
	AlertQueue string `json:"alert_queue,omitempty"`
	Uptime     int64  `json:"uptime_seconds"`
}

// DecisionStatusRequest is the request for POST /v1/decisions/{id}/status.
type DecisionStatusRequest struct {
	OrgID  uuid.UUID      `json:"org_id"`
	Status DecisionStatus `json:"status"`
}

// FeedbackRequest is the request for POST /v1/decisions/{id}/feedback.
type FeedbackRequest struct {
	OrgID   uuid.UUID `json:"org_id"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment,omitempty"`
}

// BiasAssessmentRequest is the request for POST /v1/models/{model_id}/bias-assessment.
type BiasAssessmentRequest struct {
	OrgID uuid.UUID      `json:"org_id"`
	Cases []BiasTestCase `json:"cases"`
}

// EthicsAssessmentRequest is the request for POST /v1/models/{model_id}/ethics-assessment.
type EthicsAssessmentRequest struct {
	OrgID     uuid.UUID `json:"org_id"`
	Assessor  string    `json:"assessor"`
	Framework string    `json:"framework,omitempty"`
}

// ComplianceReportRequest is the request for POST /v1/reports/compliance.
type ComplianceReportRequest struct {
	OrgID       uuid.UUID `json:"org_id"`
	Framework   string    `json:"framework"`
	Period      TimeRange `json:"period"`
	GeneratedBy string    `json:"generated_by,omitempty"`
}

// AlertAckRequest is the request for POST /v1/alerts/{id}/ack.
type AlertAckRequest struct {
	OrgID uuid.UUID `json:"org_id"`
}

// Error codes used in API error responses.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL"
)

// ValidationError marks malformed caller input. Surfaced to callers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks a decision input for the fields the pipeline cannot default.
func (in DecisionInput) Validate() error {
	if in.OrgID == uuid.Nil {
		return &ValidationError{Field: "org_id", Reason: "required"}
	}
	if in.ModelName == "" {
		return &ValidationError{Field: "model_name", Reason: "required"}
	}
	if in.InputType == "" {
		return &ValidationError{Field: "input_type", Reason: "required"}
	}
	if in.Content == "" {
		return &ValidationError{Field: "content", Reason: "required"}
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0,1]"}
	}
	return nil
}

// Validate checks a model registration input.
func (in ModelInput) Validate() error {
	if in.OrgID == uuid.Nil {
		return &ValidationError{Field: "org_id", Reason: "required"}
	}
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if in.Version == "" {
		return &ValidationError{Field: "version", Reason: "required"}
	}
	if in.Type == "" {
		return &ValidationError{Field: "type", Reason: "required"}
	}
	return nil
}

// Validate checks that a time range is well-formed.
func (tr TimeRange) Validate() error {
	if tr.From.IsZero() || tr.To.IsZero() {
		return &ValidationError{Field: "period", Reason: "from and to are required"}
	}
	if !tr.To.After(tr.From) {
		return &ValidationError{Field: "period", Reason: "to must be after from"}
	}
	return nil
}
