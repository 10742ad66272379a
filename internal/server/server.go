package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kansa-ai/kansa/internal/service/compliance"
	"github.com/kansa-ai/kansa/internal/service/dashboard"
	"github.com/kansa-ai/kansa/internal/service/ethicsreview"
	"github.com/kansa-ai/kansa/internal/service/fairness"
	"github.com/kansa-ai/kansa/internal/service/pipeline"
	"github.com/kansa-ai/kansa/internal/service/registry"
	"github.com/kansa-ai/kansa/internal/storage"
)

// Server is the Kansa HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// MCPServer is optional (nil = disabled).
type ServerConfig struct {
	DB         *storage.DB
	Pipeline   *pipeline.Service
	Registry   *registry.Registry
	Fairness   *fairness.Engine
	Ethics     *ethicsreview.Engine
	Compliance *compliance.Service
	Dashboard  *dashboard.Service
	Logger     *slog.Logger

	MCPServer *mcpserver.MCPServer

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		Pipeline:            cfg.Pipeline,
		Registry:            cfg.Registry,
		Fairness:            cfg.Fairness,
		Ethics:              cfg.Ethics,
		Compliance:          cfg.Compliance,
		Dashboard:           cfg.Dashboard,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Decision pipeline.
	mux.HandleFunc("POST /v1/decisions", h.HandleLogDecision)
	mux.HandleFunc("GET /v1/decisions/{id}", h.HandleGetDecision)
	mux.HandleFunc("POST /v1/decisions/{id}/status", h.HandleUpdateDecisionStatus)
	mux.HandleFunc("POST /v1/decisions/{id}/feedback", h.HandleSubmitFeedback)

	// Model registry.
	mux.HandleFunc("POST /v1/models", h.HandleRegisterModel)
	mux.HandleFunc("GET /v1/models", h.HandleListModels)
	mux.HandleFunc("GET /v1/models/{id}", h.HandleGetModel)

	// Assessments.
	mux.HandleFunc("POST /v1/models/{model_id}/bias-assessment", h.HandleBiasAssessment)
	mux.HandleFunc("POST /v1/models/{model_id}/ethics-assessment", h.HandleEthicsAssessment)

	// Compliance reporting.
	mux.HandleFunc("POST /v1/reports/compliance", h.HandleComplianceReport)

	// Dashboard and alerts.
	mux.HandleFunc("GET /v1/dashboard", h.HandleDashboard)
	mux.HandleFunc("POST /v1/alerts/{id}/ack", h.HandleAcknowledgeAlert)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health.
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
