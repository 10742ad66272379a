// Package kansa is the public API for embedding the Kansa AI governance server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := kansa.New(
//	    kansa.WithVersion(version),
//	    kansa.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: kansa (root) imports
// internal/*, but internal/* never imports kansa (root).
package kansa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/kansa-ai/kansa/internal/alerts"
	"github.com/kansa-ai/kansa/internal/cache"
	"github.com/kansa-ai/kansa/internal/config"
	"github.com/kansa-ai/kansa/internal/explain"
	"github.com/kansa-ai/kansa/internal/mcp"
	"github.com/kansa-ai/kansa/internal/server"
	"github.com/kansa-ai/kansa/internal/service/compliance"
	"github.com/kansa-ai/kansa/internal/service/dashboard"
	"github.com/kansa-ai/kansa/internal/service/ethicsreview"
	"github.com/kansa-ai/kansa/internal/service/fairness"
	"github.com/kansa-ai/kansa/internal/service/pipeline"
	"github.com/kansa-ai/kansa/internal/service/registry"
	"github.com/kansa-ai/kansa/internal/service/scoring"
	"github.com/kansa-ai/kansa/internal/storage"
	"github.com/kansa-ai/kansa/internal/telemetry"
	"github.com/kansa-ai/kansa/migrations"
)

const (
	shutdownHTTPTimeout  = 10 * time.Second
	shutdownAlertTimeout = 10 * time.Second
)

// App is the Kansa server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	dispatcher   *alerts.Dispatcher
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Kansa server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kansa starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Scoring engine with optional detector overrides.
	engine := scoring.NewEngine(cfg)
	if o.biasDetector != nil {
		engine = engine.WithBiasDetector(biasDetectorAdapter{d: o.biasDetector})
	}
	if o.privacyDetector != nil {
		engine = engine.WithPrivacyDetector(privacyDetectorAdapter{d: o.privacyDetector})
	}
	if o.noveltyDetector != nil {
		engine = engine.WithNoveltyDetector(noveltyDetectorAdapter{d: o.noveltyDetector})
	}

	// Explanation summarizer: external override takes priority over auto-detect.
	var summarizer explain.Summarizer
	if o.summarizer != nil {
		summarizer = &summarizerAdapter{s: o.summarizer}
	} else {
		summarizer = newSummarizer(cfg, logger)
	}

	// Alert sink: external override takes priority over Postgres delivery.
	var sink alerts.Sink
	if o.alertSink != nil {
		sink = &alertSinkAdapter{sink: o.alertSink}
	} else {
		sink = alerts.NewStoreSink(db)
	}
	dispatcher := alerts.NewDispatcher(sink, cfg.AlertQueueSize, logger)

	decisionCache := cache.New(cfg.DecisionCacheSize)

	reg := registry.New(db, logger)
	reg.Load(context.Background())

	pipelineSvc := pipeline.New(db, engine, decisionCache, dispatcher, summarizer, cfg.SummaryTimeout, logger)
	fairnessEng := fairness.New(db, reg, logger)
	ethicsEng := ethicsreview.New(db, reg, logger)
	complianceSvc := compliance.New(db, logger)
	dashboardSvc := dashboard.New(db, decisionCache, reg, cfg.BiasAlertThreshold, logger)

	mcpSrv := mcp.New(mcp.Deps{
		Pipeline:   pipelineSvc,
		Registry:   reg,
		Fairness:   fairnessEng,
		Ethics:     ethicsEng,
		Compliance: complianceSvc,
		Dashboard:  dashboardSvc,
		Logger:     logger,
		Version:    version,
	})

	srv := server.New(server.ServerConfig{
		DB:                  db,
		Pipeline:            pipelineSvc,
		Registry:            reg,
		Fairness:            fairnessEng,
		Ethics:              ethicsEng,
		Compliance:          complianceSvc,
		Dashboard:           dashboardSvc,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		dispatcher:   dispatcher,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the alert dispatcher and the HTTP server, then blocks until ctx
// is cancelled or a fatal server error occurs. On return, Shutdown is called
// automatically; callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a two-phase graceful shutdown: stop accepting HTTP
// requests and drain in-flight handlers, then flush queued alerts to
// Postgres. It then closes the database pool and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kansa shutting down")

	// Phase 1: HTTP drain.
	httpCtx, httpCancel := context.WithTimeout(ctx, shutdownHTTPTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	// Phase 2: alert queue drain.
	alertCtx, alertCancel := context.WithTimeout(ctx, shutdownAlertTimeout)
	if err := a.dispatcher.Stop(alertCtx); err != nil {
		a.logger.Error("alert queue drain incomplete, queued alerts will be lost", "error", err)
	}
	alertCancel()

	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("kansa stopped")
	return nil
}

// newSummarizer selects the explanation summarizer from configuration.
// "auto" probes a local Ollama first, then falls back to OpenAI if an API
// key is configured, then to noop.
func newSummarizer(cfg config.Config, logger *slog.Logger) explain.Summarizer {
	switch cfg.SummaryProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when KANSA_SUMMARY_PROVIDER=openai")
			return explain.NewNoopSummarizer()
		}
		logger.Info("summary provider: openai", "model", cfg.OpenAIModel)
		return explain.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "ollama":
		logger.Info("summary provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return explain.NewOllamaSummarizer(cfg.OllamaURL, cfg.OllamaModel)
	case "noop":
		logger.Info("summary provider: noop (decision summaries use the deterministic fallback)")
		return explain.NewNoopSummarizer()
	case "auto":
		fallthrough
	default:
		ollama := explain.NewOllamaSummarizer(cfg.OllamaURL, cfg.OllamaModel)
		probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ollama.Reachable(probeCtx) {
			logger.Info("summary provider: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
			return ollama
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("summary provider: openai (auto-detected)", "model", cfg.OpenAIModel)
			return explain.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		}
		logger.Warn("no summary provider available, using noop (decision summaries use the deterministic fallback)")
		return explain.NewNoopSummarizer()
	}
}
