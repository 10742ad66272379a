package kansa

import (
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	logger          *slog.Logger
	version         string
	summarizer      Summarizer
	alertSink       AlertSink
	biasDetector    BiasDetector
	privacyDetector PrivacyDetector
	noveltyDetector NoveltyDetector
}

// WithPort overrides the TCP port from config (KANSA_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithSummarizer replaces the auto-detected explanation summarizer (Ollama/OpenAI/noop).
func WithSummarizer(s Summarizer) Option {
	return func(o *resolvedOptions) { o.summarizer = s }
}

// WithAlertSink replaces the default Postgres alert delivery. Use this to
// route governance alerts to a pager, chat webhook, or message bus.
func WithAlertSink(s AlertSink) Option {
	return func(o *resolvedOptions) { o.alertSink = s }
}

// WithBiasDetector replaces the keyword bias detector in the scoring engine.
func WithBiasDetector(d BiasDetector) Option {
	return func(o *resolvedOptions) { o.biasDetector = d }
}

// WithPrivacyDetector replaces the keyword privacy detector in the scoring engine.
func WithPrivacyDetector(d PrivacyDetector) Option {
	return func(o *resolvedOptions) { o.privacyDetector = d }
}

// WithNoveltyDetector replaces the new-pattern detector in the scoring engine.
func WithNoveltyDetector(d NoveltyDetector) Option {
	return func(o *resolvedOptions) { o.noveltyDetector = d }
}
