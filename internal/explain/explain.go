// Package explain generates natural-language decision summaries.
//
// Defines a Summarizer interface with OpenAI and Ollama implementations.
// The interface allows swapping summary providers without changing consumers.
// When no provider is reachable the pipeline keeps its deterministic
// factor-based summary, so summarization is always best-effort.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kansa-ai/kansa/internal/model"
)

// ErrUnavailable is returned by providers that cannot generate summaries.
var ErrUnavailable = errors.New("explain: no summary provider available")

// Request carries the decision facts a provider turns into a summary.
type Request struct {
	ModelName  string
	InputType  string
	Content    string
	Confidence float64
	RiskLevel  model.RiskLevel
	Factors    []model.Factor
}

// Summarizer generates a short plain-language explanation of a decision.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Prompt renders the request as the instruction sent to an LLM provider.
func (r Request) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain in two sentences, for a compliance reviewer, why the AI model %q produced this %s decision.\n", r.ModelName, r.InputType)
	fmt.Fprintf(&b, "Decision input: %s\n", r.Content)
	fmt.Fprintf(&b, "Model confidence: %.2f. Assessed risk level: %s.\n", r.Confidence, r.RiskLevel)
	if len(r.Factors) > 0 {
		b.WriteString("Contributing factors, most important first:\n")
		for _, f := range r.Factors {
			fmt.Fprintf(&b, "- %s (importance %.2f, %s)\n", f.Name, f.Importance, f.Polarity)
		}
	}
	b.WriteString("Do not speculate beyond these facts.")
	return b.String()
}

// NoopSummarizer always reports unavailability. Used when no provider is
// configured or reachable.
type NoopSummarizer struct{}

// NewNoopSummarizer creates a summarizer that never produces summaries.
func NewNoopSummarizer() *NoopSummarizer {
	return &NoopSummarizer{}
}

// Summarize always returns ErrUnavailable.
func (*NoopSummarizer) Summarize(_ context.Context, _ Request) (string, error) {
	return "", ErrUnavailable
}
